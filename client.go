package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

func newConnID() string {
	return uuid.NewString()
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	connID string // session-scoped player id, never reused
	ip     string
	send   chan []byte

	// dropped is set by the gateway when the send queue overflowed. Only the
	// hub goroutine touches it.
	dropped bool

	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, ip string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		connID: newConnID(),
		ip:     ip,
		send:   make(chan []byte, sendBufferSize),
	}
}

func (c *Client) ReadPump(maxMessageSize int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("client.read", "conn", c.connID, "err", err)
			}
			return
		}
		c.hub.Inbound(&InboundMsg{ConnID: c.connID, Data: message})
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One event per frame; clients parse each frame as a single JSON envelope.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
