package main

import (
	"context"
	"log/slog"
)

// Hub owns the coordinator and every connected client. All state changes run
// on the Run goroutine, one event at a time.
type Hub struct {
	cfg     *Config
	log     *slog.Logger
	metrics *Metrics

	coord *Coordinator
	gw    *socketGateway

	registerCh   chan *Client
	unregisterCh chan *Client
	inboundCh    chan *InboundMsg
	done         chan struct{} // closed when Run returns
}

type InboundMsg struct {
	ConnID string
	Data   []byte
}

func NewHub(cfg *Config, log *slog.Logger, m *Metrics, recorder MatchRecorder) *Hub {
	gw := newSocketGateway(log, m)
	coord := NewCoordinator(log, gw, recorder, m)
	gw.members = coord.Members

	return &Hub{
		cfg:          cfg,
		log:          log,
		metrics:      m,
		coord:        coord,
		gw:           gw,
		registerCh:   make(chan *Client, 64),
		unregisterCh: make(chan *Client, 64),
		inboundCh:    make(chan *InboundMsg, 2048),
		done:         make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.gw.closeAll()
			return

		case client := <-h.registerCh:
			h.addClient(client)

		case client := <-h.unregisterCh:
			h.removeClient(client)

		case msg := <-h.inboundCh:
			h.coord.Dispatch(msg.ConnID, msg.Data)
		}
	}
}

// Register hands a new client to the loop. After shutdown the client is
// closed instead.
func (h *Hub) Register(c *Client) {
	select {
	case <-h.done:
		c.conn.Close()
		return
	default:
	}
	select {
	case h.registerCh <- c:
	case <-h.done:
		c.conn.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-h.done:
	}
}

func (h *Hub) Inbound(msg *InboundMsg) {
	select {
	case h.inboundCh <- msg:
	case <-h.done:
	}
}

// RoomCount is safe to call from any goroutine.
func (h *Hub) RoomCount() int {
	return h.coord.RoomCount()
}

func (h *Hub) addClient(c *Client) {
	h.gw.add(c)
	h.metrics.Connections.Inc()
	h.log.Info("client.connected", "conn", c.connID, "ip", c.ip)

	h.coord.Connect(c.connID)

	go c.ReadPump(h.cfg.MaxMessageSize)
	go c.WritePump()
}

func (h *Hub) removeClient(c *Client) {
	if !h.gw.remove(c) {
		return
	}
	h.metrics.Connections.Dec()
	h.coord.Disconnect(c.connID)
	h.log.Info("client.disconnected", "conn", c.connID)
}
