package main

import "log/slog"

// Gateway delivers outbound events. Implementations must preserve send order
// per recipient.
type Gateway interface {
	ToConnection(connID string, ev Event)
	ToRoom(roomID string, ev Event)
	ToRoomExcept(roomID, exceptConnID string, ev Event)
}

// socketGateway writes into the send queues of connected Clients. It is only
// used from the hub goroutine, so it needs no locking.
type socketGateway struct {
	log     *slog.Logger
	metrics *Metrics
	clients map[string]*Client
	members func(roomID string) []string
}

func newSocketGateway(log *slog.Logger, m *Metrics) *socketGateway {
	return &socketGateway{
		log:     log,
		metrics: m,
		clients: make(map[string]*Client),
		members: func(string) []string { return nil },
	}
}

func (g *socketGateway) add(c *Client) {
	g.clients[c.connID] = c
}

// remove reports whether the client was still registered.
func (g *socketGateway) remove(c *Client) bool {
	if cur, ok := g.clients[c.connID]; !ok || cur != c {
		return false
	}
	delete(g.clients, c.connID)
	c.Close()
	return true
}

func (g *socketGateway) closeAll() {
	for id, c := range g.clients {
		c.Close()
		delete(g.clients, id)
	}
}

func (g *socketGateway) ToConnection(connID string, ev Event) {
	data, ok := g.encode(ev)
	if !ok {
		return
	}
	g.deliver(connID, data)
}

func (g *socketGateway) ToRoom(roomID string, ev Event) {
	g.ToRoomExcept(roomID, "", ev)
}

func (g *socketGateway) ToRoomExcept(roomID, exceptConnID string, ev Event) {
	data, ok := g.encode(ev)
	if !ok {
		return
	}
	for _, id := range g.members(roomID) {
		if id == exceptConnID {
			continue
		}
		g.deliver(id, data)
	}
}

func (g *socketGateway) encode(ev Event) ([]byte, bool) {
	data, err := ev.Encode()
	if err != nil {
		g.log.Error("gateway.encode", "type", ev.Type, "err", err)
		return nil, false
	}
	return data, true
}

// deliver queues data for one client. A client whose queue is full is closed
// rather than skipped, so a connection that stays open never misses an event.
func (g *socketGateway) deliver(connID string, data []byte) {
	c, ok := g.clients[connID]
	if !ok || c.dropped {
		return
	}
	select {
	case c.send <- data:
	default:
		c.dropped = true
		c.Close()
		g.metrics.SlowClients.Inc()
		g.log.Warn("gateway.slow_client", "conn", connID)
	}
}
