package main

// Registry maps a connection to the room it is currently in.
type Registry struct {
	rooms map[string]string
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]string)}
}

func (g *Registry) Resolve(connID string) (string, bool) {
	roomID, ok := g.rooms[connID]
	return roomID, ok
}

func (g *Registry) Bind(connID, roomID string) {
	g.rooms[connID] = roomID
}

// Unbind forgets the connection and returns the room it was in, if any.
func (g *Registry) Unbind(connID string) (string, bool) {
	roomID, ok := g.rooms[connID]
	if ok {
		delete(g.rooms, connID)
	}
	return roomID, ok
}

func (g *Registry) Len() int { return len(g.rooms) }
