package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Coordinator applies client events to rooms and decides what to broadcast
// and when to settle scores. It is not safe for concurrent use; the hub
// calls it from a single goroutine.
type Coordinator struct {
	log      *slog.Logger
	gw       Gateway
	recorder MatchRecorder
	metrics  *Metrics
	registry *Registry

	rooms     map[string]*Room
	roomOrder []string // creation order, scanned when a join names no room
	roomCount atomic.Int64

	newRoomID func() string
	now       func() time.Time
}

func NewCoordinator(log *slog.Logger, gw Gateway, recorder MatchRecorder, m *Metrics) *Coordinator {
	return &Coordinator{
		log:       log,
		gw:        gw,
		recorder:  recorder,
		metrics:   m,
		registry:  NewRegistry(),
		rooms:     make(map[string]*Room),
		newRoomID: func() string { return "room-" + uuid.NewString() },
		now:       time.Now,
	}
}

// RoomCount may be called from any goroutine.
func (c *Coordinator) RoomCount() int { return int(c.roomCount.Load()) }

// Members returns the connection ids of a room in join order.
func (c *Coordinator) Members(roomID string) []string {
	if rm, ok := c.rooms[roomID]; ok {
		return rm.MemberIDs()
	}
	return nil
}

func (c *Coordinator) room(roomID string) (*Room, bool) {
	rm, ok := c.rooms[roomID]
	return rm, ok
}

// roomOf resolves the room a connection is bound to.
func (c *Coordinator) roomOf(connID string) (*Room, bool) {
	roomID, ok := c.registry.Resolve(connID)
	if !ok {
		return nil, false
	}
	return c.room(roomID)
}

// Connect greets a new connection with its id.
func (c *Coordinator) Connect(connID string) {
	c.gw.ToConnection(connID, Event{Type: EventWelcome, Data: WelcomePayload{PlayerID: connID}})
}

// Dispatch decodes one inbound frame and routes it to the matching operation.
// Malformed frames are answered with an error event and change nothing.
func (c *Coordinator) Dispatch(connID string, frame []byte) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		c.reject(connID, err.Error())
		return
	}

	switch env.Type {
	case EventJoinRoom:
		req, err := DecodeData[JoinRoomRequest](env)
		if err != nil {
			c.reject(connID, err.Error())
			return
		}
		c.Join(connID, req.PlayerName, req.RoomID)

	case EventPlayerReady:
		c.SetReady(connID)

	case EventGameUpdate:
		c.RelayGameUpdate(connID, env.Data)

	case EventScoreUpdate:
		req, err := DecodeData[ScoreUpdateRequest](env)
		if err != nil {
			c.reject(connID, err.Error())
			return
		}
		if req.Score == nil {
			c.reject(connID, "score-update requires an integer score")
			return
		}
		c.UpdateScore(connID, *req.Score)

	case EventGameOver:
		c.Eliminate(connID)

	case EventSendAttack:
		req, err := DecodeData[SendAttackRequest](env)
		if err != nil {
			c.reject(connID, err.Error())
			return
		}
		if req.LineCount == nil {
			c.reject(connID, "send-attack requires an integer lineCount")
			return
		}
		c.Attack(connID, *req.LineCount)

	default:
		c.reject(connID, "unknown event "+env.Type)
	}
}

func (c *Coordinator) reject(connID, msg string) {
	c.log.Debug("event.rejected", "conn", connID, "reason", msg)
	c.gw.ToConnection(connID, Event{Type: EventError, Data: ErrorPayload{Message: msg}})
}

// Join places the connection in roomID, or in the first waiting room with
// space when roomID is empty, creating the room if needed. Rooms that have
// started or finished take no new members.
func (c *Coordinator) Join(connID, name, roomID string) {
	if utf8.RuneCountInString(roomID) > maxNameLen {
		c.reject(connID, fmt.Sprintf("roomId is longer than %d characters", maxNameLen))
		return
	}
	if roomID == "" {
		roomID = c.findAvailableRoom()
	}

	if cur, ok := c.registry.Resolve(connID); ok && cur == roomID {
		if rm, ok := c.room(cur); ok {
			c.gw.ToConnection(connID, Event{Type: EventRoomUpdate, Data: rm.Update()})
		}
		return
	}

	rm, exists := c.room(roomID)
	if exists && rm.State() != StateWaiting {
		c.log.Info("room.closed", "room", roomID, "conn", connID, "state", rm.State())
		c.reject(connID, fmt.Sprintf("room %s is %s", roomID, rm.State()))
		return
	}
	if exists && !rm.HasSpace() {
		c.log.Info("room.full", "room", roomID, "conn", connID)
		c.gw.ToConnection(connID, Event{Type: EventRoomFull, Data: RoomFullPayload{RoomID: roomID}})
		return
	}

	// One room per connection: moving rooms leaves the old one first.
	if _, ok := c.registry.Resolve(connID); ok {
		c.Leave(connID)
	}

	if !exists {
		rm = c.createRoom(roomID)
	}
	p, err := rm.Add(connID, name)
	if err != nil {
		if errors.Is(err, ErrRoomFull) {
			c.gw.ToConnection(connID, Event{Type: EventRoomFull, Data: RoomFullPayload{RoomID: roomID}})
		} else {
			c.reject(connID, err.Error())
		}
		return
	}
	c.registry.Bind(connID, roomID)

	c.log.Info("room.joined", "room", roomID, "conn", connID, "name", p.Name, "players", rm.PlayerCount())
	c.gw.ToRoom(roomID, Event{Type: EventRoomUpdate, Data: rm.Update()})
}

func (c *Coordinator) findAvailableRoom() string {
	for _, id := range c.roomOrder {
		rm := c.rooms[id]
		if rm.State() == StateWaiting && rm.HasSpace() {
			return id
		}
	}
	return c.newRoomID()
}

func (c *Coordinator) createRoom(roomID string) *Room {
	rm := NewRoom(roomID)
	c.rooms[roomID] = rm
	c.roomOrder = append(c.roomOrder, roomID)
	c.roomCount.Add(1)
	c.metrics.Rooms.Inc()
	c.log.Info("room.created", "room", roomID)
	return rm
}

func (c *Coordinator) destroyRoom(roomID string) {
	delete(c.rooms, roomID)
	for i, id := range c.roomOrder {
		if id == roomID {
			c.roomOrder = append(c.roomOrder[:i], c.roomOrder[i+1:]...)
			break
		}
	}
	c.roomCount.Add(-1)
	c.metrics.Rooms.Dec()
	c.log.Info("room.deleted", "room", roomID)
}

// SetReady marks the sender ready and starts the match once everyone is.
func (c *Coordinator) SetReady(connID string) {
	rm, ok := c.roomOf(connID)
	if !ok {
		return
	}
	started, ok := rm.SetReady(connID, c.now())
	if !ok {
		return
	}
	c.gw.ToRoom(rm.ID(), Event{Type: EventRoomUpdate, Data: rm.Update()})
	if started {
		c.metrics.MatchesStarted.Inc()
		c.log.Info("match.started", "room", rm.ID(), "players", rm.PlayerCount())
		c.gw.ToRoom(rm.ID(), Event{Type: EventGameStart, Data: GameStartPayload{RoomID: rm.ID()}})
	}
}

// RelayGameUpdate forwards the sender's board snapshot to the rest of the
// room untouched, tagged with the sender id.
func (c *Coordinator) RelayGameUpdate(connID string, data []byte) {
	rm, ok := c.roomOf(connID)
	if !ok {
		return
	}
	fields, err := DecodeData[map[string]json.RawMessage](Envelope{Type: EventGameUpdate, Data: data})
	if err != nil {
		c.reject(connID, err.Error())
		return
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	id, _ := json.Marshal(connID)
	fields["playerId"] = id
	c.gw.ToRoomExcept(rm.ID(), connID, Event{Type: EventPlayerUpdate, Data: fields})
}

func (c *Coordinator) UpdateScore(connID string, score int) {
	rm, ok := c.roomOf(connID)
	if !ok {
		return
	}
	if !inInt32Range(score) {
		c.reject(connID, "score out of range")
		return
	}
	if !rm.UpdateScore(connID, score) {
		return
	}
	c.gw.ToRoom(rm.ID(), Event{Type: EventScoresUpdate, Data: ScoresPayload{Scores: rm.Scores()}})
}

// Eliminate handles a self-reported game over. Reports outside a playing
// match, or for a player already out, are dropped without any event. When it
// leaves at most one player alive the match ends: scores go to the ledger
// without waiting, then the result is broadcast.
func (c *Coordinator) Eliminate(connID string) {
	rm, ok := c.roomOf(connID)
	if !ok {
		return
	}
	changed, result := rm.Eliminate(connID, c.now())
	if !changed {
		return
	}
	c.gw.ToRoom(rm.ID(), Event{Type: EventPlayerDied, Data: PlayerDiedPayload{PlayerID: connID}})
	if result == nil {
		return
	}

	c.recorder.RecordMatch(rm.ID(), *result)

	secs := int(result.Duration / time.Second)
	c.metrics.MatchesFinished.Inc()
	c.log.Info("match.finished", "room", rm.ID(), "winner", result.Winner, "duration_s", secs)
	c.gw.ToRoom(rm.ID(), Event{Type: EventGameFinished, Data: GameFinishedPayload{
		Winner:          result.Winner,
		Scores:          result.Scores,
		DurationSeconds: secs,
	}})
}

// Attack sends garbage lines to every other live member of the sender's room.
func (c *Coordinator) Attack(connID string, lines int) {
	if lines <= 0 {
		return
	}
	rm, ok := c.roomOf(connID)
	if !ok {
		return
	}
	ev := Event{Type: EventReceiveAttack, Data: AttackPayload{LineCount: lines}}
	for _, p := range rm.AlivePlayers(connID) {
		c.gw.ToConnection(p.ID, ev)
	}
}

// Leave removes the connection from its room. An emptied room is deleted;
// otherwise the remaining members get the new membership. Leaving never
// counts as an elimination.
func (c *Coordinator) Leave(connID string) {
	roomID, ok := c.registry.Unbind(connID)
	if !ok {
		return
	}
	rm, ok := c.room(roomID)
	if !ok {
		return
	}
	rm.Remove(connID)
	c.log.Info("room.left", "room", roomID, "conn", connID, "players", rm.PlayerCount())

	if rm.PlayerCount() == 0 {
		c.destroyRoom(roomID)
		return
	}
	c.gw.ToRoom(roomID, Event{Type: EventRoomUpdate, Data: rm.Update()})
}

// Disconnect is the transport-level teardown of a connection.
func (c *Coordinator) Disconnect(connID string) {
	c.Leave(connID)
}
