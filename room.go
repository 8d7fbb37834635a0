package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxPlayers is the fixed room capacity.
const MaxPlayers = 4

// maxNameLen matches the leaderboard's player_name and room_id columns.
const maxNameLen = 100

type GameState string

const (
	StateWaiting  GameState = "waiting"
	StatePlaying  GameState = "playing"
	StateFinished GameState = "finished"
)

var (
	ErrRoomFull   = errors.New("room full")
	ErrRoomClosed = errors.New("room is not accepting players")
)

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Alive bool   `json:"alive"`
}

// MatchResult describes a room that just moved to finished.
type MatchResult struct {
	Winner   string // empty when nobody survived
	Scores   map[string]int
	Players  []Player
	Duration time.Duration
}

// Room holds membership and match state. It does no I/O; the coordinator
// owns every Room and is the only caller.
type Room struct {
	id        string
	players   []*Player
	state     GameState
	scores    map[string]int
	startedAt time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		id:     id,
		state:  StateWaiting,
		scores: make(map[string]int),
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) State() GameState { return r.state }

func (r *Room) PlayerCount() int { return len(r.players) }

func (r *Room) HasSpace() bool { return len(r.players) < MaxPlayers }

func (r *Room) Player(id string) (*Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Add appends a new member. Only waiting rooms take members. A blank name
// becomes "Player N" where N is the member's 1-based position at join time;
// longer names are cut to maxNameLen runes.
func (r *Room) Add(id, name string) (*Player, error) {
	if r.state != StateWaiting {
		return nil, ErrRoomClosed
	}
	if !r.HasSpace() {
		return nil, ErrRoomFull
	}
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxNameLen {
		name = strings.TrimSpace(string(runes[:maxNameLen]))
	}
	if name == "" {
		name = fmt.Sprintf("Player %d", len(r.players)+1)
	}
	p := &Player{ID: id, Name: name, Alive: true}
	r.players = append(r.players, p)
	r.scores[id] = 0
	return p, nil
}

// Remove drops the member and its score. It reports whether the member existed.
func (r *Room) Remove(id string) bool {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			delete(r.scores, id)
			return true
		}
	}
	return false
}

// SetReady marks the member ready and reports whether this call started the
// match. The waiting -> playing transition fires at most once.
func (r *Room) SetReady(id string, now time.Time) (started, ok bool) {
	p, ok := r.Player(id)
	if !ok {
		return false, false
	}
	p.Ready = true
	if r.state != StateWaiting || len(r.players) == 0 {
		return false, true
	}
	for _, m := range r.players {
		if !m.Ready {
			return false, true
		}
	}
	r.state = StatePlaying
	r.startedAt = now
	return true, true
}

func (r *Room) UpdateScore(id string, score int) bool {
	if _, ok := r.Player(id); !ok {
		return false
	}
	r.scores[id] = score
	return true
}

// Eliminate marks a member as out of the running match. changed is false when
// the room is not playing or the member was already eliminated. A non-nil
// result means this call finished the match.
func (r *Room) Eliminate(id string, now time.Time) (changed bool, result *MatchResult) {
	p, ok := r.Player(id)
	if !ok || r.state != StatePlaying || !p.Alive {
		return false, nil
	}
	p.Alive = false

	alive := r.AlivePlayers("")
	if len(alive) > 1 {
		return true, nil
	}

	r.state = StateFinished
	elapsed := now.Sub(r.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	result = &MatchResult{
		Scores:   r.Scores(),
		Players:  r.Players(),
		Duration: elapsed,
	}
	if len(alive) == 1 {
		result.Winner = alive[0].ID
	}
	return true, result
}

// AlivePlayers returns live members in join order, skipping except.
func (r *Room) AlivePlayers(except string) []*Player {
	var out []*Player
	for _, p := range r.players {
		if p.Alive && p.ID != except {
			out = append(out, p)
		}
	}
	return out
}

// Players returns a copy of the members in join order.
func (r *Room) Players() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

func (r *Room) MemberIDs() []string {
	out := make([]string, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.ID)
	}
	return out
}

// Scores returns a copy of the score snapshot.
func (r *Room) Scores() map[string]int {
	out := make(map[string]int, len(r.scores))
	for id, s := range r.scores {
		out[id] = s
	}
	return out
}

func (r *Room) Update() RoomUpdatePayload {
	return RoomUpdatePayload{
		RoomID:    r.id,
		Players:   r.Players(),
		GameState: r.state,
	}
}
