package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event types.
const (
	EventJoinRoom    = "join-room"
	EventPlayerReady = "player-ready"
	EventGameUpdate  = "game-update"
	EventScoreUpdate = "score-update"
	EventGameOver    = "game-over"
	EventSendAttack  = "send-attack"
)

// Outbound event types.
const (
	EventWelcome       = "welcome"
	EventRoomUpdate    = "room-update"
	EventRoomFull      = "room-full"
	EventGameStart     = "game-start"
	EventPlayerUpdate  = "player-update"
	EventScoresUpdate  = "scores-update"
	EventPlayerDied    = "player-died"
	EventGameFinished  = "game-finished"
	EventReceiveAttack = "receive-attack"
	EventError         = "error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound envelope before encoding.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func (e Event) Encode() ([]byte, error) {
	if e.Type == "" {
		return nil, errors.New("event type is empty")
	}
	return json.Marshal(e)
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, errors.New("empty frame")
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("missing event type")
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload. An absent payload yields the zero value.
func DecodeData[T any](env Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return out, nil
}

type JoinRoomRequest struct {
	PlayerName string `json:"playerName,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
}

type ScoreUpdateRequest struct {
	Score *int `json:"score"`
}

type SendAttackRequest struct {
	LineCount *int `json:"lineCount"`
}

type WelcomePayload struct {
	PlayerID string `json:"playerId"`
}

type RoomUpdatePayload struct {
	RoomID    string    `json:"roomId"`
	Players   []Player  `json:"players"`
	GameState GameState `json:"gameState"`
}

type RoomFullPayload struct {
	RoomID string `json:"roomId"`
}

type GameStartPayload struct {
	RoomID string `json:"roomId"`
}

type ScoresPayload struct {
	Scores map[string]int `json:"scores"`
}

type PlayerDiedPayload struct {
	PlayerID string `json:"playerId"`
}

type GameFinishedPayload struct {
	Winner          string         `json:"winner,omitempty"`
	Scores          map[string]int `json:"scores"`
	DurationSeconds int            `json:"durationSeconds"`
}

type AttackPayload struct {
	LineCount int `json:"lineCount"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
