package main

import (
	"strings"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr bool
		typ     string
	}{
		{"with data", `{"type":"score-update","data":{"score":5}}`, false, EventScoreUpdate},
		{"no data", `{"type":"player-ready"}`, false, EventPlayerReady},
		{"empty", ``, true, ""},
		{"not json", `hello`, true, ""},
		{"missing type", `{"data":{}}`, true, ""},
		{"array", `[1,2]`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.frame))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if env.Type != tt.typ {
				t.Errorf("type = %q, want %q", env.Type, tt.typ)
			}
		})
	}
}

func TestDecodeData(t *testing.T) {
	env, _ := DecodeEnvelope([]byte(`{"type":"join-room","data":{"playerName":"Alice","roomId":"r1"}}`))
	req, err := DecodeData[JoinRoomRequest](env)
	if err != nil {
		t.Fatal(err)
	}
	if req.PlayerName != "Alice" || req.RoomID != "r1" {
		t.Errorf("req = %+v", req)
	}

	for _, frame := range []string{`{"type":"join-room"}`, `{"type":"join-room","data":null}`} {
		env, _ := DecodeEnvelope([]byte(frame))
		req, err := DecodeData[JoinRoomRequest](env)
		if err != nil || req != (JoinRoomRequest{}) {
			t.Errorf("%s: req=%+v err=%v", frame, req, err)
		}
	}

	env, _ = DecodeEnvelope([]byte(`{"type":"send-attack","data":{"lineCount":"two"}}`))
	if _, err := DecodeData[SendAttackRequest](env); err == nil || !strings.Contains(err.Error(), "send-attack") {
		t.Errorf("expected a send-attack decode error, got %v", err)
	}
}

func TestEventEncode(t *testing.T) {
	raw, err := Event{Type: EventReceiveAttack, Data: AttackPayload{LineCount: 4}}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"receive-attack","data":{"lineCount":4}}` {
		t.Errorf("encoded = %s", raw)
	}

	raw, _ = Event{Type: EventGameFinished, Data: GameFinishedPayload{Scores: map[string]int{"a": 1}}}.Encode()
	if strings.Contains(string(raw), "winner") {
		t.Errorf("no-winner result should omit winner: %s", raw)
	}

	if _, err := (Event{}).Encode(); err == nil {
		t.Error("empty type should not encode")
	}
}
