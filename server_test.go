package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type testArena struct {
	ts       *httptest.Server
	ledger   *MemoryLedger
	recorder *ScoreRecorder
}

func startArena(t *testing.T) *testArena {
	t.Helper()
	cfg := testConfig()
	log := discardLogger()
	m := NewMetrics()
	ledger := NewMemoryLedger()
	recorder := NewScoreRecorder(ledger, log, m, cfg.LedgerTimeout)
	hub := NewHub(cfg, log, m, recorder)
	srv := NewServer(cfg, log, hub, ledger, m)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return &testArena{ts: ts, ledger: ledger, recorder: recorder}
}

type wsPlayer struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func (a *testArena) dial(t *testing.T) *wsPlayer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	p := &wsPlayer{t: t, conn: conn}
	var welcome WelcomePayload
	if err := json.Unmarshal(p.await(EventWelcome), &welcome); err != nil {
		t.Fatal(err)
	}
	if welcome.PlayerID == "" {
		t.Fatal("welcome without player id")
	}
	p.id = welcome.PlayerID
	return p
}

func (p *wsPlayer) send(frame string) {
	p.t.Helper()
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

// await reads frames until one of the wanted type arrives.
func (p *wsPlayer) await(typ string) json.RawMessage {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			p.t.Fatalf("waiting for %s: %v", typ, err)
		}
		env, err := DecodeEnvelope(msg)
		if err != nil {
			p.t.Fatalf("bad frame %q: %v", msg, err)
		}
		if env.Type == typ {
			return env.Data
		}
	}
}

func TestServer_Health(t *testing.T) {
	a := startArena(t)

	resp, err := http.Get(a.ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body healthResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" || body.Rooms != 0 {
		t.Errorf("health = %d %+v", resp.StatusCode, body)
	}
}

func TestServer_MetricsExposed(t *testing.T) {
	a := startArena(t)

	resp, err := http.Get(a.ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_MatchOverWebSocket(t *testing.T) {
	a := startArena(t)
	alice := a.dial(t)
	bob := a.dial(t)

	alice.send(`{"type":"join-room","data":{"playerName":"Alice","roomId":"r1"}}`)
	alice.await(EventRoomUpdate)
	bob.send(`{"type":"join-room","data":{"playerName":"Bob","roomId":"r1"}}`)
	bob.await(EventRoomUpdate)

	alice.send(`{"type":"player-ready"}`)
	bob.send(`{"type":"player-ready"}`)
	alice.await(EventGameStart)
	bob.await(EventGameStart)

	alice.send(`{"type":"send-attack","data":{"lineCount":3}}`)
	var attack AttackPayload
	if err := json.Unmarshal(bob.await(EventReceiveAttack), &attack); err != nil {
		t.Fatal(err)
	}
	if attack.LineCount != 3 {
		t.Errorf("lineCount = %d, want 3", attack.LineCount)
	}

	alice.send(`{"type":"score-update","data":{"score":1200}}`)
	alice.await(EventScoresUpdate)
	bob.send(`{"type":"score-update","data":{"score":300}}`)
	bob.send(`{"type":"game-over"}`)

	var fin GameFinishedPayload
	if err := json.Unmarshal(alice.await(EventGameFinished), &fin); err != nil {
		t.Fatal(err)
	}
	if fin.Winner != alice.id {
		t.Errorf("winner = %q, want %q", fin.Winner, alice.id)
	}
	if fin.DurationSeconds < 0 {
		t.Errorf("negative duration %d", fin.DurationSeconds)
	}

	a.recorder.Wait()
	top, err := a.ledger.Top(context.Background(), 10, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("ledger has %d entries, want 2", len(top))
	}
	if top[0].PlayerName != "Alice" || top[0].Score != 1200 || top[0].RoomID != "r1" {
		t.Errorf("top entry = %+v", top[0])
	}
	if top[1].PlayerName != "Bob" || top[1].Score != 300 {
		t.Errorf("second entry = %+v", top[1])
	}
}

func TestServer_DisconnectUpdatesRoom(t *testing.T) {
	a := startArena(t)
	alice := a.dial(t)
	bob := a.dial(t)

	alice.send(`{"type":"join-room","data":{"roomId":"r1"}}`)
	alice.await(EventRoomUpdate)
	bob.send(`{"type":"join-room","data":{"roomId":"r1"}}`)
	alice.await(EventRoomUpdate)

	bob.conn.Close()

	var upd RoomUpdatePayload
	if err := json.Unmarshal(alice.await(EventRoomUpdate), &upd); err != nil {
		t.Fatal(err)
	}
	if len(upd.Players) != 1 || upd.Players[0].ID != alice.id {
		t.Errorf("players after disconnect = %+v", upd.Players)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}, "127.0.0.1:5000", "9.9.9.9"},
		{"real ip", map[string]string{"X-Real-IP": "8.8.8.8"}, "127.0.0.1:5000", "8.8.8.8"},
		{"remote addr", nil, "10.1.2.3:4567", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
