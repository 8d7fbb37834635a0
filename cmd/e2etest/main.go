// E2E test: plays a two-player match through a live coordinator.
// Usage: go run ./cmd/e2etest -server ws://localhost:3000/ws
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var serverURL = flag.String("server", "ws://localhost:3000/ws", "coordinator WebSocket URL")

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type player struct {
	name string
	id   string
	conn *websocket.Conn
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	roomID := "e2e-" + uuid.NewString()[:8]

	alice := connect("Alice")
	defer alice.conn.Close()
	bob := connect("Bob")
	defer bob.conn.Close()

	log.Printf(">> Joining room %s...", roomID)
	alice.send("join-room", map[string]string{"playerName": alice.name, "roomId": roomID})
	alice.await("room-update")
	bob.send("join-room", map[string]string{"playerName": bob.name, "roomId": roomID})
	bob.await("room-update")
	log.Println("   Both joined ✓")

	log.Println(">> Readying up...")
	alice.send("player-ready", nil)
	bob.send("player-ready", nil)
	alice.await("game-start")
	bob.await("game-start")
	log.Println("   game-start received ✓")

	log.Println(">> Alice attacks, Bob should receive it...")
	alice.send("send-attack", map[string]int{"lineCount": 2})
	bob.await("receive-attack")
	log.Println("   receive-attack ✓")

	log.Println(">> Bob reports a score and tops out...")
	bob.send("score-update", map[string]int{"score": 300})
	bob.send("game-over", nil)
	data := alice.await("game-finished")

	var finished struct {
		Winner          string         `json:"winner"`
		Scores          map[string]int `json:"scores"`
		DurationSeconds int            `json:"durationSeconds"`
	}
	if err := json.Unmarshal(data, &finished); err != nil {
		log.Fatal("decode game-finished:", err)
	}
	if finished.Winner != alice.id {
		log.Fatalf("winner = %q, want %q", finished.Winner, alice.id)
	}
	if finished.DurationSeconds < 0 {
		log.Fatalf("negative duration %d", finished.DurationSeconds)
	}
	log.Printf("   game-finished winner=%s scores=%v duration=%ds ✓", finished.Winner, finished.Scores, finished.DurationSeconds)

	fmt.Println()
	log.Println("═══════════════════════════════")
	log.Println("  E2E TEST PASSED ✓")
	log.Println("═══════════════════════════════")
	os.Exit(0)
}

func connect(name string) *player {
	log.Printf(">> Connecting %s...", name)
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("%s connect: %v", name, err)
	}
	p := &player{name: name, conn: conn}

	var welcome struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.Unmarshal(p.await("welcome"), &welcome); err != nil {
		log.Fatalf("%s welcome: %v", name, err)
	}
	p.id = welcome.PlayerID
	log.Printf("   %s connected as %s ✓", name, p.id)
	return p
}

func (p *player) send(typ string, data any) {
	env := map[string]any{"type": typ}
	if data != nil {
		env["data"] = data
	}
	if err := p.conn.WriteJSON(env); err != nil {
		log.Fatalf("%s send %s: %v", p.name, typ, err)
	}
}

// await reads frames until one of the wanted type arrives.
func (p *player) await(typ string) json.RawMessage {
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = p.conn.SetReadDeadline(deadline)
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			log.Fatalf("%s waiting for %s: %v", p.name, typ, err)
		}
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			log.Fatalf("%s bad frame %q: %v", p.name, msg, err)
		}
		if env.Type == "error" {
			log.Fatalf("%s got error: %s", p.name, env.Data)
		}
		if env.Type == typ {
			return env.Data
		}
	}
}
