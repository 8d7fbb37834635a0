package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("not found")

// inInt32Range reports whether n fits the ledger's INTEGER columns.
func inInt32Range(n int) bool {
	return n >= math.MinInt32 && n <= math.MaxInt32
}

// Entry is one recorded result on the leaderboard.
type Entry struct {
	ID              int64     `json:"id"`
	PlayerName      string    `json:"playerName"`
	Score           int       `json:"score"`
	Lines           int       `json:"lines"`
	DurationSeconds int       `json:"durationSeconds"`
	RoomID          string    `json:"roomId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	Rank            int       `json:"rank,omitempty"`
}

// Ledger is the persistent score store behind the leaderboard.
type Ledger interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	// Rank is one plus the number of entries with a strictly greater score.
	Rank(ctx context.Context, score int) (int, error)
	// Top returns entries created at or after since (zero means all time),
	// best score first, older entries first on ties, with Rank filled in.
	Top(ctx context.Context, limit int, since time.Time) ([]Entry, error)
	// Best returns the player's highest entry or ErrNotFound.
	Best(ctx context.Context, playerName string) (Entry, error)
}

// MatchRecorder persists the results of a finished match.
type MatchRecorder interface {
	RecordMatch(roomID string, result MatchResult)
}

// ScoreRecorder writes one ledger entry per player, each on its own goroutine.
// Failures are logged and counted and never reach the caller.
type ScoreRecorder struct {
	ledger  Ledger
	log     *slog.Logger
	metrics *Metrics
	timeout time.Duration

	wg sync.WaitGroup
}

func NewScoreRecorder(ledger Ledger, log *slog.Logger, m *Metrics, timeout time.Duration) *ScoreRecorder {
	return &ScoreRecorder{ledger: ledger, log: log, metrics: m, timeout: timeout}
}

func (r *ScoreRecorder) RecordMatch(roomID string, result MatchResult) {
	secs := int(result.Duration / time.Second)
	for _, p := range result.Players {
		e := Entry{
			PlayerName:      p.Name,
			Score:           result.Scores[p.ID],
			Lines:           0, // not reported by clients
			DurationSeconds: secs,
			RoomID:          roomID,
		}
		r.wg.Add(1)
		go r.record(e)
	}
}

func (r *ScoreRecorder) record(e Entry) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	saved, err := r.ledger.Record(ctx, e)
	if err != nil {
		r.metrics.LedgerWrites.WithLabelValues("error").Inc()
		r.log.Error("ledger.record.failed", "player", e.PlayerName, "room", e.RoomID, "err", err)
		return
	}
	r.metrics.LedgerWrites.WithLabelValues("ok").Inc()
	r.log.Info("ledger.recorded", "id", saved.ID, "player", saved.PlayerName, "score", saved.Score, "room", saved.RoomID)
}

// Wait blocks until every write started so far has returned.
func (r *ScoreRecorder) Wait() { r.wg.Wait() }

// MemoryLedger keeps entries in process memory. It is used when no database
// is configured.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1, now: time.Now}
}

func (m *MemoryLedger) Record(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	e.CreatedAt = m.now()
	e.Rank = 0
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *MemoryLedger) Rank(ctx context.Context, score int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rank := 1
	for _, e := range m.entries {
		if e.Score > score {
			rank++
		}
	}
	return rank, nil
}

func (m *MemoryLedger) Top(ctx context.Context, limit int, since time.Time) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if !since.IsZero() && e.CreatedAt.Before(since) {
			continue
		}
		out = append(out, e)
	}
	m.mu.RUnlock()

	sortEntries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (m *MemoryLedger) Best(ctx context.Context, playerName string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		best  Entry
		found bool
	)
	for _, e := range m.entries {
		if e.PlayerName != playerName {
			continue
		}
		if !found || e.Score > best.Score {
			best, found = e, true
		}
	}
	if !found {
		return Entry{}, ErrNotFound
	}
	return best, nil
}

func sortEntries(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].Score != es[j].Score {
			return es[i].Score > es[j].Score
		}
		if !es[i].CreatedAt.Equal(es[j].CreatedAt) {
			return es[i].CreatedAt.Before(es[j].CreatedAt)
		}
		return es[i].ID < es[j].ID
	})
}
