package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultTopLimit   = 100
	defaultTodayLimit = 10
	maxTopLimit       = 100
)

// LeaderboardAPI is the stateless HTTP view of the ledger.
type LeaderboardAPI struct {
	ledger Ledger
	log    *slog.Logger
	now    func() time.Time
}

func NewLeaderboardAPI(ledger Ledger, log *slog.Logger) *LeaderboardAPI {
	return &LeaderboardAPI{ledger: ledger, log: log, now: time.Now}
}

func (a *LeaderboardAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/leaderboard", a.handleTop)
	mux.HandleFunc("POST /api/leaderboard", a.handleSubmit)
	mux.HandleFunc("GET /api/leaderboard/rank", a.handleRank)
	mux.HandleFunc("GET /api/leaderboard/players/{name}", a.handlePlayer)
}

type submitReq struct {
	PlayerName      string `json:"playerName"`
	Score           *int   `json:"score"`
	Lines           int    `json:"lines"`
	DurationSeconds int    `json:"durationSeconds"`
	RoomID          string `json:"roomId"`
}

type rankedEntryResp struct {
	Entry Entry `json:"entry"`
	Rank  int   `json:"rank"`
}

type rankResp struct {
	Score int `json:"score"`
	Rank  int `json:"rank"`
}

// handleTop lists the best entries, all time or since the start of today.
func (a *LeaderboardAPI) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since time.Time
	limit := defaultTopLimit
	switch q.Get("period") {
	case "", "all":
	case "today":
		now := a.now()
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		limit = defaultTodayLimit
	default:
		http.Error(w, "period must be all or today", http.StatusBadRequest)
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxTopLimit)
	}

	entries, err := a.ledger.Top(r.Context(), limit, since)
	if err != nil {
		a.log.Error("leaderboard.top", "err", err)
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *LeaderboardAPI) handlePlayer(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	best, err := a.ledger.Best(r.Context(), name)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.log.Error("leaderboard.best", "player", name, "err", err)
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	rank, err := a.ledger.Rank(r.Context(), best.Score)
	if err != nil {
		a.log.Error("leaderboard.rank", "err", err)
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rankedEntryResp{Entry: best, Rank: rank})
}

func (a *LeaderboardAPI) handleRank(w http.ResponseWriter, r *http.Request) {
	score, err := strconv.Atoi(r.URL.Query().Get("score"))
	if err != nil {
		http.Error(w, "score must be an integer", http.StatusBadRequest)
		return
	}
	rank, err := a.ledger.Rank(r.Context(), score)
	if err != nil {
		a.log.Error("leaderboard.rank", "err", err)
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rankResp{Score: score, Rank: rank})
}

func (a *LeaderboardAPI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	req.PlayerName = strings.TrimSpace(req.PlayerName)
	if req.Score == nil || req.PlayerName == "" {
		http.Error(w, "playerName and score are required", http.StatusBadRequest)
		return
	}
	if utf8.RuneCountInString(req.PlayerName) > maxNameLen || utf8.RuneCountInString(req.RoomID) > maxNameLen {
		http.Error(w, "playerName and roomId are limited to 100 characters", http.StatusBadRequest)
		return
	}
	if !inInt32Range(*req.Score) || !inInt32Range(req.Lines) || !inInt32Range(req.DurationSeconds) {
		http.Error(w, "score, lines or durationSeconds out of range", http.StatusBadRequest)
		return
	}

	saved, err := a.ledger.Record(r.Context(), Entry{
		PlayerName:      req.PlayerName,
		Score:           *req.Score,
		Lines:           req.Lines,
		DurationSeconds: req.DurationSeconds,
		RoomID:          req.RoomID,
	})
	if err != nil {
		a.log.Error("leaderboard.submit", "player", req.PlayerName, "err", err)
		http.Error(w, "could not save score", http.StatusInternalServerError)
		return
	}
	rank, err := a.ledger.Rank(r.Context(), saved.Score)
	if err != nil {
		a.log.Error("leaderboard.rank", "err", err)
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, rankedEntryResp{Entry: saved, Rank: rank})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
