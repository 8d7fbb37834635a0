package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newLeaderboardMux(l Ledger, now time.Time) *http.ServeMux {
	api := NewLeaderboardAPI(l, discardLogger())
	api.now = func() time.Time { return now }
	mux := http.NewServeMux()
	api.Register(mux)
	return mux
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLeaderboard_SubmitAndRank(t *testing.T) {
	l := NewMemoryLedger()
	seedLedger(t, l, 500, 100)
	mux := newLeaderboardMux(l, t0)

	rec := doRequest(t, mux, http.MethodPost, "/api/leaderboard", `{"playerName":"Alice","score":300,"lines":12,"durationSeconds":95}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp rankedEntryResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Rank != 2 {
		t.Errorf("rank = %d, want 2", resp.Rank)
	}
	if resp.Entry.ID == 0 || resp.Entry.Lines != 12 || resp.Entry.DurationSeconds != 95 {
		t.Errorf("entry = %+v", resp.Entry)
	}
}

func TestLeaderboard_SubmitValidation(t *testing.T) {
	mux := newLeaderboardMux(NewMemoryLedger(), t0)

	for _, body := range []string{
		`{"playerName":"Alice"}`,
		`{"score":10}`,
		`{"playerName":"   ","score":10}`,
		`not json`,
		`{"playerName":"` + strings.Repeat("x", maxNameLen+1) + `","score":10}`,
		`{"playerName":"Alice","score":10,"roomId":"` + strings.Repeat("r", maxNameLen+1) + `"}`,
		`{"playerName":"Alice","score":2147483648}`,
		`{"playerName":"Alice","score":-2147483649}`,
		`{"playerName":"Alice","score":10,"lines":9999999999}`,
	} {
		if rec := doRequest(t, mux, http.MethodPost, "/api/leaderboard", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestLeaderboard_BoundaryValuesAreAccepted(t *testing.T) {
	mux := newLeaderboardMux(NewMemoryLedger(), t0)

	for _, body := range []string{
		`{"playerName":"Zed","score":0}`,
		`{"playerName":"Max","score":2147483647}`,
		`{"playerName":"` + strings.Repeat("x", maxNameLen) + `","score":1}`,
	} {
		if rec := doRequest(t, mux, http.MethodPost, "/api/leaderboard", body); rec.Code != http.StatusCreated {
			t.Errorf("%s: status = %d, want 201", body, rec.Code)
		}
	}
}

func TestLeaderboard_Top(t *testing.T) {
	l := NewMemoryLedger()
	seedLedger(t, l, 10, 30, 20)
	mux := newLeaderboardMux(l, t0)

	rec := doRequest(t, mux, http.MethodGet, "/api/leaderboard?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Score != 30 || entries[1].Score != 20 {
		t.Errorf("entries = %+v", entries)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", entries[0].Rank, entries[1].Rank)
	}

	for _, q := range []string{"limit=0", "limit=abc", "period=week"} {
		if rec := doRequest(t, mux, http.MethodGet, "/api/leaderboard?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestLeaderboard_TopToday(t *testing.T) {
	l := NewMemoryLedger()
	l.now = func() time.Time { return t0.Add(-24 * time.Hour) }
	l.Record(context.Background(), Entry{PlayerName: "yesterday", Score: 900})
	l.now = func() time.Time { return t0.Add(-time.Hour) }
	for i := 0; i < 12; i++ {
		l.Record(context.Background(), Entry{PlayerName: "today", Score: i})
	}
	mux := newLeaderboardMux(l, t0)

	rec := doRequest(t, mux, http.MethodGet, "/api/leaderboard?period=today", "")
	var entries []Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != defaultTodayLimit {
		t.Fatalf("got %d entries, want %d", len(entries), defaultTodayLimit)
	}
	for _, e := range entries {
		if e.PlayerName != "today" {
			t.Errorf("unexpected entry %+v", e)
		}
	}
}

func TestLeaderboard_Player(t *testing.T) {
	l := NewMemoryLedger()
	l.Record(context.Background(), Entry{PlayerName: "Alice", Score: 40})
	l.Record(context.Background(), Entry{PlayerName: "Alice", Score: 90})
	l.Record(context.Background(), Entry{PlayerName: "Bob", Score: 500})
	mux := newLeaderboardMux(l, t0)

	rec := doRequest(t, mux, http.MethodGet, "/api/leaderboard/players/Alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp rankedEntryResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Entry.Score != 90 || resp.Rank != 2 {
		t.Errorf("resp = %+v", resp)
	}

	if rec := doRequest(t, mux, http.MethodGet, "/api/leaderboard/players/Nobody", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown player status = %d, want 404", rec.Code)
	}
}

func TestLeaderboard_RankQuery(t *testing.T) {
	l := NewMemoryLedger()
	seedLedger(t, l, 50, 80, 80, 30)
	mux := newLeaderboardMux(l, t0)

	rec := doRequest(t, mux, http.MethodGet, "/api/leaderboard/rank?score=50", "")
	var resp rankResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Score != 50 || resp.Rank != 3 {
		t.Errorf("resp = %+v, want score 50 rank 3", resp)
	}

	if rec := doRequest(t, mux, http.MethodGet, "/api/leaderboard/rank?score=high", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
