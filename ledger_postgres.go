package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresLedger stores leaderboard entries in the leaderboard table.
type PostgresLedger struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresLedger(ctx context.Context, cfg *Config, log *slog.Logger) (*PostgresLedger, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = int32(cfg.DBMaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresLedger{pool: pool, log: log}, nil
}

func (p *PostgresLedger) Close() { p.pool.Close() }

// Migrate executes the embedded .sql files in name order.
func (p *PostgresLedger) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		p.log.Info("migration.applied", "file", e.Name())
	}
	return nil
}

const entryColumns = `id, player_name, score, lines, game_duration, COALESCE(room_id, ''), created_at`

func scanEntry(row pgx.Row, e *Entry, extra ...any) error {
	dest := append([]any{&e.ID, &e.PlayerName, &e.Score, &e.Lines, &e.DurationSeconds, &e.RoomID, &e.CreatedAt}, extra...)
	return row.Scan(dest...)
}

func (p *PostgresLedger) Record(ctx context.Context, e Entry) (Entry, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO leaderboard (player_name, score, lines, game_duration, room_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING `+entryColumns,
		e.PlayerName, e.Score, e.Lines, e.DurationSeconds, e.RoomID)

	var out Entry
	if err := scanEntry(row, &out); err != nil {
		return Entry{}, fmt.Errorf("insert leaderboard entry: %w", err)
	}
	return out, nil
}

func (p *PostgresLedger) Rank(ctx context.Context, score int) (int, error) {
	var rank int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) + 1 FROM leaderboard WHERE score > $1`, score).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("rank: %w", err)
	}
	return rank, nil
}

func (p *PostgresLedger) Top(ctx context.Context, limit int, since time.Time) ([]Entry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if since.IsZero() {
		rows, err = p.pool.Query(ctx, `
			SELECT `+entryColumns+`, ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC, id ASC)
			FROM leaderboard
			ORDER BY score DESC, created_at ASC, id ASC
			LIMIT $1`, limit)
	} else {
		rows, err = p.pool.Query(ctx, `
			SELECT `+entryColumns+`, ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC, id ASC)
			FROM leaderboard
			WHERE created_at >= $2
			ORDER BY score DESC, created_at ASC, id ASC
			LIMIT $1`, limit, since)
	}
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e    Entry
			rank int64
		)
		if err := scanEntry(rows, &e, &rank); err != nil {
			return nil, err
		}
		e.Rank = int(rank)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresLedger) Best(ctx context.Context, playerName string) (Entry, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM leaderboard
		WHERE player_name = $1
		ORDER BY score DESC, created_at ASC
		LIMIT 1`, playerName)

	var e Entry
	if err := scanEntry(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("best score: %w", err)
	}
	return e, nil
}
