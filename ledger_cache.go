package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheGenKey = "leaderboard:gen"

// CachedLedger serves top-score reads from Redis. Every Record bumps a
// generation counter so cached lists never outlive a write. Redis failures
// fall through to the wrapped ledger.
type CachedLedger struct {
	Ledger
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func NewCachedLedger(next Ledger, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedLedger {
	return &CachedLedger{Ledger: next, rdb: rdb, ttl: ttl, log: log}
}

func (c *CachedLedger) Record(ctx context.Context, e Entry) (Entry, error) {
	saved, err := c.Ledger.Record(ctx, e)
	if err != nil {
		return saved, err
	}
	if err := c.rdb.Incr(ctx, cacheGenKey).Err(); err != nil {
		c.log.Warn("leaderboard.cache.invalidate", "err", err)
	}
	return saved, nil
}

func (c *CachedLedger) Top(ctx context.Context, limit int, since time.Time) ([]Entry, error) {
	gen, err := c.rdb.Get(ctx, cacheGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("leaderboard.cache.read", "err", err)
		return c.Ledger.Top(ctx, limit, since)
	}
	key := fmt.Sprintf("leaderboard:top:%d:%d:%d", gen, since.Unix(), limit)
	if since.IsZero() {
		key = fmt.Sprintf("leaderboard:top:%d:all:%d", gen, limit)
	}

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var out []Entry
		if json.Unmarshal(raw, &out) == nil {
			return out, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("leaderboard.cache.read", "key", key, "err", err)
	}

	out, err := c.Ledger.Top(ctx, limit, since)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn("leaderboard.cache.write", "key", key, "err", err)
		}
	}
	return out, nil
}
