package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr           string
	TLSCert        string
	TLSKey         string
	Env            string
	CORSOrigins    []string
	MaxMessageSize int64
	RateLimitPerIP float64
	MetricsAddr    string

	DatabaseURL string // empty -> in-memory leaderboard
	DBMaxConns  int

	RedisAddr string // empty -> no leaderboard cache
	RedisDB   int

	LeaderboardCacheTTL time.Duration
	LedgerTimeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Addr:                envStr("ARENA_ADDR", ":3000"),
		TLSCert:             envStr("ARENA_TLS_CERT", ""),
		TLSKey:              envStr("ARENA_TLS_KEY", ""),
		Env:                 envStr("APP_ENV", "dev"),
		CORSOrigins:         splitCSV(envStr("ARENA_CORS_ORIGINS", "http://localhost:5173")),
		MaxMessageSize:      int64(envInt("ARENA_MAX_MESSAGE_SIZE", 65536)),
		RateLimitPerIP:      float64(envInt("ARENA_RATE_LIMIT_PER_IP", 20)),
		MetricsAddr:         envStr("ARENA_METRICS_ADDR", ""),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		DBMaxConns:          envInt("ARENA_DB_MAX_CONNS", 10),
		RedisAddr:           envStr("REDIS_ADDR", ""),
		RedisDB:             envInt("REDIS_DB", 0),
		LeaderboardCacheTTL: envDur("ARENA_LEADERBOARD_CACHE_TTL", 30*time.Second),
		LedgerTimeout:       envDur("ARENA_LEDGER_TIMEOUT", 5*time.Second),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDur accepts Go durations ("30s") or a bare number of seconds.
func envDur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
