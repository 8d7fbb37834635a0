package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// Local .env is optional.
	_ = godotenv.Load()

	cfg := LoadConfig()
	logger := NewLogger(cfg.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("ledger.open", "err", err)
		os.Exit(1)
	}
	defer closeLedger()

	metrics := NewMetrics()
	recorder := NewScoreRecorder(ledger, logger, metrics, cfg.LedgerTimeout)

	hub := NewHub(cfg, logger, metrics, recorder)
	srv := NewServer(cfg, logger, hub, ledger, metrics)

	go hub.Run(ctx)

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("metrics.listening", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler()); err != nil {
				logger.Error("metrics.crash", "err", err)
			}
		}()
	}

	go func() {
		logger.Info("server.listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("server.shutdown.start")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	srv.Shutdown(shutdownCtx)
	recorder.Wait()

	logger.Info("server.shutdown.complete")
}

// openLedger picks Postgres when DATABASE_URL is set, otherwise an in-memory
// ledger, and puts the Redis cache in front when REDIS_ADDR is set.
func openLedger(ctx context.Context, cfg *Config, log *slog.Logger) (Ledger, func(), error) {
	var (
		ledger  Ledger
		closers []func()
	)

	if cfg.DatabaseURL != "" {
		pg, err := NewPostgresLedger(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		ledger = pg
		closers = append(closers, pg.Close)
	} else {
		log.Warn("ledger.memory", "reason", "DATABASE_URL not set, scores are kept in memory only")
		ledger = NewMemoryLedger()
	}

	if cfg.RedisAddr != "" {
		rdb, err := NewRedisClient(ctx, cfg)
		if err != nil {
			log.Warn("leaderboard.cache.disabled", "err", err)
		} else {
			ledger = NewCachedLedger(ledger, rdb, cfg.LeaderboardCacheTTL, log)
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}

	return ledger, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
