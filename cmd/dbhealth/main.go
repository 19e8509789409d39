package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/freight-docs/internal/common"
	"github.com/joseph-ayodele/freight-docs/internal/repository"
)

// dbhealth verifies that the configured Postgres and the local audit store
// are reachable. Exit 0 means the daemon would come up cleanly.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("db ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("db ok", "elapsed_ms", time.Since(start).Milliseconds())

	audit, err := repository.OpenAudit(ctx, cfg.Audit.Path, logger)
	if err != nil {
		logger.Error("audit store failed", "path", cfg.Audit.Path, "error", err)
		os.Exit(1)
	}
	if err := audit.Close(); err != nil {
		logger.Error("audit store close failed", "error", err)
		os.Exit(1)
	}
	logger.Info("audit ok", "path", cfg.Audit.Path)
}
