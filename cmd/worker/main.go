package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirana-labs/kirana-erp/internal/app"
	"github.com/kirana-labs/kirana-erp/internal/observability"
	"github.com/kirana-labs/kirana-erp/internal/platform/db"
	"github.com/kirana-labs/kirana-erp/internal/shared"
	"github.com/kirana-labs/kirana-erp/jobs"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:   cfg.RedisAddr,
		Logger:      logger,
		Scanner:     jobs.NewIntegrityScanner(pool, logger, metrics),
		Idempotency: shared.NewIdempotencyStore(pool),
	})
	if err := worker.RegisterCron(cfg.IntegrityCron); err != nil {
		logger.Error("register cron", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		worker.Shutdown()
	}()

	if err := worker.Run(); err != nil {
		logger.Error("worker", slog.Any("error", err))
		os.Exit(1)
	}
}
