package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kirana-labs/kirana-erp/internal/shared"
)

// idempotencyRetention is how long processed keys are kept before the
// cleanup task prunes them.
const idempotencyRetention = 7 * 24 * time.Hour

// Worker wraps the asynq server with this application's task handlers and
// the cron scheduler that enqueues the recurring scans.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *slog.Logger
}

// WorkerConfig carries worker dependencies.
type WorkerConfig struct {
	RedisAddr   string
	Logger      *slog.Logger
	Scanner     *IntegrityScanner
	Idempotency *shared.IdempotencyStore
}

// NewWorker constructs the background worker.
func NewWorker(cfg WorkerConfig) *Worker {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{"default": 1},
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcurementIntegrity, func(ctx context.Context, _ *asynq.Task) error {
		if cfg.Scanner == nil {
			return nil
		}
		_, err := cfg.Scanner.Run(ctx)
		return err
	})
	mux.HandleFunc(TaskIdempotencyCleanup, func(ctx context.Context, _ *asynq.Task) error {
		return cfg.Idempotency.Cleanup(ctx, idempotencyRetention)
	})

	return &Worker{server: server, scheduler: scheduler, mux: mux, logger: cfg.Logger}
}

// RegisterCron registers the recurring schedules. spec is a standard
// five-field cron expression.
func (w *Worker) RegisterCron(spec string) error {
	if _, err := w.scheduler.Register(spec, NewIntegrityTask()); err != nil {
		return fmt.Errorf("jobs: register integrity cron: %w", err)
	}
	if _, err := w.scheduler.Register("30 3 * * *", NewIdempotencyCleanupTask()); err != nil {
		return fmt.Errorf("jobs: register cleanup cron: %w", err)
	}
	return nil
}

// Run starts the scheduler and blocks serving tasks until Shutdown.
func (w *Worker) Run() error {
	if err := w.scheduler.Start(); err != nil {
		return fmt.Errorf("jobs: start scheduler: %w", err)
	}
	w.logger.Info("worker started")
	return w.server.Run(w.mux)
}

// Shutdown stops the scheduler and drains in-flight tasks.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("worker stopped")
}
