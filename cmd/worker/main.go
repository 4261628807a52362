package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/papyrus-erp/papyrus-erp/internal/app"
	platformdb "github.com/papyrus-erp/papyrus-erp/internal/platform/db"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
	"github.com/papyrus-erp/papyrus-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	reconciler := jobs.NewReconciler(jobs.NewPGStockReader(pool), logger)
	idempotency := shared.NewIdempotencyStore(pool)

	reconcileTask, err := jobs.NewInventoryReconcileTask(jobs.ReconcilePayload{})
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInventoryReconcile, Handler: reconciler.HandleInventoryReconcileTask},
			{Type: jobs.TaskIdempotencyCleanup, Handler: func(ctx context.Context, _ *asynq.Task) error {
				return idempotency.Cleanup(ctx, 30*24*time.Hour)
			}},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "17 2 * * *", Task: reconcileTask},
			{Spec: "45 3 * * 0", Task: jobs.NewIdempotencyCleanupTask()},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
