package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/oplai/backend/internal/config"
	"github.com/oplai/backend/internal/database"
	"github.com/oplai/backend/internal/drive"
	"github.com/oplai/backend/internal/playbook"
	"github.com/oplai/backend/internal/queue"
	"github.com/oplai/backend/internal/queue/workers"
	"github.com/oplai/backend/internal/sync"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	reconcileWorker := workers.NewReconcileWorker(sync.NewReconciler(playbook.NewPGStore(db)))
	driveWorker := workers.NewDriveSyncWorker(drive.NewService(db, cfg.Google))

	registry.Register(queue.TypeSyncReconcile, asynq.HandlerFunc(reconcileWorker.ProcessTask))
	registry.Register(queue.TypeDriveSync, asynq.HandlerFunc(driveWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
