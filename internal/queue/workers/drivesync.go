package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/oplai/backend/internal/drive"
	"github.com/oplai/backend/internal/queue"
)

type DriveSyncWorker struct {
	driveSvc *drive.Service
}

func NewDriveSyncWorker(driveSvc *drive.Service) *DriveSyncWorker {
	return &DriveSyncWorker{driveSvc: driveSvc}
}

func (w *DriveSyncWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DriveSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("parse user ID: %w", err)
	}

	res, err := w.driveSvc.Sync(ctx, userID)
	if err != nil {
		slog.Error("drive sync failed", "user_id", userID, "error", err)
		return nil
	}

	slog.Info("drive sync finished",
		"user_id", userID,
		"total_files", res.TotalFiles,
		"synced_files", res.SyncedFiles,
	)
	return nil
}
