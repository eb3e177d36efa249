package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/oplai/backend/internal/queue"
	"github.com/oplai/backend/internal/sync"
)

type ReconcileWorker struct {
	reconciler *sync.Reconciler
}

func NewReconcileWorker(reconciler *sync.Reconciler) *ReconcileWorker {
	return &ReconcileWorker{reconciler: reconciler}
}

func (w *ReconcileWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.SyncReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	ownerID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("parse user ID: %w", err)
	}

	res, err := w.reconciler.Reconcile(ctx, ownerID, payload.Playbooks)
	if err != nil {
		// Best-effort: the draft is resubmitted on the next session load.
		slog.Error("reconcile run failed", "user_id", ownerID, "error", err)
		return nil
	}

	slog.Info("reconcile run finished",
		"user_id", ownerID,
		"playbooks_inserted", res.PlaybooksInserted,
		"playbooks_updated", res.PlaybooksUpdated,
		"questions_inserted", res.QuestionsInserted,
		"answers_inserted", res.AnswersInserted,
		"questions_skipped", res.QuestionsSkipped,
		"failures", res.Failures,
	)
	return nil
}
