package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/oplai/backend/internal/queue"
	"github.com/oplai/backend/internal/session"
	"github.com/oplai/backend/internal/sync"
)

type SyncHandler struct {
	queueClient *queue.Client
}

func NewSyncHandler(qc *queue.Client) *SyncHandler {
	return &SyncHandler{queueClient: qc}
}

// Reconcile accepts a draft snapshot and queues the merge. The client gets
// a 202 immediately; the merge outcome is never reported back.
func (h *SyncHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Playbooks []sync.DraftPlaybook `json:"playbooks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	err := h.queueClient.EnqueueSyncReconcile(queue.SyncReconcilePayload{
		UserID:    userID.String(),
		Playbooks: req.Playbooks,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true})
}

// Session tells the client whether its cached drafts belong to a different
// account and must be dropped.
func (h *SyncHandler) Session(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LastOwner string `json:"last_owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, sync.ReconcileSessionOwner(req.LastOwner, userID.String()))
}
