package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oplai/backend/internal/drive"
	"github.com/oplai/backend/internal/queue"
	"github.com/oplai/backend/internal/session"
)

type DriveHandler struct {
	svc         *drive.Service
	queueClient *queue.Client
}

func NewDriveHandler(svc *drive.Service, qc *queue.Client) *DriveHandler {
	return &DriveHandler{svc: svc, queueClient: qc}
}

// OAuth exchanges the authorization code and stores the connection, then
// kicks off an initial background sync.
func (h *DriveHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	var req drive.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" || req.RedirectURI == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code and redirect_uri required"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	ds, err := h.svc.Connect(r.Context(), userID, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if h.queueClient != nil {
		if err := h.queueClient.EnqueueDriveSync(queue.DriveSyncPayload{UserID: userID.String()}); err != nil {
			slog.Warn("enqueue initial drive sync failed", "user_id", userID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "connection": ds})
}

// Sync runs a full pass inline and reports what was mirrored.
func (h *DriveHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := session.UserIDFromContext(r.Context())

	res, err := h.svc.Sync(r.Context(), userID)
	if err != nil {
		if errors.Is(err, drive.ErrNotConnected) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"totalFiles":  res.TotalFiles,
		"syncedFiles": res.SyncedFiles,
		"files":       res.Files,
	})
}
