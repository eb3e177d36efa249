package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oplai/backend/internal/session"
	"github.com/oplai/backend/internal/sharing"
)

type SharingHandler struct {
	svc *sharing.Service
}

func NewSharingHandler(svc *sharing.Service) *SharingHandler {
	return &SharingHandler{svc: svc}
}

func (h *SharingHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	playbookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}

	var req struct {
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	actorID := session.UserIDFromContext(r.Context())
	token, err := h.svc.IssueToken(r.Context(), actorID, playbookID, req.ExpiresAt)
	if err != nil {
		writeSharingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (h *SharingHandler) DeactivateToken(w http.ResponseWriter, r *http.Request) {
	actorID := session.UserIDFromContext(r.Context())
	if err := h.svc.DeactivateToken(r.Context(), actorID, chi.URLParam(r, "token")); err != nil {
		writeSharingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Join redeems a share token for the authenticated user. Invalid, inactive
// and expired tokens all come back as 400 with distinct messages.
func (h *SharingHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token required"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	res, err := h.svc.Redeem(r.Context(), userID, req.Token)
	if err != nil {
		writeSharingError(w, err)
		return
	}

	resp := map[string]interface{}{"success": true, "playbook_id": res.PlaybookID}
	if res.AlreadyCollaborator {
		resp["message"] = "you already have access to this playbook"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SharingHandler) ListCollaborators(w http.ResponseWriter, r *http.Request) {
	playbookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}

	actorID := session.UserIDFromContext(r.Context())
	collaborators, err := h.svc.List(r.Context(), actorID, playbookID)
	if err != nil {
		writeSharingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"collaborators": collaborators, "count": len(collaborators)})
}

func (h *SharingHandler) Invite(w http.ResponseWriter, r *http.Request) {
	playbookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email required"})
		return
	}

	actorID := session.UserIDFromContext(r.Context())
	info, err := h.svc.InviteByEmail(r.Context(), actorID, playbookID, req.Email)
	if err != nil {
		writeSharingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *SharingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	playbookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	actorID := session.UserIDFromContext(r.Context())
	if err := h.svc.Remove(r.Context(), actorID, playbookID, userID); err != nil {
		writeSharingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func writeSharingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sharing.ErrTokenInvalid),
		errors.Is(err, sharing.ErrTokenInactive),
		errors.Is(err, sharing.ErrTokenExpired),
		errors.Is(err, sharing.ErrUserNotFound):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, sharing.ErrAlreadyCollaborator):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, sharing.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "playbook not found"})
	case errors.Is(err, sharing.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
