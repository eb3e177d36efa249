package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oplai/backend/internal/playbook"
	"github.com/oplai/backend/internal/session"
)

type PlaybookHandler struct {
	svc *playbook.Service
}

func NewPlaybookHandler(svc *playbook.Service) *PlaybookHandler {
	return &PlaybookHandler{svc: svc}
}

func (h *PlaybookHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := session.UserIDFromContext(r.Context())

	playbooks, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"playbooks": playbooks, "count": len(playbooks)})
}

func (h *PlaybookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req playbook.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title required"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	p, err := h.svc.Create(r.Context(), userID, req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PlaybookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	p, questions, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writePlaybookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"playbook": p, "questions": questions})
}

func (h *PlaybookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	if err := h.svc.Update(r.Context(), userID, id, req.Title, req.Content); err != nil {
		writePlaybookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *PlaybookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writePlaybookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *PlaybookHandler) SyncQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}

	var req struct {
		Questions []playbook.QuestionState `json:"questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	userID := session.UserIDFromContext(r.Context())
	if err := h.svc.SyncQuestions(r.Context(), userID, id, req.Questions); err != nil {
		writePlaybookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *PlaybookHandler) MonitorStats(w http.ResponseWriter, r *http.Request) {
	userID := session.UserIDFromContext(r.Context())

	stats, err := h.svc.MonitorStats(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writePlaybookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playbook.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "playbook not found"})
	case errors.Is(err, playbook.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
