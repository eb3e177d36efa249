package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oplai/backend/internal/apiexport"
	"github.com/oplai/backend/internal/session"
)

type EndpointHandler struct {
	svc *apiexport.Service
}

func NewEndpointHandler(svc *apiexport.Service) *EndpointHandler {
	return &EndpointHandler{svc: svc}
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req apiexport.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}

	ownerID := session.UserIDFromContext(r.Context())
	e, err := h.svc.Create(r.Context(), ownerID, req)
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := session.UserIDFromContext(r.Context())

	endpoints, err := h.svc.List(r.Context(), ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"endpoints": endpoints, "count": len(endpoints)})
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid endpoint ID"})
		return
	}

	var req apiexport.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ownerID := session.UserIDFromContext(r.Context())
	e, err := h.svc.Update(r.Context(), ownerID, id, req)
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid endpoint ID"})
		return
	}

	ownerID := session.UserIDFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), ownerID, id); err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Serve answers unauthenticated callers holding an endpoint's opaque ID.
// 400 malformed ID, 404 unknown, 403 inactive, 500 otherwise.
func (h *EndpointHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid endpoint ID"})
		return
	}

	res, err := h.svc.Serve(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apiexport.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "endpoint not found"})
		case errors.Is(err, apiexport.ErrInactive):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "endpoint is not active"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"endpoint": res.Endpoint,
		"data":     res.Data,
		"total":    res.Total,
	})
}

func writeEndpointError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apiexport.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "endpoint not found"})
	case errors.Is(err, apiexport.ErrGoldenImmutable):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, apiexport.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
