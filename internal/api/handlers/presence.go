package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oplai/backend/internal/playbook"
	"github.com/oplai/backend/internal/presence"
	"github.com/oplai/backend/internal/session"
)

type PresenceHandler struct {
	playbooks *playbook.Service
	ws        *presence.Handler
}

func NewPresenceHandler(playbooks *playbook.Service, ws *presence.Handler) *PresenceHandler {
	return &PresenceHandler{playbooks: playbooks, ws: ws}
}

// Connect upgrades the viewer to a presence socket after checking they can
// see the playbook at all.
func (h *PresenceHandler) Connect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid playbook ID"})
		return
	}

	user := session.UserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if _, _, err := h.playbooks.Get(r.Context(), user.ID, id); err != nil {
		writePlaybookError(w, err)
		return
	}

	h.ws.Serve(w, r, id.String(), presence.Member{
		UserID:      user.ID.String(),
		DisplayName: user.FullName,
		AvatarURL:   user.AvatarURL,
		JoinedAt:    time.Now().UTC(),
	})
}
