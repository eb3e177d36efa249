package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplai/backend/internal/models"
	"github.com/oplai/backend/internal/session"
	"github.com/oplai/backend/internal/sharing"
)

type fakeSharingStore struct {
	owner   uuid.UUID
	profile *models.Profile

	insertCollaboratorErr error
}

func (f *fakeSharingStore) GetPlaybookOwner(context.Context, uuid.UUID) (uuid.UUID, error) {
	return f.owner, nil
}

func (f *fakeSharingStore) InsertShareToken(context.Context, *models.ShareToken) error {
	return nil
}

func (f *fakeSharingStore) GetShareToken(context.Context, string) (*models.ShareToken, error) {
	return nil, errors.New("no rows")
}

func (f *fakeSharingStore) DeactivateShareToken(context.Context, string) error { return nil }

func (f *fakeSharingStore) IsCollaborator(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeSharingStore) InsertCollaborator(context.Context, *models.Collaborator) error {
	return f.insertCollaboratorErr
}

func (f *fakeSharingStore) DeleteCollaborator(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (f *fakeSharingStore) ListCollaborators(context.Context, uuid.UUID) ([]sharing.CollaboratorInfo, error) {
	return nil, nil
}

func (f *fakeSharingStore) GetProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	if f.profile == nil || f.profile.Email != email {
		return nil, errors.New("no rows")
	}
	return f.profile, nil
}

func inviteRequest(t *testing.T, store *fakeSharingStore, actor uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewSharingHandler(sharing.NewService(store, nil))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := session.WithUser(req.Context(), &models.Profile{ID: actor, CreatedAt: time.Now()})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/playbooks/{id}/collaborators", h.Invite)

	req := httptest.NewRequest("POST", "/playbooks/"+uuid.New().String()+"/collaborators", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestInviteCreatesCollaborator(t *testing.T) {
	owner := uuid.New()
	store := &fakeSharingStore{
		owner:   owner,
		profile: &models.Profile{ID: uuid.New(), Email: "dev@example.com"},
	}

	rec := inviteRequest(t, store, owner, `{"email":"dev@example.com"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestInviteDuplicateCollaboratorIsConflict(t *testing.T) {
	owner := uuid.New()
	store := &fakeSharingStore{
		owner:                 owner,
		profile:               &models.Profile{ID: uuid.New(), Email: "dev@example.com"},
		insertCollaboratorErr: sharing.ErrAlreadyCollaborator,
	}

	rec := inviteRequest(t, store, owner, `{"email":"dev@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "already a collaborator", body["error"])
}

func TestInviteUnknownEmail(t *testing.T) {
	owner := uuid.New()
	store := &fakeSharingStore{owner: owner}

	rec := inviteRequest(t, store, owner, `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
