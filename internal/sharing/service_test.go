package sharing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplai/backend/internal/models"
)

type fakeStore struct {
	owners        map[uuid.UUID]uuid.UUID
	tokens        map[string]*models.ShareToken
	collaborators map[uuid.UUID]map[uuid.UUID]bool
	profiles      map[string]*models.Profile

	insertCollaboratorErr error
	deactivated           []string
	removed               []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners:        map[uuid.UUID]uuid.UUID{},
		tokens:        map[string]*models.ShareToken{},
		collaborators: map[uuid.UUID]map[uuid.UUID]bool{},
		profiles:      map[string]*models.Profile{},
	}
}

func (f *fakeStore) GetPlaybookOwner(_ context.Context, playbookID uuid.UUID) (uuid.UUID, error) {
	owner, ok := f.owners[playbookID]
	if !ok {
		return uuid.Nil, errors.New("no rows")
	}
	return owner, nil
}

func (f *fakeStore) InsertShareToken(_ context.Context, t *models.ShareToken) error {
	f.tokens[t.Token] = t
	return nil
}

func (f *fakeStore) GetShareToken(_ context.Context, token string) (*models.ShareToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, errors.New("no rows")
	}
	return t, nil
}

func (f *fakeStore) DeactivateShareToken(_ context.Context, token string) error {
	f.deactivated = append(f.deactivated, token)
	if t, ok := f.tokens[token]; ok {
		t.IsActive = false
	}
	return nil
}

func (f *fakeStore) IsCollaborator(_ context.Context, playbookID, userID uuid.UUID) (bool, error) {
	return f.collaborators[playbookID][userID], nil
}

func (f *fakeStore) InsertCollaborator(_ context.Context, c *models.Collaborator) error {
	if f.insertCollaboratorErr != nil {
		return f.insertCollaboratorErr
	}
	if f.collaborators[c.PlaybookID] == nil {
		f.collaborators[c.PlaybookID] = map[uuid.UUID]bool{}
	}
	if f.collaborators[c.PlaybookID][c.UserID] {
		return ErrAlreadyCollaborator
	}
	f.collaborators[c.PlaybookID][c.UserID] = true
	return nil
}

func (f *fakeStore) DeleteCollaborator(_ context.Context, playbookID, userID uuid.UUID) error {
	f.removed = append(f.removed, userID)
	delete(f.collaborators[playbookID], userID)
	return nil
}

func (f *fakeStore) ListCollaborators(_ context.Context, playbookID uuid.UUID) ([]CollaboratorInfo, error) {
	var out []CollaboratorInfo
	for userID := range f.collaborators[playbookID] {
		out = append(out, CollaboratorInfo{UserID: userID, Role: models.RoleEditor})
	}
	return out, nil
}

func (f *fakeStore) GetProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	p, ok := f.profiles[email]
	if !ok {
		return nil, errors.New("no rows")
	}
	return p, nil
}

func TestIssueTokenOwnerOnly(t *testing.T) {
	store := newFakeStore()
	owner, playbookID := uuid.New(), uuid.New()
	store.owners[playbookID] = owner
	svc := NewService(store, nil)

	_, err := svc.IssueToken(context.Background(), uuid.New(), playbookID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	tok, err := svc.IssueToken(context.Background(), owner, playbookID, nil)
	require.NoError(t, err)
	assert.True(t, tok.IsActive)
	assert.Equal(t, playbookID, tok.PlaybookID)
	assert.NotEmpty(t, tok.Token)
}

func TestIssueTokenProducesIndependentTokens(t *testing.T) {
	store := newFakeStore()
	owner, playbookID := uuid.New(), uuid.New()
	store.owners[playbookID] = owner
	svc := NewService(store, nil)

	first, err := svc.IssueToken(context.Background(), owner, playbookID, nil)
	require.NoError(t, err)
	second, err := svc.IssueToken(context.Background(), owner, playbookID, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.True(t, store.tokens[first.Token].IsActive, "issuing again does not retire the first token")
}

func TestIssueTokenUnknownPlaybook(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	_, err := svc.IssueToken(context.Background(), uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemGrantsEditor(t *testing.T) {
	store := newFakeStore()
	playbookID, userID := uuid.New(), uuid.New()
	store.tokens["tok"] = &models.ShareToken{Token: "tok", PlaybookID: playbookID, IsActive: true}
	svc := NewService(store, nil)

	res, err := svc.Redeem(context.Background(), userID, "tok")
	require.NoError(t, err)
	assert.Equal(t, playbookID, res.PlaybookID)
	assert.False(t, res.AlreadyCollaborator)
	assert.True(t, store.collaborators[playbookID][userID])
}

func TestRedeemErrorOrdering(t *testing.T) {
	store := newFakeStore()
	playbookID := uuid.New()
	past := time.Now().Add(-time.Hour)

	// inactive AND expired: inactive is reported first
	store.tokens["both"] = &models.ShareToken{Token: "both", PlaybookID: playbookID, IsActive: false, ExpiresAt: &past}
	store.tokens["expired"] = &models.ShareToken{Token: "expired", PlaybookID: playbookID, IsActive: true, ExpiresAt: &past}
	svc := NewService(store, nil)

	_, err := svc.Redeem(context.Background(), uuid.New(), "missing")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Redeem(context.Background(), uuid.New(), "both")
	assert.ErrorIs(t, err, ErrTokenInactive)

	_, err = svc.Redeem(context.Background(), uuid.New(), "expired")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRedeemIdempotentForExistingCollaborator(t *testing.T) {
	store := newFakeStore()
	playbookID, userID := uuid.New(), uuid.New()
	store.tokens["tok"] = &models.ShareToken{Token: "tok", PlaybookID: playbookID, IsActive: true}
	store.collaborators[playbookID] = map[uuid.UUID]bool{userID: true}
	svc := NewService(store, nil)

	res, err := svc.Redeem(context.Background(), userID, "tok")
	require.NoError(t, err)
	assert.True(t, res.AlreadyCollaborator)
}

func TestRedeemSwallowsDuplicateInsert(t *testing.T) {
	// A concurrent redeem can insert between the IsCollaborator check and
	// the write; the unique-violation is treated as success.
	store := newFakeStore()
	playbookID := uuid.New()
	store.tokens["tok"] = &models.ShareToken{Token: "tok", PlaybookID: playbookID, IsActive: true}
	store.insertCollaboratorErr = ErrAlreadyCollaborator
	svc := NewService(store, nil)

	res, err := svc.Redeem(context.Background(), uuid.New(), "tok")
	require.NoError(t, err)
	assert.True(t, res.AlreadyCollaborator)
}

func TestRedeemDoesNotConsumeToken(t *testing.T) {
	store := newFakeStore()
	playbookID := uuid.New()
	store.tokens["tok"] = &models.ShareToken{Token: "tok", PlaybookID: playbookID, IsActive: true}
	svc := NewService(store, nil)

	_, err := svc.Redeem(context.Background(), uuid.New(), "tok")
	require.NoError(t, err)
	_, err = svc.Redeem(context.Background(), uuid.New(), "tok")
	require.NoError(t, err)
	assert.Len(t, store.collaborators[playbookID], 2)
}

func TestDeactivateTokenOwnerOnly(t *testing.T) {
	store := newFakeStore()
	owner, playbookID := uuid.New(), uuid.New()
	store.owners[playbookID] = owner
	store.tokens["tok"] = &models.ShareToken{Token: "tok", PlaybookID: playbookID, IsActive: true}
	svc := NewService(store, nil)

	assert.ErrorIs(t, svc.DeactivateToken(context.Background(), uuid.New(), "tok"), ErrForbidden)
	assert.ErrorIs(t, svc.DeactivateToken(context.Background(), owner, "missing"), ErrTokenInvalid)

	require.NoError(t, svc.DeactivateToken(context.Background(), owner, "tok"))
	assert.Equal(t, []string{"tok"}, store.deactivated)

	_, err := svc.Redeem(context.Background(), uuid.New(), "tok")
	assert.ErrorIs(t, err, ErrTokenInactive)
}

func TestInviteByEmail(t *testing.T) {
	store := newFakeStore()
	owner, playbookID, invitee := uuid.New(), uuid.New(), uuid.New()
	store.owners[playbookID] = owner
	store.profiles["dev@example.com"] = &models.Profile{ID: invitee, Email: "dev@example.com", FullName: "Dev"}
	svc := NewService(store, nil)

	info, err := svc.InviteByEmail(context.Background(), owner, playbookID, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, invitee, info.UserID)
	assert.Equal(t, models.RoleEditor, info.Role)
	assert.True(t, store.collaborators[playbookID][invitee])
}

func TestInviteByEmailUnknownUser(t *testing.T) {
	store := newFakeStore()
	owner, playbookID := uuid.New(), uuid.New()
	store.owners[playbookID] = owner
	svc := NewService(store, nil)

	_, err := svc.InviteByEmail(context.Background(), owner, playbookID, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRemoveCollaborator(t *testing.T) {
	store := newFakeStore()
	owner, playbookID, member := uuid.New(), uuid.New(), uuid.New()
	store.owners[playbookID] = owner
	store.collaborators[playbookID] = map[uuid.UUID]bool{member: true}
	svc := NewService(store, nil)

	assert.ErrorIs(t, svc.Remove(context.Background(), member, playbookID, member), ErrForbidden)

	require.NoError(t, svc.Remove(context.Background(), owner, playbookID, member))
	assert.False(t, store.collaborators[playbookID][member])
}

func TestListVisibleToOwnerAndCollaborators(t *testing.T) {
	store := newFakeStore()
	owner, playbookID, member := uuid.New(), uuid.New(), uuid.New()
	store.owners[playbookID] = owner
	store.collaborators[playbookID] = map[uuid.UUID]bool{member: true}
	svc := NewService(store, nil)

	_, err := svc.List(context.Background(), owner, playbookID)
	assert.NoError(t, err)

	_, err = svc.List(context.Background(), member, playbookID)
	assert.NoError(t, err)

	_, err = svc.List(context.Background(), uuid.New(), playbookID)
	assert.ErrorIs(t, err, ErrForbidden)
}
