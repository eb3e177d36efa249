package sharing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oplai/backend/internal/audit"
	"github.com/oplai/backend/internal/models"
)

var (
	ErrTokenInvalid        = errors.New("invalid share token")
	ErrTokenInactive       = errors.New("share token is inactive")
	ErrTokenExpired        = errors.New("share token has expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrAlreadyCollaborator = errors.New("already a collaborator")
	ErrNotFound            = errors.New("playbook not found")
	ErrForbidden           = errors.New("not allowed")
)

// CollaboratorInfo joins a collaborator row with its profile display
// fields.
type CollaboratorInfo struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name,omitempty"`
	Role     string    `json:"role"`
}

type Store interface {
	GetPlaybookOwner(ctx context.Context, playbookID uuid.UUID) (uuid.UUID, error)
	InsertShareToken(ctx context.Context, t *models.ShareToken) error
	GetShareToken(ctx context.Context, token string) (*models.ShareToken, error)
	DeactivateShareToken(ctx context.Context, token string) error
	IsCollaborator(ctx context.Context, playbookID, userID uuid.UUID) (bool, error)
	// InsertCollaborator returns ErrAlreadyCollaborator when the
	// (playbook, user) pair already exists.
	InsertCollaborator(ctx context.Context, c *models.Collaborator) error
	DeleteCollaborator(ctx context.Context, playbookID, userID uuid.UUID) error
	ListCollaborators(ctx context.Context, playbookID uuid.UUID) ([]CollaboratorInfo, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
}

type Service struct {
	store Store
	audit *audit.Service
}

func NewService(store Store, auditSvc *audit.Service) *Service {
	return &Service{store: store, audit: auditSvc}
}

// IssueToken creates a fresh share token for the playbook. It does not
// look for or reuse an existing active token, so repeated calls produce
// multiple independently valid tokens.
func (s *Service) IssueToken(ctx context.Context, actorID, playbookID uuid.UUID, expiresAt *time.Time) (*models.ShareToken, error) {
	owner, err := s.store.GetPlaybookOwner(ctx, playbookID)
	if err != nil {
		return nil, ErrNotFound
	}
	if owner != actorID {
		return nil, ErrForbidden
	}

	t := &models.ShareToken{
		Token:      newToken(),
		PlaybookID: playbookID,
		CreatedBy:  actorID,
		IsActive:   true,
		ExpiresAt:  expiresAt,
	}
	if err := s.store.InsertShareToken(ctx, t); err != nil {
		return nil, fmt.Errorf("insert share token: %w", err)
	}
	return t, nil
}

func (s *Service) DeactivateToken(ctx context.Context, actorID uuid.UUID, token string) error {
	t, err := s.store.GetShareToken(ctx, token)
	if err != nil {
		return ErrTokenInvalid
	}
	owner, err := s.store.GetPlaybookOwner(ctx, t.PlaybookID)
	if err != nil {
		return ErrNotFound
	}
	if owner != actorID {
		return ErrForbidden
	}
	return s.store.DeactivateShareToken(ctx, token)
}

// RedeemResult reports the outcome of a token redemption.
type RedeemResult struct {
	PlaybookID          uuid.UUID `json:"playbook_id"`
	AlreadyCollaborator bool      `json:"already_collaborator"`
}

// Redeem turns a share token into an editor grant for userID. Redeeming a
// token the user already holds a grant for succeeds without writing a
// second row. The token itself is not consumed.
func (s *Service) Redeem(ctx context.Context, userID uuid.UUID, token string) (*RedeemResult, error) {
	t, err := s.store.GetShareToken(ctx, token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if !t.IsActive {
		return nil, ErrTokenInactive
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	already, err := s.store.IsCollaborator(ctx, t.PlaybookID, userID)
	if err != nil {
		return nil, fmt.Errorf("check collaborator: %w", err)
	}
	if already {
		return &RedeemResult{PlaybookID: t.PlaybookID, AlreadyCollaborator: true}, nil
	}

	if err := s.store.InsertCollaborator(ctx, &models.Collaborator{
		ID:         uuid.New(),
		PlaybookID: t.PlaybookID,
		UserID:     userID,
		Role:       models.RoleEditor,
	}); err != nil {
		if errors.Is(err, ErrAlreadyCollaborator) {
			return &RedeemResult{PlaybookID: t.PlaybookID, AlreadyCollaborator: true}, nil
		}
		return nil, fmt.Errorf("insert collaborator: %w", err)
	}

	s.record(ctx, "share_token.redeemed", t.PlaybookID, map[string]interface{}{"user_id": userID})
	return &RedeemResult{PlaybookID: t.PlaybookID}, nil
}

// InviteByEmail adds the profile matching email as an editor. Owner-only.
func (s *Service) InviteByEmail(ctx context.Context, actorID, playbookID uuid.UUID, email string) (*CollaboratorInfo, error) {
	owner, err := s.store.GetPlaybookOwner(ctx, playbookID)
	if err != nil {
		return nil, ErrNotFound
	}
	if owner != actorID {
		return nil, ErrForbidden
	}

	p, err := s.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if err := s.store.InsertCollaborator(ctx, &models.Collaborator{
		ID:         uuid.New(),
		PlaybookID: playbookID,
		UserID:     p.ID,
		Role:       models.RoleEditor,
	}); err != nil {
		return nil, err
	}

	s.record(ctx, "collaborator.invited", playbookID, map[string]interface{}{"user_id": p.ID, "email": email})
	return &CollaboratorInfo{UserID: p.ID, Email: p.Email, FullName: p.FullName, Role: models.RoleEditor}, nil
}

// Remove hard-deletes the collaborator row. Owner-only; the removed user
// is not notified.
func (s *Service) Remove(ctx context.Context, actorID, playbookID, userID uuid.UUID) error {
	owner, err := s.store.GetPlaybookOwner(ctx, playbookID)
	if err != nil {
		return ErrNotFound
	}
	if owner != actorID {
		return ErrForbidden
	}
	if err := s.store.DeleteCollaborator(ctx, playbookID, userID); err != nil {
		return fmt.Errorf("delete collaborator: %w", err)
	}

	s.record(ctx, "collaborator.removed", playbookID, map[string]interface{}{"user_id": userID})
	return nil
}

func (s *Service) List(ctx context.Context, actorID, playbookID uuid.UUID) ([]CollaboratorInfo, error) {
	owner, err := s.store.GetPlaybookOwner(ctx, playbookID)
	if err != nil {
		return nil, ErrNotFound
	}
	if owner != actorID {
		ok, err := s.store.IsCollaborator(ctx, playbookID, actorID)
		if err != nil {
			return nil, fmt.Errorf("check collaborator: %w", err)
		}
		if !ok {
			return nil, ErrForbidden
		}
	}
	return s.store.ListCollaborators(ctx, playbookID)
}

func (s *Service) record(ctx context.Context, action string, playbookID uuid.UUID, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, audit.LogEntry{
		Action:       action,
		ResourceType: "playbook",
		ResourceID:   &playbookID,
		Details:      details,
	}); err != nil {
		slog.Warn("audit log failed", "action", action, "error", err)
	}
}

func newToken() string {
	b := make([]byte, 24)
	rand.Read(b)
	return hex.EncodeToString(b)
}
