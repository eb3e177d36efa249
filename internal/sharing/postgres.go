package sharing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oplai/backend/internal/models"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) GetPlaybookOwner(ctx context.Context, playbookID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT owner_id FROM playbooks WHERE id = $1", playbookID).Scan(&owner)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get playbook owner: %w", err)
	}
	return owner, nil
}

func (s *PGStore) InsertShareToken(ctx context.Context, t *models.ShareToken) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO share_tokens (token, playbook_id, created_by, is_active, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		t.Token, t.PlaybookID, t.CreatedBy, t.IsActive, t.ExpiresAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert share token: %w", err)
	}
	return nil
}

func (s *PGStore) GetShareToken(ctx context.Context, token string) (*models.ShareToken, error) {
	var t models.ShareToken
	err := s.db.QueryRow(ctx,
		`SELECT token, playbook_id, created_by, is_active, expires_at, created_at
		 FROM share_tokens WHERE token = $1`, token,
	).Scan(&t.Token, &t.PlaybookID, &t.CreatedBy, &t.IsActive, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get share token: %w", err)
	}
	return &t, nil
}

func (s *PGStore) DeactivateShareToken(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, "UPDATE share_tokens SET is_active = false WHERE token = $1", token)
	if err != nil {
		return fmt.Errorf("deactivate share token: %w", err)
	}
	return nil
}

func (s *PGStore) IsCollaborator(ctx context.Context, playbookID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM collaborators WHERE playbook_id = $1 AND user_id = $2)",
		playbookID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collaborator: %w", err)
	}
	return exists, nil
}

func (s *PGStore) InsertCollaborator(ctx context.Context, c *models.Collaborator) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO collaborators (id, playbook_id, user_id, role) VALUES ($1, $2, $3, $4)",
		c.ID, c.PlaybookID, c.UserID, c.Role,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyCollaborator
		}
		return fmt.Errorf("insert collaborator: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteCollaborator(ctx context.Context, playbookID, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM collaborators WHERE playbook_id = $1 AND user_id = $2",
		playbookID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete collaborator: %w", err)
	}
	return nil
}

func (s *PGStore) ListCollaborators(ctx context.Context, playbookID uuid.UUID) ([]CollaboratorInfo, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.user_id, p.email, p.full_name, c.role
		 FROM collaborators c
		 JOIN profiles p ON p.id = c.user_id
		 WHERE c.playbook_id = $1
		 ORDER BY c.created_at`, playbookID,
	)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	var list []CollaboratorInfo
	for rows.Next() {
		var c CollaboratorInfo
		if err := rows.Scan(&c.UserID, &c.Email, &c.FullName, &c.Role); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *PGStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRow(ctx,
		"SELECT id, email, full_name, avatar_url, created_at FROM profiles WHERE email = $1", email,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return &p, nil
}
