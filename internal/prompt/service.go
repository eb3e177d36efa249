package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oplai/backend/internal/models"
	"github.com/oplai/backend/internal/session"
)

var (
	ErrNotFound    = errors.New("prompt not found")
	ErrInvalidType = errors.New("prompt type must be question or answer")
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type CreateRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Template string `json:"template"`
	Activate bool   `json:"activate,omitempty"`
}

func validType(t string) bool {
	return t == models.PromptTypeQuestion || t == models.PromptTypeAnswer
}

// Create inserts a prompt with its first version. When Activate is set, any
// other active prompt of the same type is deactivated in the same
// transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Prompt, error) {
	if !validType(req.Type) {
		return nil, ErrInvalidType
	}
	ownerID := session.UserIDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var p models.Prompt
	err = tx.QueryRow(ctx,
		`INSERT INTO prompts (owner_id, name, type, is_active, current_version)
		 VALUES ($1, $2, $3, false, 1)
		 RETURNING id, owner_id, name, type, is_active, current_version, created_at`,
		ownerID, req.Name, req.Type,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Type, &p.IsActive, &p.CurrentVersion, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert prompt: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO prompt_versions (prompt_id, version, template)
		 VALUES ($1, 1, $2)`,
		p.ID, req.Template,
	)
	if err != nil {
		return nil, fmt.Errorf("insert prompt version: %w", err)
	}

	if req.Activate {
		if err := activateTx(ctx, tx, ownerID, p.ID, p.Type); err != nil {
			return nil, err
		}
		p.IsActive = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &p, nil
}

func (s *Service) List(ctx context.Context) ([]models.Prompt, error) {
	ownerID := session.UserIDFromContext(ctx)
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, name, type, is_active, current_version, created_at
		 FROM prompts WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Type, &p.IsActive, &p.CurrentVersion, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, []models.PromptVersion, error) {
	ownerID := session.UserIDFromContext(ctx)

	var p models.Prompt
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, name, type, is_active, current_version, created_at
		 FROM prompts WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Type, &p.IsActive, &p.CurrentVersion, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get prompt: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, prompt_id, version, template, created_at
		 FROM prompt_versions WHERE prompt_id = $1 ORDER BY version DESC`,
		id,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("get versions: %w", err)
	}
	defer rows.Close()

	var versions []models.PromptVersion
	for rows.Next() {
		var v models.PromptVersion
		if err := rows.Scan(&v.ID, &v.PromptID, &v.Version, &v.Template, &v.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return &p, versions, rows.Err()
}

type NewVersionRequest struct {
	Template string `json:"template"`
}

// CreateVersion appends a new immutable version and bumps current_version.
// Existing versions are never modified.
func (s *Service) CreateVersion(ctx context.Context, promptID uuid.UUID, req NewVersionRequest) (*models.PromptVersion, error) {
	ownerID := session.UserIDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentVersion int
	err = tx.QueryRow(ctx,
		"SELECT current_version FROM prompts WHERE id = $1 AND owner_id = $2 FOR UPDATE",
		promptID, ownerID,
	).Scan(&currentVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current version: %w", err)
	}

	newVersion := currentVersion + 1

	var v models.PromptVersion
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions (prompt_id, version, template)
		 VALUES ($1, $2, $3)
		 RETURNING id, prompt_id, version, template, created_at`,
		promptID, newVersion, req.Template,
	).Scan(&v.ID, &v.PromptID, &v.Version, &v.Template, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(ctx, "UPDATE prompts SET current_version = $1 WHERE id = $2", newVersion, promptID)
	if err != nil {
		return nil, fmt.Errorf("update current version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &v, nil
}

// Activate marks the prompt active and deactivates every other prompt of
// the same type for the owner, atomically.
func (s *Service) Activate(ctx context.Context, promptID uuid.UUID) error {
	ownerID := session.UserIDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var promptType string
	err = tx.QueryRow(ctx,
		"SELECT type FROM prompts WHERE id = $1 AND owner_id = $2 FOR UPDATE",
		promptID, ownerID,
	).Scan(&promptType)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get prompt type: %w", err)
	}

	if err := activateTx(ctx, tx, ownerID, promptID, promptType); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func activateTx(ctx context.Context, tx pgx.Tx, ownerID, promptID uuid.UUID, promptType string) error {
	_, err := tx.Exec(ctx,
		"UPDATE prompts SET is_active = false WHERE owner_id = $1 AND type = $2 AND id <> $3",
		ownerID, promptType, promptID,
	)
	if err != nil {
		return fmt.Errorf("deactivate siblings: %w", err)
	}
	_, err = tx.Exec(ctx, "UPDATE prompts SET is_active = true WHERE id = $1", promptID)
	if err != nil {
		return fmt.Errorf("activate prompt: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, promptID uuid.UUID) error {
	ownerID := session.UserIDFromContext(ctx)
	tag, err := s.db.Exec(ctx,
		"DELETE FROM prompts WHERE id = $1 AND owner_id = $2",
		promptID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveTemplate returns the current-version template of the active prompt
// of the given type, or "" when none is active.
func (s *Service) ActiveTemplate(ctx context.Context, promptType string) (string, error) {
	ownerID := session.UserIDFromContext(ctx)

	var tmpl string
	err := s.db.QueryRow(ctx,
		`SELECT pv.template
		 FROM prompts p
		 JOIN prompt_versions pv ON pv.prompt_id = p.id AND pv.version = p.current_version
		 WHERE p.owner_id = $1 AND p.type = $2 AND p.is_active`,
		ownerID, promptType,
	).Scan(&tmpl)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active template: %w", err)
	}
	return tmpl, nil
}

type RenderRequest struct {
	Version   int               `json:"version,omitempty"` // 0 = current
	Variables map[string]string `json:"variables"`
}

// RenderPrompt resolves a version (current when unspecified) and fills in
// its {{variable}} placeholders.
func (s *Service) RenderPrompt(ctx context.Context, promptID uuid.UUID, req RenderRequest) (string, error) {
	ownerID := session.UserIDFromContext(ctx)
	version := req.Version

	if version == 0 {
		err := s.db.QueryRow(ctx,
			"SELECT current_version FROM prompts WHERE id = $1 AND owner_id = $2",
			promptID, ownerID,
		).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("get current version: %w", err)
		}
	}

	var tmpl string
	err := s.db.QueryRow(ctx,
		`SELECT template FROM prompt_versions WHERE prompt_id = $1 AND version = $2`,
		promptID, version,
	).Scan(&tmpl)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get version %d: %w", version, err)
	}

	return Render(tmpl, req.Variables)
}
