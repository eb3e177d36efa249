package apiexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oplai/backend/internal/models"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const endpointColumns = "id, owner_id, name, is_active, selected_playbook_ids, data_points, created_at"

func (s *PGStore) InsertEndpoint(ctx context.Context, e *models.APIEndpoint) error {
	dp, _ := json.Marshal(e.DataPoints)
	err := s.db.QueryRow(ctx,
		`INSERT INTO api_endpoints (id, owner_id, name, is_active, selected_playbook_ids, data_points)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		e.ID, e.OwnerID, e.Name, e.IsActive, e.SelectedPlaybookIDs, dp,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert endpoint: %w", err)
	}
	return nil
}

func (s *PGStore) GetEndpoint(ctx context.Context, id uuid.UUID) (*models.APIEndpoint, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+endpointColumns+" FROM api_endpoints WHERE id = $1", id)
	return scanEndpoint(row)
}

func (s *PGStore) GetEndpointByName(ctx context.Context, ownerID uuid.UUID, name string) (*models.APIEndpoint, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+endpointColumns+" FROM api_endpoints WHERE owner_id = $1 AND name = $2", ownerID, name)
	return scanEndpoint(row)
}

func (s *PGStore) ListEndpointsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.APIEndpoint, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+endpointColumns+" FROM api_endpoints WHERE owner_id = $1 ORDER BY created_at", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var list []models.APIEndpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

func (s *PGStore) UpdateEndpoint(ctx context.Context, e *models.APIEndpoint) error {
	dp, _ := json.Marshal(e.DataPoints)
	_, err := s.db.Exec(ctx,
		`UPDATE api_endpoints
		 SET name = $2, is_active = $3, selected_playbook_ids = $4, data_points = $5
		 WHERE id = $1`,
		e.ID, e.Name, e.IsActive, e.SelectedPlaybookIDs, dp,
	)
	if err != nil {
		return fmt.Errorf("update endpoint: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteEndpoint(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM api_endpoints WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	return nil
}

func (s *PGStore) ListPlaybooksByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Playbook, error) {
	return s.listPlaybooks(ctx,
		`SELECT id, owner_id, title, content, created_at, updated_at
		 FROM playbooks WHERE owner_id = $1 ORDER BY created_at`, ownerID)
}

func (s *PGStore) ListPlaybooksByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Playbook, error) {
	return s.listPlaybooks(ctx,
		`SELECT id, owner_id, title, content, created_at, updated_at
		 FROM playbooks WHERE owner_id = $1 AND id = ANY($2) ORDER BY created_at`, ownerID, ids)
}

func (s *PGStore) listPlaybooks(ctx context.Context, sql string, args ...any) ([]models.Playbook, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list playbooks: %w", err)
	}
	defer rows.Close()

	var playbooks []models.Playbook
	for rows.Next() {
		var p models.Playbook
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan playbook: %w", err)
		}
		playbooks = append(playbooks, p)
	}
	return playbooks, rows.Err()
}

func (s *PGStore) ListQuestions(ctx context.Context, playbookID uuid.UUID) ([]models.Question, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, playbook_id, text, created_at FROM questions WHERE playbook_id = $1 ORDER BY created_at",
		playbookID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.PlaybookID, &q.Text, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *PGStore) LatestAnswer(ctx context.Context, questionID uuid.UUID) (*models.Answer, error) {
	var a models.Answer
	err := s.db.QueryRow(ctx,
		`SELECT id, question_id, text, score, thumbs_up, created_at
		 FROM answers WHERE question_id = $1
		 ORDER BY created_at DESC LIMIT 1`, questionID,
	).Scan(&a.ID, &a.QuestionID, &a.Text, &a.Score, &a.ThumbsUp, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest answer: %w", err)
	}
	return &a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row rowScanner) (*models.APIEndpoint, error) {
	var e models.APIEndpoint
	var dp []byte
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.IsActive, &e.SelectedPlaybookIDs, &dp, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan endpoint: %w", err)
	}
	if len(dp) > 0 {
		if err := json.Unmarshal(dp, &e.DataPoints); err != nil {
			return nil, fmt.Errorf("decode data points: %w", err)
		}
	}
	return &e, nil
}
