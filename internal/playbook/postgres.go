package playbook

import (
	"context"
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

func (s *PGStore) InsertPlaybook(ctx context.Context, p *models.Playbook) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO playbooks (id, owner_id, title, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		p.ID, p.OwnerID, p.Title, p.Content,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert playbook: %w", err)
	}
	return nil
}

func (s *PGStore) GetPlaybook(ctx context.Context, id uuid.UUID) (*models.Playbook, error) {
	var p models.Playbook
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, title, content, created_at, updated_at
		 FROM playbooks WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get playbook: %w", err)
	}
	return &p, nil
}

func (s *PGStore) ListPlaybooksByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Playbook, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, title, content, created_at, updated_at
		 FROM playbooks WHERE owner_id = $1 ORDER BY updated_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list playbooks: %w", err)
	}
	defer rows.Close()
	return scanPlaybooks(rows)
}

func (s *PGStore) ListAccessiblePlaybooks(ctx context.Context, userID uuid.UUID) ([]models.Playbook, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.owner_id, p.title, p.content, p.created_at, p.updated_at
		 FROM playbooks p
		 LEFT JOIN collaborators c ON c.playbook_id = p.id AND c.user_id = $1
		 WHERE p.owner_id = $1 OR c.user_id IS NOT NULL
		 ORDER BY p.updated_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list accessible playbooks: %w", err)
	}
	defer rows.Close()
	return scanPlaybooks(rows)
}

func (s *PGStore) ListPlaybookIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, "SELECT id FROM playbooks WHERE owner_id = $1", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list playbook ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan playbook id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) UpdatePlaybook(ctx context.Context, id uuid.UUID, title, content string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE playbooks SET title = $2, content = $3, updated_at = now() WHERE id = $1",
		id, title, content,
	)
	if err != nil {
		return fmt.Errorf("update playbook: %w", err)
	}
	return nil
}

func (s *PGStore) DeletePlaybook(ctx context.Context, id uuid.UUID) error {
	// questions, answers, collaborators and share tokens cascade in the
	// schema
	_, err := s.db.Exec(ctx, "DELETE FROM playbooks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete playbook: %w", err)
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

func (s *PGStore) ListQuestions(ctx context.Context, playbookID uuid.UUID) ([]models.Question, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, playbook_id, text, created_at
		 FROM questions WHERE playbook_id = $1 ORDER BY created_at`, playbookID,
	)
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

func (s *PGStore) InsertQuestion(ctx context.Context, q *models.Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		"INSERT INTO questions (id, playbook_id, text) VALUES ($1, $2, $3) RETURNING created_at",
		q.ID, q.PlaybookID, q.Text,
	).Scan(&q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateQuestionText(ctx context.Context, id uuid.UUID, text string) error {
	_, err := s.db.Exec(ctx, "UPDATE questions SET text = $2 WHERE id = $1", id, text)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM questions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
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

func (s *PGStore) InsertAnswer(ctx context.Context, a *models.Answer) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx,
		"INSERT INTO answers (id, question_id, text, score, thumbs_up) VALUES ($1, $2, $3, $4, $5)",
		a.ID, a.QuestionID, a.Text, a.Score, a.ThumbsUp,
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// UpsertAnswer rewrites the latest answer row for the question, inserting
// one when none exists. The schema permits multiple rows per question; the
// service only ever touches the newest.
func (s *PGStore) UpsertAnswer(ctx context.Context, a *models.Answer) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE answers SET text = $2, score = $3, thumbs_up = $4
		 WHERE id = (SELECT id FROM answers WHERE question_id = $1 ORDER BY created_at DESC LIMIT 1)`,
		a.QuestionID, a.Text, a.Score, a.ThumbsUp,
	)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = s.db.Exec(ctx,
		"INSERT INTO answers (id, question_id, text, score, thumbs_up) VALUES ($1, $2, $3, $4, $5)",
		a.ID, a.QuestionID, a.Text, a.Score, a.ThumbsUp,
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPlaybooks(rows pgRows) ([]models.Playbook, error) {
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
