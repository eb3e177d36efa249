package playbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/oplai/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("playbook not found")
	ErrForbidden = errors.New("not allowed")
)

// Store is the persistence surface the playbook service needs.
type Store interface {
	InsertPlaybook(ctx context.Context, p *models.Playbook) error
	GetPlaybook(ctx context.Context, id uuid.UUID) (*models.Playbook, error)
	ListPlaybooksByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Playbook, error)
	ListAccessiblePlaybooks(ctx context.Context, userID uuid.UUID) ([]models.Playbook, error)
	UpdatePlaybook(ctx context.Context, id uuid.UUID, title, content string) error
	DeletePlaybook(ctx context.Context, id uuid.UUID) error
	IsCollaborator(ctx context.Context, playbookID, userID uuid.UUID) (bool, error)

	ListQuestions(ctx context.Context, playbookID uuid.UUID) ([]models.Question, error)
	InsertQuestion(ctx context.Context, q *models.Question) error
	UpdateQuestionText(ctx context.Context, id uuid.UUID, text string) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error
	LatestAnswer(ctx context.Context, questionID uuid.UUID) (*models.Answer, error)
	UpsertAnswer(ctx context.Context, a *models.Answer) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateRequest struct {
	ID      uuid.UUID `json:"id,omitempty"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateRequest) (*models.Playbook, error) {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	p := &models.Playbook{
		ID:      id,
		OwnerID: ownerID,
		Title:   req.Title,
		Content: req.Content,
	}
	if err := s.store.InsertPlaybook(ctx, p); err != nil {
		return nil, fmt.Errorf("create playbook: %w", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Playbook, []models.Question, error) {
	p, err := s.store.GetPlaybook(ctx, id)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	if err := s.authorize(ctx, p, userID); err != nil {
		return nil, nil, err
	}
	questions, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	return p, questions, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.Playbook, error) {
	return s.store.ListAccessiblePlaybooks(ctx, userID)
}

// Update is allowed for the owner or any editor collaborator. Last write
// wins; there is no per-field merge.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, title, content string) error {
	p, err := s.store.GetPlaybook(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if err := s.authorize(ctx, p, userID); err != nil {
		return err
	}
	return s.store.UpdatePlaybook(ctx, id, title, content)
}

// Delete is owner-only and cascades to the playbook's questions.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	p, err := s.store.GetPlaybook(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if p.OwnerID != userID {
		return ErrForbidden
	}
	return s.store.DeletePlaybook(ctx, id)
}

func (s *Service) authorize(ctx context.Context, p *models.Playbook, userID uuid.UUID) error {
	if p.OwnerID == userID {
		return nil
	}
	ok, err := s.store.IsCollaborator(ctx, p.ID, userID)
	if err != nil {
		return fmt.Errorf("check collaborator: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// QuestionState is one in-memory question as the editor currently holds it.
type QuestionState struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Answer   string    `json:"answer,omitempty"`
	Score    *int      `json:"score,omitempty"`
	ThumbsUp *bool     `json:"thumbs_up,omitempty"`
}

// SyncQuestions makes the stored question set for a playbook set-equal by
// ID to the submitted in-memory list: stored questions whose ID is absent
// from the list are deleted, unknown IDs are inserted, known IDs get their
// text updated and their answer/score upserted. Two sessions racing here
// resolve by whoever writes last.
func (s *Service) SyncQuestions(ctx context.Context, userID, playbookID uuid.UUID, list []QuestionState) error {
	p, err := s.store.GetPlaybook(ctx, playbookID)
	if err != nil {
		return ErrNotFound
	}
	if err := s.authorize(ctx, p, userID); err != nil {
		return err
	}

	existing, err := s.store.ListQuestions(ctx, playbookID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	wanted := make(map[uuid.UUID]bool, len(list))
	for _, q := range list {
		wanted[q.ID] = true
	}
	known := make(map[uuid.UUID]bool, len(existing))
	for _, q := range existing {
		known[q.ID] = true
		if !wanted[q.ID] {
			if err := s.store.DeleteQuestion(ctx, q.ID); err != nil {
				return fmt.Errorf("delete question %s: %w", q.ID, err)
			}
		}
	}

	for _, q := range list {
		if known[q.ID] {
			if err := s.store.UpdateQuestionText(ctx, q.ID, q.Text); err != nil {
				return fmt.Errorf("update question %s: %w", q.ID, err)
			}
		} else {
			if err := s.store.InsertQuestion(ctx, &models.Question{
				ID:         q.ID,
				PlaybookID: playbookID,
				Text:       q.Text,
			}); err != nil {
				return fmt.Errorf("insert question %s: %w", q.ID, err)
			}
		}

		if q.Answer != "" || q.Score != nil || q.ThumbsUp != nil {
			if err := s.store.UpsertAnswer(ctx, &models.Answer{
				ID:         uuid.New(),
				QuestionID: q.ID,
				Text:       q.Answer,
				Score:      q.Score,
				ThumbsUp:   q.ThumbsUp,
			}); err != nil {
				return fmt.Errorf("upsert answer for %s: %w", q.ID, err)
			}
		}
	}

	return nil
}

// Stats aggregates question/answer counts across every playbook the user
// owns.
type Stats struct {
	TotalPlaybooks int     `json:"total_playbooks"`
	TotalQuestions int     `json:"total_questions"`
	Answered       int     `json:"answered"`
	AverageScore   float64 `json:"average_score"`
	PositiveRate   float64 `json:"positive_rate"`
}

// MonitorStats reports totals, the average score over scored answers, and
// the share of scored answers at or above 50.
func (s *Service) MonitorStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	playbooks, err := s.store.ListPlaybooksByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list playbooks: %w", err)
	}

	stats := &Stats{TotalPlaybooks: len(playbooks)}
	var scoreSum, scored, positive int

	for _, p := range playbooks {
		questions, err := s.store.ListQuestions(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		stats.TotalQuestions += len(questions)

		for _, q := range questions {
			a, err := s.store.LatestAnswer(ctx, q.ID)
			if err != nil {
				return nil, fmt.Errorf("latest answer for %s: %w", q.ID, err)
			}
			if a == nil {
				continue
			}
			if a.Text != "" {
				stats.Answered++
			}
			if a.Score != nil {
				scored++
				scoreSum += *a.Score
				if *a.Score >= 50 {
					positive++
				}
			}
		}
	}

	if scored > 0 {
		stats.AverageScore = float64(scoreSum) / float64(scored)
		stats.PositiveRate = float64(positive) / float64(scored) * 100
	}
	return stats, nil
}
