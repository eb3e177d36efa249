package apiexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oplai/backend/internal/models"
)

var (
	ErrNotFound        = errors.New("endpoint not found")
	ErrInactive        = errors.New("endpoint is inactive")
	ErrForbidden       = errors.New("not allowed")
	ErrGoldenImmutable = errors.New("the Golden Datasets API endpoint cannot be deactivated or deleted")
)

type Store interface {
	InsertEndpoint(ctx context.Context, e *models.APIEndpoint) error
	GetEndpoint(ctx context.Context, id uuid.UUID) (*models.APIEndpoint, error)
	GetEndpointByName(ctx context.Context, ownerID uuid.UUID, name string) (*models.APIEndpoint, error)
	ListEndpointsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.APIEndpoint, error)
	UpdateEndpoint(ctx context.Context, e *models.APIEndpoint) error
	DeleteEndpoint(ctx context.Context, id uuid.UUID) error

	ListPlaybooksByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Playbook, error)
	ListPlaybooksByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Playbook, error)
	ListQuestions(ctx context.Context, playbookID uuid.UUID) ([]models.Question, error)
	LatestAnswer(ctx context.Context, questionID uuid.UUID) (*models.Answer, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// EnsureGolden provisions the per-user "Golden Datasets API" endpoint when
// it does not exist yet.
func (s *Service) EnsureGolden(ctx context.Context, ownerID uuid.UUID) (*models.APIEndpoint, error) {
	if e, err := s.store.GetEndpointByName(ctx, ownerID, models.GoldenDatasetName); err == nil {
		return e, nil
	}

	e := &models.APIEndpoint{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Name:     models.GoldenDatasetName,
		IsActive: true,
		DataPoints: models.DataPoints{
			Content:   true,
			Questions: true,
			Answers:   true,
			Scores:    true,
			CreatedAt: true,
			UpdatedAt: true,
		},
	}
	if err := s.store.InsertEndpoint(ctx, e); err != nil {
		return nil, fmt.Errorf("provision golden endpoint: %w", err)
	}
	return e, nil
}

type CreateRequest struct {
	Name                string            `json:"name"`
	SelectedPlaybookIDs []string          `json:"selected_playbook_ids"`
	DataPoints          models.DataPoints `json:"data_points"`
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateRequest) (*models.APIEndpoint, error) {
	e := &models.APIEndpoint{
		ID:                  uuid.New(),
		OwnerID:             ownerID,
		Name:                req.Name,
		IsActive:            true,
		SelectedPlaybookIDs: req.SelectedPlaybookIDs,
		DataPoints:          req.DataPoints,
	}
	if err := s.store.InsertEndpoint(ctx, e); err != nil {
		return nil, fmt.Errorf("create endpoint: %w", err)
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]models.APIEndpoint, error) {
	if _, err := s.EnsureGolden(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.store.ListEndpointsByOwner(ctx, ownerID)
}

type UpdateRequest struct {
	Name                string            `json:"name"`
	IsActive            bool              `json:"is_active"`
	SelectedPlaybookIDs []string          `json:"selected_playbook_ids"`
	DataPoints          models.DataPoints `json:"data_points"`
}

func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, req UpdateRequest) (*models.APIEndpoint, error) {
	e, err := s.store.GetEndpoint(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if e.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if e.IsGolden() && (!req.IsActive || req.Name != e.Name) {
		return nil, ErrGoldenImmutable
	}

	e.Name = req.Name
	e.IsActive = req.IsActive
	e.SelectedPlaybookIDs = req.SelectedPlaybookIDs
	e.DataPoints = req.DataPoints
	if err := s.store.UpdateEndpoint(ctx, e); err != nil {
		return nil, fmt.Errorf("update endpoint: %w", err)
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	e, err := s.store.GetEndpoint(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if e.OwnerID != ownerID {
		return ErrForbidden
	}
	if e.IsGolden() {
		return ErrGoldenImmutable
	}
	return s.store.DeleteEndpoint(ctx, id)
}

// EndpointInfo identifies the endpoint in public responses.
type EndpointInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ServeResult is the public payload for one endpoint request.
type ServeResult struct {
	Endpoint EndpointInfo             `json:"endpoint"`
	Data     []map[string]interface{} `json:"data"`
	Total    int                      `json:"total"`
}

// Serve assembles the read-only snapshot for anyone holding the endpoint
// ID. Inactive endpoints are refused, except the golden endpoint which is
// always servable regardless of its stored flag.
func (s *Service) Serve(ctx context.Context, id uuid.UUID) (*ServeResult, error) {
	e, err := s.store.GetEndpoint(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if !e.IsActive && !e.IsGolden() {
		return nil, ErrInactive
	}

	playbooks, err := s.scope(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("resolve playbook scope: %w", err)
	}

	data := make([]map[string]interface{}, 0, len(playbooks))
	for _, p := range playbooks {
		item, err := s.assemble(ctx, e, &p)
		if err != nil {
			return nil, fmt.Errorf("assemble playbook %s: %w", p.ID, err)
		}
		data = append(data, item)
	}

	return &ServeResult{
		Endpoint: EndpointInfo{ID: e.ID, Name: e.Name},
		Data:     data,
		Total:    len(data),
	}, nil
}

func (s *Service) scope(ctx context.Context, e *models.APIEndpoint) ([]models.Playbook, error) {
	if e.IsGolden() {
		// the golden endpoint always covers every playbook the user owns,
		// whatever SelectedPlaybookIDs holds
		return s.store.ListPlaybooksByOwner(ctx, e.OwnerID)
	}

	var valid []uuid.UUID
	for _, raw := range e.SelectedPlaybookIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			slog.Warn("dropping malformed playbook id on endpoint", "endpoint_id", e.ID, "value", raw)
			continue
		}
		valid = append(valid, id)
	}

	if len(valid) == 0 {
		// Fail-open: with no usable selected IDs the scope widens to every
		// playbook the owner has. Pending product decision whether this
		// should instead serve nothing.
		slog.Warn("endpoint has no valid selected playbooks, serving all", "endpoint_id", e.ID)
		return s.store.ListPlaybooksByOwner(ctx, e.OwnerID)
	}
	return s.store.ListPlaybooksByIDs(ctx, e.OwnerID, valid)
}

func (s *Service) assemble(ctx context.Context, e *models.APIEndpoint, p *models.Playbook) (map[string]interface{}, error) {
	item := map[string]interface{}{
		"id":    p.ID,
		"title": p.Title,
	}
	dp := e.DataPoints

	if dp.Content {
		item["content"] = p.Content
	}
	if dp.CreatedAt {
		item["created_at"] = p.CreatedAt
	}
	if dp.UpdatedAt {
		item["updated_at"] = p.UpdatedAt
	}

	if !dp.Questions && !dp.Answers && !dp.Scores {
		return item, nil
	}

	questions, err := s.store.ListQuestions(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var texts []string
	var answers []map[string]interface{}
	scores := map[string]int{}

	for _, q := range questions {
		texts = append(texts, q.Text)
		if !dp.Answers && !dp.Scores {
			continue
		}
		a, err := s.store.LatestAnswer(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		if dp.Answers && a.Text != "" {
			answers = append(answers, map[string]interface{}{
				"question": q.Text,
				"answer":   a.Text,
			})
		}
		if dp.Scores && a.Score != nil {
			scores[q.Text] = *a.Score
		}
	}

	if dp.Questions {
		item["questions"] = texts
	}
	if dp.Answers {
		item["answers"] = answers
	}
	if dp.Scores {
		item["scores"] = scores
	}
	return item, nil
}
