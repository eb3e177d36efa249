package apiexport

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplai/backend/internal/models"
)

type fakeStore struct {
	endpoints map[uuid.UUID]*models.APIEndpoint
	playbooks []models.Playbook
	questions map[uuid.UUID][]models.Question
	answers   map[uuid.UUID]*models.Answer

	inserted []models.APIEndpoint
	updated  []models.APIEndpoint
	deleted  []uuid.UUID

	listByIDsCalls [][]uuid.UUID
	listByOwner    int

	latestAnswerErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		endpoints: map[uuid.UUID]*models.APIEndpoint{},
		questions: map[uuid.UUID][]models.Question{},
		answers:   map[uuid.UUID]*models.Answer{},
	}
}

func (f *fakeStore) InsertEndpoint(_ context.Context, e *models.APIEndpoint) error {
	f.inserted = append(f.inserted, *e)
	f.endpoints[e.ID] = e
	return nil
}

func (f *fakeStore) GetEndpoint(_ context.Context, id uuid.UUID) (*models.APIEndpoint, error) {
	e, ok := f.endpoints[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return e, nil
}

func (f *fakeStore) GetEndpointByName(_ context.Context, ownerID uuid.UUID, name string) (*models.APIEndpoint, error) {
	for _, e := range f.endpoints {
		if e.OwnerID == ownerID && e.Name == name {
			return e, nil
		}
	}
	return nil, errors.New("no rows")
}

func (f *fakeStore) ListEndpointsByOwner(_ context.Context, ownerID uuid.UUID) ([]models.APIEndpoint, error) {
	var out []models.APIEndpoint
	for _, e := range f.endpoints {
		if e.OwnerID == ownerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateEndpoint(_ context.Context, e *models.APIEndpoint) error {
	f.updated = append(f.updated, *e)
	f.endpoints[e.ID] = e
	return nil
}

func (f *fakeStore) DeleteEndpoint(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.endpoints, id)
	return nil
}

func (f *fakeStore) ListPlaybooksByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Playbook, error) {
	f.listByOwner++
	var out []models.Playbook
	for _, p := range f.playbooks {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPlaybooksByIDs(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Playbook, error) {
	f.listByIDsCalls = append(f.listByIDsCalls, ids)
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Playbook
	for _, p := range f.playbooks {
		if p.OwnerID == ownerID && want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListQuestions(_ context.Context, playbookID uuid.UUID) ([]models.Question, error) {
	return f.questions[playbookID], nil
}

func (f *fakeStore) LatestAnswer(_ context.Context, questionID uuid.UUID) (*models.Answer, error) {
	if f.latestAnswerErr != nil {
		return nil, f.latestAnswerErr
	}
	return f.answers[questionID], nil
}

func TestEnsureGoldenProvisionsOnce(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	svc := NewService(store)

	first, err := svc.EnsureGolden(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, models.GoldenDatasetName, first.Name)
	assert.True(t, first.IsActive)
	assert.True(t, first.DataPoints.Content && first.DataPoints.Questions &&
		first.DataPoints.Answers && first.DataPoints.Scores)

	second, err := svc.EnsureGolden(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.inserted, 1)
}

func TestServeUnknownEndpoint(t *testing.T) {
	svc := NewService(newFakeStore())
	_, err := svc.Serve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServeInactiveEndpoint(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{ID: id, Name: "exports", IsActive: false}
	svc := NewService(store)

	_, err := svc.Serve(context.Background(), id)
	assert.ErrorIs(t, err, ErrInactive)
}

func TestServeGoldenIgnoresInactiveFlagAndSelection(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{
		ID:      id,
		OwnerID: owner,
		Name:    models.GoldenDatasetName,
		// a stale row can carry is_active=false and a selection; both are
		// ignored for the golden endpoint
		IsActive:            false,
		SelectedPlaybookIDs: []string{uuid.New().String()},
		DataPoints:          models.DataPoints{Content: true},
	}
	store.playbooks = []models.Playbook{
		{ID: uuid.New(), OwnerID: owner, Title: "a"},
		{ID: uuid.New(), OwnerID: owner, Title: "b"},
	}
	svc := NewService(store)

	res, err := svc.Serve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Empty(t, store.listByIDsCalls)
}

func TestServeScopedToSelectedPlaybooks(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	selected := uuid.New()
	store.playbooks = []models.Playbook{
		{ID: selected, OwnerID: owner, Title: "selected"},
		{ID: uuid.New(), OwnerID: owner, Title: "other"},
	}
	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{
		ID:                  id,
		OwnerID:             owner,
		Name:                "exports",
		IsActive:            true,
		SelectedPlaybookIDs: []string{selected.String(), "not-a-uuid"},
	}
	svc := NewService(store)

	res, err := svc.Serve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "selected", res.Data[0]["title"])
	// the malformed entry was dropped before the lookup
	require.Len(t, store.listByIDsCalls, 1)
	assert.Equal(t, []uuid.UUID{selected}, store.listByIDsCalls[0])
}

func TestServeFallsBackToAllWhenNoValidSelection(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	store.playbooks = []models.Playbook{{ID: uuid.New(), OwnerID: owner, Title: "only"}}
	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{
		ID:                  id,
		OwnerID:             owner,
		Name:                "exports",
		IsActive:            true,
		SelectedPlaybookIDs: []string{"garbage", "also-garbage"},
	}
	svc := NewService(store)

	res, err := svc.Serve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Empty(t, store.listByIDsCalls)
	assert.Equal(t, 1, store.listByOwner)
}

func TestServeAssemblesSelectedDataPoints(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	pb := models.Playbook{ID: uuid.New(), OwnerID: owner, Title: "runbook", Content: "secret body"}
	store.playbooks = []models.Playbook{pb}

	q1 := models.Question{ID: uuid.New(), PlaybookID: pb.ID, Text: "what is the SLA?"}
	q2 := models.Question{ID: uuid.New(), PlaybookID: pb.ID, Text: "who is on call?"}
	store.questions[pb.ID] = []models.Question{q1, q2}
	score := 90
	store.answers[q1.ID] = &models.Answer{ID: uuid.New(), QuestionID: q1.ID, Text: "24h", Score: &score}

	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{
		ID:       id,
		OwnerID:  owner,
		Name:     "exports",
		IsActive: true,
		DataPoints: models.DataPoints{
			Questions: true,
			Answers:   true,
			Scores:    true,
			// Content deliberately off
		},
	}
	svc := NewService(store)

	res, err := svc.Serve(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)

	item := res.Data[0]
	assert.Equal(t, pb.ID, item["id"])
	assert.Equal(t, "runbook", item["title"])
	assert.NotContains(t, item, "content")
	assert.NotContains(t, item, "created_at")

	assert.Equal(t, []string{"what is the SLA?", "who is on call?"}, item["questions"])

	answers, ok := item["answers"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, answers, 1, "a question without an answer contributes no entry")
	assert.Equal(t, "24h", answers[0]["answer"])

	scores, ok := item["scores"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"what is the SLA?": 90}, scores)
}

func TestServeScoresOnly(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	pb := models.Playbook{ID: uuid.New(), OwnerID: owner, Title: "t"}
	store.playbooks = []models.Playbook{pb}
	q := models.Question{ID: uuid.New(), PlaybookID: pb.ID, Text: "q"}
	store.questions[pb.ID] = []models.Question{q}
	score := 55
	store.answers[q.ID] = &models.Answer{ID: uuid.New(), QuestionID: q.ID, Text: "a", Score: &score}

	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{
		ID: id, OwnerID: owner, Name: "scores", IsActive: true,
		DataPoints: models.DataPoints{Scores: true},
	}
	svc := NewService(store)

	res, err := svc.Serve(context.Background(), id)
	require.NoError(t, err)

	item := res.Data[0]
	assert.NotContains(t, item, "questions")
	assert.NotContains(t, item, "answers")
	assert.Equal(t, map[string]int{"q": 55}, item["scores"])
}

func TestServeFailsOnAnswerLookupError(t *testing.T) {
	// A database failure must surface as an error, not a 200 with
	// silently missing answers.
	store := newFakeStore()
	owner := uuid.New()
	pb := models.Playbook{ID: uuid.New(), OwnerID: owner, Title: "t"}
	store.playbooks = []models.Playbook{pb}
	store.questions[pb.ID] = []models.Question{{ID: uuid.New(), PlaybookID: pb.ID, Text: "q"}}
	store.latestAnswerErr = errors.New("connection reset")

	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{
		ID: id, OwnerID: owner, Name: "exports", IsActive: true,
		DataPoints: models.DataPoints{Answers: true},
	}
	svc := NewService(store)

	_, err := svc.Serve(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestUpdateGoldenImmutability(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{
		ID: id, OwnerID: owner, Name: models.GoldenDatasetName, IsActive: true,
	}
	svc := NewService(store)

	_, err := svc.Update(context.Background(), owner, id, UpdateRequest{Name: models.GoldenDatasetName, IsActive: false})
	assert.ErrorIs(t, err, ErrGoldenImmutable)

	_, err = svc.Update(context.Background(), owner, id, UpdateRequest{Name: "renamed", IsActive: true})
	assert.ErrorIs(t, err, ErrGoldenImmutable)

	// toggling only the data points is allowed
	updated, err := svc.Update(context.Background(), owner, id, UpdateRequest{
		Name: models.GoldenDatasetName, IsActive: true,
		DataPoints: models.DataPoints{Questions: true},
	})
	require.NoError(t, err)
	assert.True(t, updated.DataPoints.Questions)
}

func TestUpdateOwnership(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	id := uuid.New()
	store.endpoints[id] = &models.APIEndpoint{ID: id, OwnerID: owner, Name: "exports", IsActive: true}
	svc := NewService(store)

	_, err := svc.Update(context.Background(), uuid.New(), id, UpdateRequest{Name: "exports", IsActive: true})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(context.Background(), owner, uuid.New(), UpdateRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteGoldenRefused(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	golden := uuid.New()
	regular := uuid.New()
	store.endpoints[golden] = &models.APIEndpoint{ID: golden, OwnerID: owner, Name: models.GoldenDatasetName, IsActive: true}
	store.endpoints[regular] = &models.APIEndpoint{ID: regular, OwnerID: owner, Name: "exports", IsActive: true}
	svc := NewService(store)

	assert.ErrorIs(t, svc.Delete(context.Background(), owner, golden), ErrGoldenImmutable)
	assert.ErrorIs(t, svc.Delete(context.Background(), uuid.New(), regular), ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), owner, regular))
	assert.Equal(t, []uuid.UUID{regular}, store.deleted)
}

func TestListProvisionsGolden(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	svc := NewService(store)

	endpoints, err := svc.List(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, models.GoldenDatasetName, endpoints[0].Name)
}
