package sync

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
	playbookIDs []uuid.UUID
	questions   map[uuid.UUID][]models.Question

	insertedPlaybooks []models.Playbook
	updatedPlaybooks  []uuid.UUID
	insertedQuestions []models.Question
	insertedAnswers   []models.Answer

	insertPlaybookErr error
	insertQuestionErr error
	listQuestionsErr  error
}

func (f *fakeStore) ListPlaybookIDsByOwner(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return f.playbookIDs, nil
}

func (f *fakeStore) InsertPlaybook(_ context.Context, p *models.Playbook) error {
	if f.insertPlaybookErr != nil {
		return f.insertPlaybookErr
	}
	f.insertedPlaybooks = append(f.insertedPlaybooks, *p)
	return nil
}

func (f *fakeStore) UpdatePlaybook(_ context.Context, id uuid.UUID, _, _ string) error {
	f.updatedPlaybooks = append(f.updatedPlaybooks, id)
	return nil
}

func (f *fakeStore) ListQuestions(_ context.Context, playbookID uuid.UUID) ([]models.Question, error) {
	if f.listQuestionsErr != nil {
		return nil, f.listQuestionsErr
	}
	return f.questions[playbookID], nil
}

func (f *fakeStore) InsertQuestion(_ context.Context, q *models.Question) error {
	if f.insertQuestionErr != nil {
		return f.insertQuestionErr
	}
	f.insertedQuestions = append(f.insertedQuestions, *q)
	return nil
}

func (f *fakeStore) InsertAnswer(_ context.Context, a *models.Answer) error {
	f.insertedAnswers = append(f.insertedAnswers, *a)
	return nil
}

func TestReconcileEmptyDraftsIsNoOp(t *testing.T) {
	store := &fakeStore{}
	res, err := NewReconciler(store).Reconcile(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
	assert.Empty(t, store.insertedPlaybooks)
}

func TestReconcileNilOwnerIsNoOp(t *testing.T) {
	store := &fakeStore{}
	drafts := []DraftPlaybook{{ID: uuid.New(), Title: "x"}}
	res, err := NewReconciler(store).Reconcile(context.Background(), uuid.Nil, drafts)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
	assert.Empty(t, store.insertedPlaybooks)
}

func TestReconcileInsertsAbsentPlaybookUnderClientID(t *testing.T) {
	store := &fakeStore{}
	owner := uuid.New()
	clientID := uuid.New()

	res, err := NewReconciler(store).Reconcile(context.Background(), owner, []DraftPlaybook{
		{ID: clientID, Title: "runbook", Content: "body"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.PlaybooksInserted)
	require.Len(t, store.insertedPlaybooks, 1)
	assert.Equal(t, clientID, store.insertedPlaybooks[0].ID)
	assert.Equal(t, owner, store.insertedPlaybooks[0].OwnerID)
}

func TestReconcileUpdatesPresentPlaybook(t *testing.T) {
	existing := uuid.New()
	store := &fakeStore{playbookIDs: []uuid.UUID{existing}}

	res, err := NewReconciler(store).Reconcile(context.Background(), uuid.New(), []DraftPlaybook{
		{ID: existing, Title: "new title", Content: "new content"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.PlaybooksUpdated)
	assert.Equal(t, []uuid.UUID{existing}, store.updatedPlaybooks)
	assert.Empty(t, store.insertedPlaybooks)
}

func TestReconcileSkipsQuestionsWithRemoteText(t *testing.T) {
	pbID := uuid.New()
	store := &fakeStore{
		playbookIDs: []uuid.UUID{pbID},
		questions: map[uuid.UUID][]models.Question{
			pbID: {{ID: uuid.New(), PlaybookID: pbID, Text: "what is the SLA?"}},
		},
	}

	res, err := NewReconciler(store).Reconcile(context.Background(), uuid.New(), []DraftPlaybook{
		{ID: pbID, Title: "t", Questions: []DraftQuestion{
			{Text: "what is the SLA?", Answer: "should not be written"},
			{Text: "who is on call?"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.QuestionsSkipped)
	assert.Equal(t, 1, res.QuestionsInserted)
	require.Len(t, store.insertedQuestions, 1)
	assert.Equal(t, "who is on call?", store.insertedQuestions[0].Text)
	// the skipped question's draft answer never reaches the store
	assert.Empty(t, store.insertedAnswers)
}

func TestReconcileAssignsFreshQuestionIDs(t *testing.T) {
	pbID := uuid.New()
	store := &fakeStore{playbookIDs: []uuid.UUID{pbID}}

	_, err := NewReconciler(store).Reconcile(context.Background(), uuid.New(), []DraftPlaybook{
		{ID: pbID, Questions: []DraftQuestion{{ID: "local-1", Text: "q"}}},
	})
	require.NoError(t, err)

	require.Len(t, store.insertedQuestions, 1)
	assert.NotEqual(t, uuid.Nil, store.insertedQuestions[0].ID)
}

func TestReconcileInsertsAnswerWithScore(t *testing.T) {
	pbID := uuid.New()
	store := &fakeStore{playbookIDs: []uuid.UUID{pbID}}
	score := 80

	res, err := NewReconciler(store).Reconcile(context.Background(), uuid.New(), []DraftPlaybook{
		{ID: pbID, Questions: []DraftQuestion{
			{Text: "q1", Answer: "a1", Score: &score},
			{Text: "q2"}, // no answer, no score: no answer row
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.QuestionsInserted)
	assert.Equal(t, 1, res.AnswersInserted)
	require.Len(t, store.insertedAnswers, 1)
	assert.Equal(t, "a1", store.insertedAnswers[0].Text)
	require.NotNil(t, store.insertedAnswers[0].Score)
	assert.Equal(t, 80, *store.insertedAnswers[0].Score)
}

func TestReconcileScoreOnlyQuestionStillGetsAnswerRow(t *testing.T) {
	pbID := uuid.New()
	store := &fakeStore{playbookIDs: []uuid.UUID{pbID}}
	score := 40

	res, err := NewReconciler(store).Reconcile(context.Background(), uuid.New(), []DraftPlaybook{
		{ID: pbID, Questions: []DraftQuestion{{Text: "q", Score: &score}}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.AnswersInserted)
	require.Len(t, store.insertedAnswers, 1)
	assert.Empty(t, store.insertedAnswers[0].Text)
}

func TestReconcileFailureIsolation(t *testing.T) {
	// An insert failure on one playbook must not stop the rest.
	store := &fakeStore{insertPlaybookErr: errors.New("constraint violation")}
	existing := uuid.New()
	store.playbookIDs = []uuid.UUID{existing}

	res, err := NewReconciler(store).Reconcile(context.Background(), uuid.New(), []DraftPlaybook{
		{ID: uuid.New(), Title: "fails"},
		{ID: existing, Title: "works"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 1, res.PlaybooksUpdated)
}

func TestDraftQuestionAnswerText(t *testing.T) {
	q := DraftQuestion{Answer: "legacy"}
	assert.Equal(t, "legacy", q.AnswerText())

	q = DraftQuestion{Answers: []DraftAnswer{{Text: "first"}, {Text: "second"}}}
	assert.Equal(t, "first", q.AnswerText())

	q = DraftQuestion{Answer: "legacy", Answers: []DraftAnswer{{Text: "array"}}}
	assert.Equal(t, "legacy", q.AnswerText(), "legacy field wins when both are set")

	assert.Empty(t, (&DraftQuestion{}).AnswerText())
}
