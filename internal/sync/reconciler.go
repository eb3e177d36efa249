package sync

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oplai/backend/internal/models"
)

// DraftAnswer is one entry of a draft question's answers array.
type DraftAnswer struct {
	Text string `json:"text"`
}

// DraftQuestion supports both the legacy single-answer field and the newer
// answers-array shape; AnswerText picks whichever is populated.
type DraftQuestion struct {
	ID       string        `json:"id,omitempty"`
	Text     string        `json:"text"`
	Answer   string        `json:"answer,omitempty"`
	Answers  []DraftAnswer `json:"answers,omitempty"`
	Score    *int          `json:"score,omitempty"`
	ThumbsUp *bool         `json:"thumbs_up,omitempty"`
}

func (q *DraftQuestion) AnswerText() string {
	if q.Answer != "" {
		return q.Answer
	}
	if len(q.Answers) > 0 {
		return q.Answers[0].Text
	}
	return ""
}

// DraftPlaybook is a playbook as held in the client's local draft store.
type DraftPlaybook struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Questions []DraftQuestion `json:"questions"`
}

// Store is the persistence surface reconciliation needs. It never deletes.
type Store interface {
	ListPlaybookIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
	InsertPlaybook(ctx context.Context, p *models.Playbook) error
	UpdatePlaybook(ctx context.Context, id uuid.UUID, title, content string) error
	ListQuestions(ctx context.Context, playbookID uuid.UUID) ([]models.Question, error)
	InsertQuestion(ctx context.Context, q *models.Question) error
	InsertAnswer(ctx context.Context, a *models.Answer) error
}

// Result summarizes one reconciliation pass for logging.
type Result struct {
	PlaybooksInserted int
	PlaybooksUpdated  int
	QuestionsInserted int
	AnswersInserted   int
	QuestionsSkipped  int
	Failures          int
}

// Reconciler folds local drafts into the remote store, one way and
// best-effort. Each remote write is isolated: a failure logs and moves on
// to the next item, no retries, nothing rolled back.
type Reconciler struct {
	store Store
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile inserts draft playbooks absent from the remote store under
// their client-generated IDs, overwrites title/content of present ones
// (last write from the draft wins), and inserts draft questions whose text
// is not already present for that playbook. Questions are de-duplicated by
// text, not ID: a draft question whose text matches any remote question is
// skipped entirely, with no update path for its text or answer.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID uuid.UUID, drafts []DraftPlaybook) (*Result, error) {
	res := &Result{}
	if len(drafts) == 0 || ownerID == uuid.Nil {
		return res, nil
	}

	remoteIDs, err := r.store.ListPlaybookIDsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	remote := make(map[uuid.UUID]bool, len(remoteIDs))
	for _, id := range remoteIDs {
		remote[id] = true
	}

	for _, draft := range drafts {
		if remote[draft.ID] {
			if err := r.store.UpdatePlaybook(ctx, draft.ID, draft.Title, draft.Content); err != nil {
				slog.Error("reconcile: update playbook failed", "playbook_id", draft.ID, "error", err)
				res.Failures++
				continue
			}
			res.PlaybooksUpdated++
		} else {
			if err := r.store.InsertPlaybook(ctx, &models.Playbook{
				ID:      draft.ID,
				OwnerID: ownerID,
				Title:   draft.Title,
				Content: draft.Content,
			}); err != nil {
				slog.Error("reconcile: insert playbook failed", "playbook_id", draft.ID, "error", err)
				res.Failures++
				continue
			}
			res.PlaybooksInserted++
		}

		r.reconcileQuestions(ctx, draft, res)
	}

	return res, nil
}

func (r *Reconciler) reconcileQuestions(ctx context.Context, draft DraftPlaybook, res *Result) {
	if len(draft.Questions) == 0 {
		return
	}

	remoteQuestions, err := r.store.ListQuestions(ctx, draft.ID)
	if err != nil {
		slog.Error("reconcile: list questions failed", "playbook_id", draft.ID, "error", err)
		res.Failures++
		return
	}

	// text is the de-duplication key; identical texts collide and the last
	// one wins the lookup
	byText := make(map[string]uuid.UUID, len(remoteQuestions))
	for _, q := range remoteQuestions {
		byText[q.Text] = q.ID
	}

	for _, dq := range draft.Questions {
		if _, exists := byText[dq.Text]; exists {
			res.QuestionsSkipped++
			continue
		}

		// remote assigns a fresh ID; the draft's local ID is not stable
		q := &models.Question{
			ID:         uuid.New(),
			PlaybookID: draft.ID,
			Text:       dq.Text,
		}
		if err := r.store.InsertQuestion(ctx, q); err != nil {
			slog.Error("reconcile: insert question failed", "playbook_id", draft.ID, "error", err)
			res.Failures++
			continue
		}
		res.QuestionsInserted++

		answer := dq.AnswerText()
		if answer == "" && dq.Score == nil {
			continue
		}
		if err := r.store.InsertAnswer(ctx, &models.Answer{
			ID:         uuid.New(),
			QuestionID: q.ID,
			Text:       answer,
			Score:      dq.Score,
			ThumbsUp:   dq.ThumbsUp,
		}); err != nil {
			slog.Error("reconcile: insert answer failed", "question_id", q.ID, "error", err)
			res.Failures++
			continue
		}
		res.AnswersInserted++
	}
}
