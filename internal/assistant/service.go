package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oplai/backend/internal/audit"
	"github.com/oplai/backend/internal/llm"
	"github.com/oplai/backend/internal/models"
	"github.com/oplai/backend/internal/session"
)

// Service answers conversational questions about the user's playbooks. The
// whole corpus is dumped into the system message verbatim; there is no
// chunking or token budgeting, so very large accounts can exceed the
// model's context window. Accepted limitation.
type Service struct {
	db           *pgxpool.Pool
	gateway      llm.Gateway
	audit        *audit.Service
	defaultModel string
}

func NewService(db *pgxpool.Pool, gw llm.Gateway, auditSvc *audit.Service, defaultModel string) *Service {
	return &Service{db: db, gateway: gw, audit: auditSvc, defaultModel: defaultModel}
}

type ChatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []llm.Message `json:"conversation_history,omitempty"`
	Provider            string        `json:"llm_provider,omitempty"`
}

func (s *Service) Chat(ctx context.Context, req ChatRequest) (string, error) {
	corpus, err := s.buildCorpus(ctx)
	if err != nil {
		return "", err
	}

	messages := make([]llm.Message, 0, len(req.ConversationHistory)+2)
	messages = append(messages, llm.Message{
		Role: "system",
		Content: "You are an assistant for a playbook editor. Answer using the user's " +
			"playbooks below.\n\n" + corpus,
	})
	messages = append(messages, req.ConversationHistory...)
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{
		Provider: req.Provider,
		Model:    s.defaultModel,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("assistant chat: %w", err)
	}

	if s.audit != nil {
		if err := s.audit.LogLLMUsage(ctx, models.LLMUsageLog{
			Provider:     resp.Provider,
			Model:        resp.Model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			TotalTokens:  resp.TotalTokens,
			CostUSD:      resp.CostUSD,
			LatencyMs:    resp.LatencyMs,
			Endpoint:     "assistant-chat",
		}); err != nil {
			slog.Warn("usage log failed", "endpoint", "assistant-chat", "error", err)
		}
	}

	return resp.Content, nil
}

// buildCorpus renders every playbook the user owns, with questions, latest
// answers and scores, plus the user's prompts, as plain text.
func (s *Service) buildCorpus(ctx context.Context) (string, error) {
	ownerID := session.UserIDFromContext(ctx)

	var b strings.Builder

	rows, err := s.db.Query(ctx,
		`SELECT id, title, content FROM playbooks WHERE owner_id = $1 ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return "", fmt.Errorf("list playbooks: %w", err)
	}
	defer rows.Close()

	type pb struct {
		id, title, content string
	}
	var playbooks []pb
	for rows.Next() {
		var p pb
		if err := rows.Scan(&p.id, &p.title, &p.content); err != nil {
			return "", fmt.Errorf("scan playbook: %w", err)
		}
		playbooks = append(playbooks, p)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	for _, p := range playbooks {
		fmt.Fprintf(&b, "## Playbook: %s\n%s\n", p.title, p.content)

		qrows, err := s.db.Query(ctx,
			`SELECT q.text,
			        COALESCE(a.text, ''),
			        a.score
			 FROM questions q
			 LEFT JOIN LATERAL (
			     SELECT text, score FROM answers
			     WHERE question_id = q.id
			     ORDER BY created_at DESC LIMIT 1
			 ) a ON true
			 WHERE q.playbook_id = $1
			 ORDER BY q.created_at`,
			p.id,
		)
		if err != nil {
			return "", fmt.Errorf("list questions: %w", err)
		}
		for qrows.Next() {
			var question, answer string
			var score *int
			if err := qrows.Scan(&question, &answer, &score); err != nil {
				qrows.Close()
				return "", fmt.Errorf("scan question: %w", err)
			}
			fmt.Fprintf(&b, "- Q: %s\n", question)
			if answer != "" {
				fmt.Fprintf(&b, "  A: %s\n", answer)
			}
			if score != nil {
				fmt.Fprintf(&b, "  Score: %d\n", *score)
			}
		}
		qrows.Close()
		if err := qrows.Err(); err != nil {
			return "", err
		}
		b.WriteString("\n")
	}

	prows, err := s.db.Query(ctx,
		`SELECT p.name, p.type, pv.template
		 FROM prompts p
		 JOIN prompt_versions pv ON pv.prompt_id = p.id AND pv.version = p.current_version
		 WHERE p.owner_id = $1
		 ORDER BY p.created_at`,
		ownerID,
	)
	if err != nil {
		return "", fmt.Errorf("list prompts: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var name, promptType, template string
		if err := prows.Scan(&name, &promptType, &template); err != nil {
			return "", fmt.Errorf("scan prompt: %w", err)
		}
		fmt.Fprintf(&b, "## Prompt (%s): %s\n%s\n\n", promptType, name, template)
	}
	return b.String(), prows.Err()
}
