package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oplai/backend/internal/audit"
	"github.com/oplai/backend/internal/llm"
	"github.com/oplai/backend/internal/models"
)

var (
	ErrRateLimited     = errors.New("the AI provider is rate limiting requests, try again in a moment")
	ErrPaymentRequired = errors.New("the AI provider account has run out of credit")
)

const (
	defaultQuestionPrompt = "You are an evaluation designer. Read the document and produce %d " +
		"concise evaluation questions that test understanding of its content. " +
		"Reply with a JSON array of strings and nothing else."

	defaultAnswerPrompt = "You are an expert assistant. Answer the question using only the " +
		"provided document. Reply with the answer text and nothing else."

	defaultQuestionCount = 5
)

// PromptSource resolves the active system prompt of a given type, when one
// exists.
type PromptSource interface {
	ActiveTemplate(ctx context.Context, promptType string) (string, error)
}

// Facade wraps the LLM gateway behind the two generation operations the
// editor needs. Calls are single-shot; a failure is terminal for that user
// action.
type Facade struct {
	gateway      llm.Gateway
	prompts      PromptSource
	audit        *audit.Service
	defaultModel string
}

func NewFacade(gw llm.Gateway, prompts PromptSource, auditSvc *audit.Service, defaultModel string) *Facade {
	return &Facade{
		gateway:      gw,
		prompts:      prompts,
		audit:        auditSvc,
		defaultModel: defaultModel,
	}
}

type QuestionsRequest struct {
	DocumentContent    string   `json:"document_content"`
	AuxiliaryDocuments []string `json:"auxiliary_documents,omitempty"`
	CustomSystemPrompt string   `json:"custom_system_prompt,omitempty"`
	Provider           string   `json:"llm_provider,omitempty"`
	Count              int      `json:"count,omitempty"`
}

// GenerateQuestions asks the model for evaluation questions over the
// document text. The reply is expected to be a JSON array of strings; a
// non-JSON reply is line-split instead, stripping list markers and quotes
// and truncating to the requested count.
func (f *Facade) GenerateQuestions(ctx context.Context, req QuestionsRequest) ([]string, error) {
	count := req.Count
	if count <= 0 {
		count = defaultQuestionCount
	}

	system := req.CustomSystemPrompt
	if system == "" {
		system = f.activePrompt(ctx, models.PromptTypeQuestion)
	}
	if system == "" {
		system = fmt.Sprintf(defaultQuestionPrompt, count)
	}

	doc := req.DocumentContent
	if len(req.AuxiliaryDocuments) > 0 {
		doc = doc + "\n\n" + strings.Join(req.AuxiliaryDocuments, "\n\n")
	}

	resp, err := f.chat(ctx, req.Provider, system, doc, "generate-questions")
	if err != nil {
		return nil, mapGatewayError(err)
	}

	return ParseQuestions(resp.Content, count), nil
}

type AnswerRequest struct {
	DocumentContent    string `json:"document_content"`
	Question           string `json:"question"`
	CustomSystemPrompt string `json:"custom_system_prompt,omitempty"`
	Provider           string `json:"llm_provider,omitempty"`
}

// GenerateAnswer returns the model's reply verbatim, no parsing.
func (f *Facade) GenerateAnswer(ctx context.Context, req AnswerRequest) (string, error) {
	system := req.CustomSystemPrompt
	if system == "" {
		system = f.activePrompt(ctx, models.PromptTypeAnswer)
	}
	if system == "" {
		system = defaultAnswerPrompt
	}

	user := fmt.Sprintf("Document:\n%s\n\nQuestion: %s", req.DocumentContent, req.Question)

	resp, err := f.chat(ctx, req.Provider, system, user, "get-answer")
	if err != nil {
		return "", mapGatewayError(err)
	}
	return resp.Content, nil
}

func (f *Facade) chat(ctx context.Context, provider, system, user, endpoint string) (*llm.ChatResponse, error) {
	resp, err := f.gateway.Chat(ctx, llm.ChatRequest{
		Provider: provider,
		Model:    f.defaultModel,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return nil, err
	}

	if f.audit != nil {
		if err := f.audit.LogLLMUsage(ctx, models.LLMUsageLog{
			Provider:     resp.Provider,
			Model:        resp.Model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			TotalTokens:  resp.TotalTokens,
			CostUSD:      resp.CostUSD,
			LatencyMs:    resp.LatencyMs,
			Endpoint:     endpoint,
		}); err != nil {
			slog.Warn("usage log failed", "endpoint", endpoint, "error", err)
		}
	}
	return resp, nil
}

func (f *Facade) activePrompt(ctx context.Context, promptType string) string {
	if f.prompts == nil {
		return ""
	}
	tmpl, err := f.prompts.ActiveTemplate(ctx, promptType)
	if err != nil {
		return ""
	}
	return tmpl
}

// ParseQuestions extracts a question list from a model reply. It tries the
// expected JSON array first, then a fenced or embedded array, then falls
// back to splitting lines. Empty-ish and bracket-only lines are always
// dropped.
func ParseQuestions(raw string, count int) []string {
	if qs, ok := parseJSONArray(raw); ok {
		return filterQuestions(qs, 0)
	}

	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripListMarker(line))
	}
	return filterQuestions(cleaned, count)
}

func parseJSONArray(raw string) ([]string, bool) {
	candidates := []string{strings.TrimSpace(raw)}
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}
	for _, c := range candidates {
		var qs []string
		if err := json.Unmarshal([]byte(c), &qs); err == nil && len(qs) > 0 {
			return qs, true
		}
	}
	return nil, false
}

func stripListMarker(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "-*• \t")
	// numbered list markers: "1.", "2)", "10."
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSuffix(strings.TrimSpace(s), ",")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func filterQuestions(qs []string, limit int) []string {
	var out []string
	for _, q := range qs {
		q = strings.TrimSpace(q)
		if len(q) < 3 {
			continue
		}
		if strings.Trim(q, "[]{}()`") == "" {
			continue
		}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func mapGatewayError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return ErrRateLimited
		case 402:
			return ErrPaymentRequired
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit"):
		return ErrRateLimited
	case strings.Contains(msg, "402") || strings.Contains(strings.ToLower(msg), "payment"):
		return ErrPaymentRequired
	}
	return err
}
