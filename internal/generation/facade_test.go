package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplai/backend/internal/llm"
)

type fakeGateway struct {
	lastReq llm.ChatRequest
	content string
	err     error
}

func (f *fakeGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Provider: "openai", Model: req.Model, Content: f.content}, nil
}

func (f *fakeGateway) ChatStream(context.Context, llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) Provider(string) (llm.Provider, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) ListModels() []llm.ModelInfo { return nil }

type fakePrompts struct {
	templates map[string]string
}

func (f *fakePrompts) ActiveTemplate(_ context.Context, promptType string) (string, error) {
	return f.templates[promptType], nil
}

func TestGenerateQuestionsParsesJSONArray(t *testing.T) {
	gw := &fakeGateway{content: `["What is the SLA?", "Who is on call?"]`}
	f := NewFacade(gw, nil, nil, "gpt-4o-mini")

	qs, err := f.GenerateQuestions(context.Background(), QuestionsRequest{DocumentContent: "doc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"What is the SLA?", "Who is on call?"}, qs)
	assert.Equal(t, "gpt-4o-mini", gw.lastReq.Model)
}

func TestGenerateQuestionsUsesCustomPromptOverActive(t *testing.T) {
	gw := &fakeGateway{content: `["q1?"]`}
	prompts := &fakePrompts{templates: map[string]string{"question": "active template"}}
	f := NewFacade(gw, prompts, nil, "m")

	_, err := f.GenerateQuestions(context.Background(), QuestionsRequest{
		DocumentContent:    "doc",
		CustomSystemPrompt: "custom",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom", gw.lastReq.Messages[0].Content)

	_, err = f.GenerateQuestions(context.Background(), QuestionsRequest{DocumentContent: "doc"})
	require.NoError(t, err)
	assert.Equal(t, "active template", gw.lastReq.Messages[0].Content)
}

func TestGenerateQuestionsAppendsAuxiliaryDocuments(t *testing.T) {
	gw := &fakeGateway{content: `["q1?"]`}
	f := NewFacade(gw, nil, nil, "m")

	_, err := f.GenerateQuestions(context.Background(), QuestionsRequest{
		DocumentContent:    "main",
		AuxiliaryDocuments: []string{"aux one", "aux two"},
	})
	require.NoError(t, err)
	assert.Equal(t, "main\n\naux one\n\naux two", gw.lastReq.Messages[1].Content)
}

func TestGenerateQuestionsRateLimited(t *testing.T) {
	gw := &fakeGateway{err: &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}}
	f := NewFacade(gw, nil, nil, "m")

	_, err := f.GenerateQuestions(context.Background(), QuestionsRequest{DocumentContent: "doc"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGenerateQuestionsPaymentRequired(t *testing.T) {
	gw := &fakeGateway{err: &openai.APIError{HTTPStatusCode: 402, Message: "no credit"}}
	f := NewFacade(gw, nil, nil, "m")

	_, err := f.GenerateQuestions(context.Background(), QuestionsRequest{DocumentContent: "doc"})
	assert.ErrorIs(t, err, ErrPaymentRequired)
}

func TestMapGatewayErrorStringFallback(t *testing.T) {
	assert.ErrorIs(t, mapGatewayError(errors.New("upstream said: rate limit exceeded")), ErrRateLimited)
	assert.ErrorIs(t, mapGatewayError(errors.New("status 402 from provider")), ErrPaymentRequired)

	plain := errors.New("connection refused")
	assert.Equal(t, plain, mapGatewayError(plain))
}

func TestGenerateAnswerVerbatim(t *testing.T) {
	gw := &fakeGateway{content: "  The SLA is 24 hours.\n"}
	f := NewFacade(gw, nil, nil, "m")

	out, err := f.GenerateAnswer(context.Background(), AnswerRequest{
		DocumentContent: "doc body",
		Question:        "What is the SLA?",
	})
	require.NoError(t, err)
	assert.Equal(t, "  The SLA is 24 hours.\n", out, "answers are not trimmed or parsed")
	assert.Equal(t, "Document:\ndoc body\n\nQuestion: What is the SLA?", gw.lastReq.Messages[1].Content)
}

func TestParseQuestionsEmbeddedArray(t *testing.T) {
	raw := "Here are your questions:\n```json\n[\"q one?\", \"q two?\"]\n```"
	qs := ParseQuestions(raw, 5)
	assert.Equal(t, []string{"q one?", "q two?"}, qs)
}

func TestParseQuestionsLineFallback(t *testing.T) {
	raw := strings.Join([]string{
		"1. What is the deployment process?",
		"2) \"Who approves releases?\",",
		"- How are incidents escalated?",
		"* 'Where do runbooks live?'",
		"[]",
		"ok", // too short
		"",
	}, "\n")

	qs := ParseQuestions(raw, 10)
	assert.Equal(t, []string{
		"What is the deployment process?",
		"Who approves releases?",
		"How are incidents escalated?",
		"Where do runbooks live?",
	}, qs)
}

func TestParseQuestionsFallbackTruncatesToCount(t *testing.T) {
	raw := "1. first question?\n2. second question?\n3. third question?"
	qs := ParseQuestions(raw, 2)
	assert.Equal(t, []string{"first question?", "second question?"}, qs)
}

func TestParseQuestionsJSONArrayNotTruncated(t *testing.T) {
	// count applies to the line fallback only; a well-formed array is
	// returned in full
	qs := ParseQuestions(`["one?","two?","three?"]`, 2)
	assert.Len(t, qs, 3)
}
