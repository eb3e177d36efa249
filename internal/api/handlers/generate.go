package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oplai/backend/internal/generation"
)

type GenerateHandler struct {
	facade *generation.Facade
}

func NewGenerateHandler(facade *generation.Facade) *GenerateHandler {
	return &GenerateHandler{facade: facade}
}

func (h *GenerateHandler) Questions(w http.ResponseWriter, r *http.Request) {
	var req generation.QuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DocumentContent == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_content required"})
		return
	}

	questions, err := h.facade.GenerateQuestions(r.Context(), req)
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

func (h *GenerateHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req generation.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DocumentContent == "" || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_content and question required"})
		return
	}

	answer, err := h.facade.GenerateAnswer(r.Context(), req)
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func writeGenerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generation.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case errors.Is(err, generation.ErrPaymentRequired):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
