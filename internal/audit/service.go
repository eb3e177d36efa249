package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oplai/backend/internal/models"
	"github.com/oplai/backend/internal/session"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type LogEntry struct {
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
}

func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	var userID *uuid.UUID
	if id := session.UserIDFromContext(ctx); id != uuid.Nil {
		userID = &id
	}

	details, _ := json.Marshal(entry.Details)

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (user_id, action, resource_type, resource_id, details)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, entry.Action, entry.ResourceType, entry.ResourceID, details,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Service) LogLLMUsage(ctx context.Context, record models.LLMUsageLog) error {
	var userID *uuid.UUID
	if id := session.UserIDFromContext(ctx); id != uuid.Nil {
		userID = &id
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO llm_usage_logs (user_id, provider, model, input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, endpoint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, record.Provider, record.Model, record.InputTokens, record.OutputTokens,
		record.TotalTokens, record.CostUSD, record.LatencyMs, record.Endpoint,
	)
	if err != nil {
		return fmt.Errorf("insert llm usage log: %w", err)
	}
	return nil
}
