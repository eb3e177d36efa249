package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PromptTypeQuestion = "question"
	PromptTypeAnswer   = "answer"
)

// Prompt is a named, typed container for system-prompt text. At most one
// prompt per type is active at a time; the invariant is enforced in
// application code, not the schema.
type Prompt struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OwnerID        uuid.UUID `json:"owner_id" db:"owner_id"`
	Name           string    `json:"name" db:"name"`
	Type           string    `json:"type" db:"type"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CurrentVersion int       `json:"current_version" db:"current_version"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PromptVersion is an immutable, monotonically numbered snapshot of prompt
// text.
type PromptVersion struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PromptID  uuid.UUID `json:"prompt_id" db:"prompt_id"`
	Version   int       `json:"version" db:"version"`
	Template  string    `json:"template" db:"template"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
