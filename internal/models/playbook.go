package models

import (
	"time"

	"github.com/google/uuid"
)

type Playbook struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Question struct {
	ID         uuid.UUID `json:"id" db:"id"`
	PlaybookID uuid.UUID `json:"playbook_id" db:"playbook_id"`
	Text       string    `json:"text" db:"text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Answer carries both a 0-100 score and a thumbs-up flag. The two are set
// by independent UI affordances and may disagree; neither is derived from
// the other.
type Answer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	QuestionID uuid.UUID `json:"question_id" db:"question_id"`
	Text       string    `json:"text" db:"text"`
	Score      *int      `json:"score,omitempty" db:"score"`
	ThumbsUp   *bool     `json:"thumbs_up,omitempty" db:"thumbs_up"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
