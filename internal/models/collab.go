package models

import (
	"time"

	"github.com/google/uuid"
)

const RoleEditor = "editor"

type Collaborator struct {
	ID         uuid.UUID `json:"id" db:"id"`
	PlaybookID uuid.UUID `json:"playbook_id" db:"playbook_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Role       string    `json:"role" db:"role"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ShareToken is a capability string granting editor access to one playbook.
// Tokens stay valid until deactivated or expired; redemption does not
// consume them.
type ShareToken struct {
	Token      string     `json:"token" db:"token"`
	PlaybookID uuid.UUID  `json:"playbook_id" db:"playbook_id"`
	CreatedBy  uuid.UUID  `json:"created_by" db:"created_by"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
