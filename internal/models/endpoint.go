package models

import (
	"time"

	"github.com/google/uuid"
)

// GoldenDatasetName is the one endpoint auto-provisioned per user. It
// cannot be deactivated or deleted and always serves every playbook the
// user owns, regardless of SelectedPlaybookIDs.
const GoldenDatasetName = "Golden Datasets API"

// DataPoints selects which fields each playbook result includes. Title and
// playbook ID are always included.
type DataPoints struct {
	Content    bool `json:"content"`
	Questions  bool `json:"questions"`
	Answers    bool `json:"answers"`
	Scores     bool `json:"scores"`
	CreatedAt  bool `json:"created_at"`
	UpdatedAt  bool `json:"updated_at"`
}

// APIEndpoint is a user-defined, filterable read-only export view over the
// user's playbook data, served to anyone who holds its ID.
type APIEndpoint struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	OwnerID             uuid.UUID  `json:"owner_id" db:"owner_id"`
	Name                string     `json:"name" db:"name"`
	IsActive            bool       `json:"is_active" db:"is_active"`
	SelectedPlaybookIDs []string   `json:"selected_playbook_ids" db:"selected_playbook_ids"`
	DataPoints          DataPoints `json:"data_points" db:"data_points"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

func (e *APIEndpoint) IsGolden() bool {
	return e.Name == GoldenDatasetName
}
