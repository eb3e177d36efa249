package models

import (
	"time"

	"github.com/google/uuid"
)

const ProviderGoogleDrive = "google_drive"

// DataSource holds one cloud-storage connection per (user, provider).
type DataSource struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Provider     string    `json:"provider" db:"provider"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	TokenExpiry  time.Time `json:"token_expiry" db:"token_expiry"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SyncedFile is upserted on each sync pass, unique per
// (data_source_id, provider_file_id).
type SyncedFile struct {
	ID             uuid.UUID `json:"id" db:"id"`
	DataSourceID   uuid.UUID `json:"data_source_id" db:"data_source_id"`
	ProviderFileID string    `json:"provider_file_id" db:"provider_file_id"`
	FileName       string    `json:"file_name" db:"file_name"`
	FileType       string    `json:"file_type" db:"file_type"`
	FileSize       int64     `json:"file_size" db:"file_size"`
	Content        string    `json:"content,omitempty" db:"content"`
	SyncedAt       time.Time `json:"synced_at" db:"synced_at"`
}
