package queue

import "github.com/oplai/backend/internal/sync"

const (
	TypeSyncReconcile = "sync:reconcile"
	TypeDriveSync     = "drive:sync"
)

type SyncReconcilePayload struct {
	UserID    string               `json:"user_id"`
	Playbooks []sync.DraftPlaybook `json:"playbooks"`
}

type DriveSyncPayload struct {
	UserID string `json:"user_id"`
}
