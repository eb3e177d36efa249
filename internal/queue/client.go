package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/oplai/backend/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Reconciliation is best-effort: a failed run is dropped, not retried, and
// the next session load submits a fresh draft snapshot anyway.
func (c *Client) EnqueueSyncReconcile(payload SyncReconcilePayload) error {
	return c.enqueue(TypeSyncReconcile, payload, asynq.MaxRetry(0), asynq.Timeout(5*time.Minute))
}

func (c *Client) EnqueueDriveSync(payload DriveSyncPayload) error {
	return c.enqueue(TypeDriveSync, payload, asynq.MaxRetry(0), asynq.Timeout(10*time.Minute))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
