package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryReconcile recomputes ledger sums and compares them to the
	// materialized stock balances.
	TaskInventoryReconcile = "inventory:reconcile"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// ReconcilePayload narrows a reconcile run to one store; zero means all.
type ReconcilePayload struct {
	StoreID int64 `json:"store_id,omitempty"`
}

// NewInventoryReconcileTask constructs the reconcile task.
func NewInventoryReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryReconcile, data), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
