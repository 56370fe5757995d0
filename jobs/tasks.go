// Package jobs hosts background task definitions and the asynq worker
// that runs them.
package jobs

import (
	"github.com/hibiken/asynq"
)

// Task type names registered with asynq.
const (
	// TaskProcurementIntegrity rescans stored order statuses and invoice
	// paid amounts against their underlying rows.
	TaskProcurementIntegrity = "procurement:integrity"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// NewIntegrityTask builds the integrity scan task.
func NewIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskProcurementIntegrity, nil, asynq.MaxRetry(3))
}

// NewIdempotencyCleanupTask builds the idempotency cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.MaxRetry(1))
}
