package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReconcileAggregates recomputes monthly aggregates from posted
	// requests and repairs drift.
	TaskReconcileAggregates = "adjustment:reconcile_aggregates"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// ReconcileAggregatesPayload scopes a reconciliation run. Empty fields mean
// all divisions or all months.
type ReconcileAggregatesPayload struct {
	Division string `json:"division"`
	Month    string `json:"month"`
}

// NewReconcileAggregatesTask constructs the reconciliation task.
func NewReconcileAggregatesTask(division, month string) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcileAggregatesPayload{Division: division, Month: month})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileAggregates, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}
