package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup precomputes report summaries for the named
	// ranges of every business.
	TaskReportsWarmup = "reports:warmup"
)

// ReportsWarmupPayload scopes a warmup run. A zero BusinessID warms
// every business.
type ReportsWarmupPayload struct {
	BusinessID int64 `json:"business_id,omitempty"`
}

// NewReportsWarmupTask constructs an Asynq task.
func NewReportsWarmupTask(payload ReportsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}
