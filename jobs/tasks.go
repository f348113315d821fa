package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatementWarmup precomputes the roster report and primes the
	// serving cache after the billing period rolls over.
	TaskStatementWarmup = "billing:statement_warmup"
)

// StatementWarmupPayload parameterises a warmup run. ReferenceDate is
// optional and follows the same rules as the engine's test-only
// override; production schedules leave it empty.
type StatementWarmupPayload struct {
	ReferenceDate string `json:"reference_date,omitempty"`
}

// NewStatementWarmupTask constructs an Asynq task.
func NewStatementWarmupTask(payload StatementWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementWarmup, data), nil
}
