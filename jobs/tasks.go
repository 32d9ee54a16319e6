package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeDepreciationRun posts all depreciation rows due as of a date.
	TaskTypeDepreciationRun = "assets:depreciation"
	// TaskTypeGLIntegrity verifies per-period debit and credit balance.
	TaskTypeGLIntegrity = "ledger:integrity"
)

// DepreciationPayload carries the cutoff date for a depreciation run.
type DepreciationPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewDepreciationTask constructs an Asynq task for the depreciation run. A
// zero AsOf means "enqueue time", resolved when the handler runs.
func NewDepreciationTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(DepreciationPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDepreciationRun, body, asynq.Queue(QueueDefault)), nil
}

// GLIntegrityPayload carries scheduling metadata.
type GLIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewGLIntegrityTask constructs an Asynq task for the ledger integrity check.
func NewGLIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(GLIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGLIntegrity, body, asynq.Queue(QueueDefault)), nil
}
