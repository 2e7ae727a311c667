package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans the validated books for closure and header drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReportsWarmup rebuilds cached trial balances.
	TaskReportsWarmup = "reports:warmup"
	// TaskIdempotencyCleanup drops expired Idempotency-Key records.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// Tasks lists the task types accepted by Build.
var Tasks = []string{TaskLedgerIntegrity, TaskReportsWarmup, TaskIdempotencyCleanup}

// WarmupPayload selects the fiscal years to warm. Empty means every open year.
type WarmupPayload struct {
	FiscalYearIDs []int64 `json:"fiscal_year_ids,omitempty"`
}

// CleanupPayload sets the retention of idempotency keys.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewLedgerIntegrityTask builds the integrity scan task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewReportsWarmupTask builds the warm-up task.
func NewReportsWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(CleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// Build returns the task for a type name with default payloads.
func Build(taskType string) (*asynq.Task, error) {
	switch taskType {
	case TaskLedgerIntegrity:
		return NewLedgerIntegrityTask(), nil
	case TaskReportsWarmup:
		return NewReportsWarmupTask(WarmupPayload{})
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(DefaultKeyRetention)
	}
	return nil, &UnknownTaskError{Type: taskType}
}

// UnknownTaskError reports a task type Build does not know.
type UnknownTaskError struct {
	Type string
}

func (e *UnknownTaskError) Error() string {
	return "jobs: unknown task type " + e.Type
}
