package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInterestCalculate computes a tenant's daily interest accruals.
	TaskInterestCalculate = "interest:calculate"
	// TaskInterestPost writes calculated accruals into the ledger.
	TaskInterestPost = "interest:post"
	// TaskLedgerIntegrity verifies every transaction still sums to zero.
	TaskLedgerIntegrity = "ledger:integrity"
)

// InterestBatchPayload identifies one tenant's batch for one business date.
type InterestBatchPayload struct {
	TenantID string `json:"tenantId"`
	Date     string `json:"date"`
	ActorID  string `json:"actorId,omitempty"`
}

// NewInterestCalculateTask constructs an Asynq task.
func NewInterestCalculateTask(payload InterestBatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInterestCalculate, data), nil
}

// NewInterestPostTask constructs an Asynq task.
func NewInterestPostTask(payload InterestBatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInterestPost, data), nil
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}
