package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerExpiryWarmup pre-computes the availability view for the
	// upcoming days so morning candidate listings hit a warm cache.
	TaskLedgerExpiryWarmup = "ledger:expiry_warmup"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// ExpiryWarmupPayload scopes one warmup run.
type ExpiryWarmupPayload struct {
	// DaysAhead warms today plus this many following days. Zero warms
	// today only.
	DaysAhead int `json:"days_ahead"`
}

// NewExpiryWarmupTask constructs an Asynq task.
func NewExpiryWarmupTask(payload ExpiryWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerExpiryWarmup, data), nil
}

// IdempotencyCleanupPayload scopes one cleanup run.
type IdempotencyCleanupPayload struct {
	// MaxAgeHours prunes keys older than this. Zero defaults to 72.
	MaxAgeHours int `json:"max_age_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
