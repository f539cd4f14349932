package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
const TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"

const defaultKeyRetention = 30 * 24 * time.Hour

type idempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the nightly cleanup task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	data, err := json.Marshal(idempotencyCleanupPayload{Retention: defaultKeyRetention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencyCleanup, data), nil
}

// KeyCleaner prunes stored idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob runs the retention sweep.
type IdempotencyCleanupJob struct {
	store  KeyCleaner
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store KeyCleaner, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes TaskTypeIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload idempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		payload.Retention = defaultKeyRetention
	}
	if err := j.store.Cleanup(ctx, payload.Retention); err != nil {
		if j.logger != nil {
			j.logger.Error("idempotency cleanup", slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("idempotency cleanup done", slog.Duration("retention", payload.Retention))
	}
	return nil
}
