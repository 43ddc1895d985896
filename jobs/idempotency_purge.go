package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/procuredocs/procuredocs/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultPurgeWindow = 30 * 24 * time.Hour

// Purger deletes claims older than a window.
type Purger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyPurgeJob processes TaskIdempotencyPurge tasks.
type IdempotencyPurgeJob struct {
	Store   Purger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyPurgeJob initialises the purge handler.
func NewIdempotencyPurgeJob(store Purger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyPurgeJob {
	return &IdempotencyPurgeJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle removes claims older than the payload window.
func (j *IdempotencyPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency purge: handler not configured")
	}
	var payload IdempotencyPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency purge: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	window := defaultPurgeWindow
	if payload.OlderThanHours > 0 {
		window = time.Duration(payload.OlderThanHours) * time.Hour
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyPurge)
	removed, err := j.Store.Purge(ctx, window)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Error("purge idempotency keys", slog.String("job", TaskIdempotencyPurge), slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("purged idempotency keys",
		slog.String("job", TaskIdempotencyPurge),
		slog.Int64("removed", removed),
		slog.Duration("window", window),
	)
	return tracker.End(nil)
}
