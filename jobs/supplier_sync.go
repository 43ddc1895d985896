package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/procuredocs/procuredocs/internal/jobs"
	"github.com/procuredocs/procuredocs/internal/shared"
	"github.com/procuredocs/procuredocs/internal/suppliers"
)

const supplierSyncModule = "suppliers.sync"

// Claimer records units of work that have completed.
type Claimer interface {
	Claimed(ctx context.Context, key string) (bool, error)
	Claim(ctx context.Context, key, module string) error
}

// SupplierSyncer is the supplier surface the sync job drives.
type SupplierSyncer interface {
	Resolve(ctx context.Context, accountID, rawName string) (suppliers.Resolution, error)
	Update(ctx context.Context, accountID string, supplierID uuid.UUID, fields suppliers.UpdateFields) (suppliers.Supplier, error)
}

// SupplierSyncJob processes TaskSupplierSync tasks.
type SupplierSyncJob struct {
	Claims    Claimer
	Suppliers SupplierSyncer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewSupplierSyncJob initialises the sync handler.
func NewSupplierSyncJob(claims Claimer, syncer SupplierSyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SupplierSyncJob {
	return &SupplierSyncJob{Claims: claims, Suppliers: syncer, Logger: logger, Metrics: metrics}
}

// Handle resolves the document's supplier and merges its update data. The
// document is recorded as synced only after both steps succeed, so a run that
// fails, panics or is cut short by a crash leaves the document retryable.
func (j *SupplierSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Suppliers == nil || j.Claims == nil {
		return errors.New("supplier sync: handler not configured")
	}
	var payload SupplierSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("supplier sync: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	payload.DocumentID = strings.TrimSpace(payload.DocumentID)
	if payload.DocumentID == "" {
		return fmt.Errorf("supplier sync: documentId required: %w", asynq.SkipRetry)
	}

	var fields suppliers.UpdateFields
	if len(payload.UpdateData) > 0 {
		parsed, err := suppliers.ParseUpdateFields(payload.UpdateData)
		if err != nil {
			return fmt.Errorf("supplier sync: %v: %w", err, asynq.SkipRetry)
		}
		fields = parsed
	}

	logger := j.logger().With(
		slog.String("document_id", payload.DocumentID),
		slog.String("user_id", payload.UserID),
	)
	tracker := j.metrics().Track(TaskSupplierSync)

	key := shared.DocumentSyncKey(payload.DocumentID)
	done, err := j.Claims.Claimed(ctx, key)
	if err != nil {
		return tracker.End(fmt.Errorf("supplier sync: check claim: %w", err))
	}
	if done {
		tracker.Skip("duplicate")
		logger.Info("document already synced")
		return nil
	}

	res, err := j.Suppliers.Resolve(ctx, payload.UserID, payload.SupplierName)
	if err != nil {
		logger.Error("resolve supplier", slog.Any("error", err))
		return tracker.End(permanentIf(err, suppliers.ErrInvalidInput))
	}
	logger = logger.With(slog.String("supplier_id", res.SupplierID.String()), slog.Bool("is_new", res.IsNew))

	if !fields.Empty() {
		if _, err := j.Suppliers.Update(ctx, payload.UserID, res.SupplierID, fields); err != nil {
			logger.Error("update supplier", slog.Any("error", err))
			return tracker.End(permanentIf(err, suppliers.ErrInvalidInput, suppliers.ErrConflict))
		}
	}

	// A concurrent run of the same document may have recorded it first; both
	// applied the same idempotent merge.
	if err := j.Claims.Claim(ctx, key, supplierSyncModule); err != nil && !errors.Is(err, shared.ErrAlreadyClaimed) {
		logger.Error("record document sync", slog.Any("error", err))
		return tracker.End(fmt.Errorf("supplier sync: claim: %w", err))
	}
	logger.Info("document synced")
	return tracker.End(nil)
}

func (j *SupplierSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSupplierSync))
	}
	return slog.Default().With(slog.String("job", TaskSupplierSync))
}

func (j *SupplierSyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// permanentIf marks err as non-retryable when it matches one of targets.
func permanentIf(err error, targets ...error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
	}
	return err
}
