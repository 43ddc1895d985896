package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procuredocs/procuredocs/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSupplierSync resolves the supplier of one extracted document and
	// merges its derived fields.
	TaskSupplierSync = "suppliers:sync-document"
	// TaskIdempotencyPurge removes old idempotency claims.
	TaskIdempotencyPurge = "maintenance:idempotency-purge"

	supplierSyncMaxRetry = 5
	supplierSyncTimeout  = 30 * time.Second
)

// SupplierSyncPayload carries the extraction output for one document.
type SupplierSyncPayload struct {
	DocumentID   string                     `json:"documentId"`
	UserID       string                     `json:"userId"`
	SupplierName string                     `json:"supplierName"`
	UpdateData   map[string]json.RawMessage `json:"updateData,omitempty"`
}

// NewSupplierSyncTask builds a supplier sync task. The task id is derived from
// the document so a document cannot be queued twice at once.
func NewSupplierSyncTask(payload SupplierSyncPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSupplierSync, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(shared.DocumentSyncKey(payload.DocumentID)),
		asynq.MaxRetry(supplierSyncMaxRetry),
		asynq.Timeout(supplierSyncTimeout),
	), nil
}

// IdempotencyPurgePayload configures the purge window.
type IdempotencyPurgePayload struct {
	OlderThanHours int `json:"olderThanHours"`
}

// NewIdempotencyPurgeTask builds a purge task.
func NewIdempotencyPurgeTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyPurgePayload{OlderThanHours: int(olderThan / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyPurge, body, asynq.Queue(QueueDefault)), nil
}
