package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/procuredocs/procuredocs/internal/jobs"
	"github.com/procuredocs/procuredocs/internal/shared"
	"github.com/procuredocs/procuredocs/internal/suppliers"
)

type fakeClaims struct {
	mu       sync.Mutex
	claimed  map[string]string
	claimErr error
	checkErr error
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{claimed: make(map[string]string)}
}

func (f *fakeClaims) Claim(ctx context.Context, key, module string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	if _, ok := f.claimed[key]; ok {
		return shared.ErrAlreadyClaimed
	}
	f.claimed[key] = module
	return nil
}

func (f *fakeClaims) Claimed(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return false, f.checkErr
	}
	_, ok := f.claimed[key]
	return ok, nil
}

func (f *fakeClaims) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.claimed[key]
	return ok
}

type fakeSyncer struct {
	panicOnce  bool
	resolves   int
	updates    []suppliers.UpdateFields
	resolveErr error
	updateErr  error
	supplierID uuid.UUID
}

func (f *fakeSyncer) Resolve(ctx context.Context, accountID, rawName string) (suppliers.Resolution, error) {
	f.resolves++
	if f.panicOnce {
		f.panicOnce = false
		panic("resolver crashed")
	}
	if f.resolveErr != nil {
		return suppliers.Resolution{}, f.resolveErr
	}
	return suppliers.Resolution{SupplierID: f.supplierID, IsNew: f.resolves == 1}, nil
}

func (f *fakeSyncer) Update(ctx context.Context, accountID string, supplierID uuid.UUID, fields suppliers.UpdateFields) (suppliers.Supplier, error) {
	f.updates = append(f.updates, fields)
	if f.updateErr != nil {
		return suppliers.Supplier{}, f.updateErr
	}
	return suppliers.Supplier{ID: supplierID}, nil
}

func syncTask(t *testing.T, payload SupplierSyncPayload) *asynq.Task {
	t.Helper()
	task, err := NewSupplierSyncTask(payload)
	require.NoError(t, err)
	return task
}

func newSyncJob(claims *fakeClaims, syncer *fakeSyncer) *SupplierSyncJob {
	return NewSupplierSyncJob(claims, syncer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
}

func TestSupplierSyncResolvesAndUpdates(t *testing.T) {
	claims := newFakeClaims()
	syncer := &fakeSyncer{supplierID: uuid.New()}
	job := newSyncJob(claims, syncer)

	task := syncTask(t, SupplierSyncPayload{
		DocumentID:   "doc-1",
		UserID:       "u1",
		SupplierName: "Acme",
		UpdateData:   map[string]json.RawMessage{"status": json.RawMessage(`"inactive"`)},
	})
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 1, syncer.resolves)
	require.Len(t, syncer.updates, 1)
	require.NotNil(t, syncer.updates[0].Status)
	assert.Equal(t, suppliers.StatusInactive, *syncer.updates[0].Status)
	assert.Equal(t, supplierSyncModule, claims.claimed[shared.DocumentSyncKey("doc-1")])
}

func TestSupplierSyncSkipsDuplicateDocument(t *testing.T) {
	claims := newFakeClaims()
	syncer := &fakeSyncer{supplierID: uuid.New()}
	job := newSyncJob(claims, syncer)
	task := syncTask(t, SupplierSyncPayload{DocumentID: "doc-1", UserID: "u1", SupplierName: "Acme"})

	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, syncer.resolves)
	assert.Empty(t, syncer.updates)
}

func TestSupplierSyncLeavesDocumentUnclaimedOnFailure(t *testing.T) {
	claims := newFakeClaims()
	storeErr := errors.New("connection reset")
	syncer := &fakeSyncer{resolveErr: errors.Join(suppliers.ErrSearchFailed, storeErr)}
	job := newSyncJob(claims, syncer)
	task := syncTask(t, SupplierSyncPayload{DocumentID: "doc-2", UserID: "u1", SupplierName: "Acme"})

	err := job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, suppliers.ErrSearchFailed)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.False(t, claims.has(shared.DocumentSyncKey("doc-2")))

	syncer.resolveErr = nil
	syncer.supplierID = uuid.New()
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestSupplierSyncPermanentFailures(t *testing.T) {
	t.Run("malformed payload", func(t *testing.T) {
		job := newSyncJob(newFakeClaims(), &fakeSyncer{})
		err := job.Handle(context.Background(), asynq.NewTask(TaskSupplierSync, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("missing document id", func(t *testing.T) {
		job := newSyncJob(newFakeClaims(), &fakeSyncer{})
		err := job.Handle(context.Background(), syncTask(t, SupplierSyncPayload{UserID: "u1", SupplierName: "Acme"}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("unknown update field", func(t *testing.T) {
		syncer := &fakeSyncer{}
		job := newSyncJob(newFakeClaims(), syncer)
		err := job.Handle(context.Background(), syncTask(t, SupplierSyncPayload{
			DocumentID:   "doc-3",
			UserID:       "u1",
			SupplierName: "Acme",
			UpdateData:   map[string]json.RawMessage{"colour": json.RawMessage(`"red"`)},
		}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Zero(t, syncer.resolves)
	})

	t.Run("invalid resolver input", func(t *testing.T) {
		claims := newFakeClaims()
		syncer := &fakeSyncer{resolveErr: suppliers.ErrInvalidInput}
		job := newSyncJob(claims, syncer)
		err := job.Handle(context.Background(), syncTask(t, SupplierSyncPayload{DocumentID: "doc-4", UserID: "u1"}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, suppliers.ErrInvalidInput)
		assert.Empty(t, claims.claimed)
	})

	t.Run("rename conflict", func(t *testing.T) {
		syncer := &fakeSyncer{supplierID: uuid.New(), updateErr: suppliers.ErrConflict}
		job := newSyncJob(newFakeClaims(), syncer)
		err := job.Handle(context.Background(), syncTask(t, SupplierSyncPayload{
			DocumentID:   "doc-5",
			UserID:       "u1",
			SupplierName: "Acme",
			UpdateData:   map[string]json.RawMessage{"name": json.RawMessage(`"Globex"`)},
		}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestSupplierSyncClaimFailureIsRetryable(t *testing.T) {
	t.Run("check fails", func(t *testing.T) {
		claims := newFakeClaims()
		claims.checkErr = errors.New("pool closed")
		syncer := &fakeSyncer{}
		job := newSyncJob(claims, syncer)

		err := job.Handle(context.Background(), syncTask(t, SupplierSyncPayload{DocumentID: "doc-6", UserID: "u1", SupplierName: "Acme"}))
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
		assert.Zero(t, syncer.resolves)
	})

	t.Run("record fails after sync", func(t *testing.T) {
		claims := newFakeClaims()
		claims.claimErr = errors.New("pool closed")
		syncer := &fakeSyncer{supplierID: uuid.New()}
		job := newSyncJob(claims, syncer)

		err := job.Handle(context.Background(), syncTask(t, SupplierSyncPayload{DocumentID: "doc-6", UserID: "u1", SupplierName: "Acme"}))
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
		assert.Equal(t, 1, syncer.resolves)
	})
}

func TestSupplierSyncRetriesAfterPanic(t *testing.T) {
	claims := newFakeClaims()
	syncer := &fakeSyncer{supplierID: uuid.New(), panicOnce: true}
	job := newSyncJob(claims, syncer)
	task := syncTask(t, SupplierSyncPayload{DocumentID: "doc-8", UserID: "u1", SupplierName: "Acme"})

	require.Panics(t, func() { _ = job.Handle(context.Background(), task) })
	assert.False(t, claims.has(shared.DocumentSyncKey("doc-8")))

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 2, syncer.resolves)
	assert.True(t, claims.has(shared.DocumentSyncKey("doc-8")))
}

func TestSupplierSyncConcurrentRunRecordedFirst(t *testing.T) {
	claims := newFakeClaims()
	syncer := &fakeSyncer{supplierID: uuid.New()}
	job := newSyncJob(claims, syncer)
	job.Suppliers = recordingSyncer{fakeSyncer: syncer, onResolve: func() {
		_ = claims.Claim(context.Background(), shared.DocumentSyncKey("doc-9"), supplierSyncModule)
	}}

	require.NoError(t, job.Handle(context.Background(), syncTask(t, SupplierSyncPayload{DocumentID: "doc-9", UserID: "u1", SupplierName: "Acme"})))
	assert.Equal(t, 1, syncer.resolves)
}

// recordingSyncer runs onResolve before delegating, standing in for another
// worker finishing the same document mid-run.
type recordingSyncer struct {
	*fakeSyncer
	onResolve func()
}

func (r recordingSyncer) Resolve(ctx context.Context, accountID, rawName string) (suppliers.Resolution, error) {
	r.onResolve()
	return r.fakeSyncer.Resolve(ctx, accountID, rawName)
}

func TestSupplierSyncTaskOptions(t *testing.T) {
	task := syncTask(t, SupplierSyncPayload{DocumentID: "doc-7", UserID: "u1", SupplierName: "Acme"})
	assert.Equal(t, TaskSupplierSync, task.Type())

	var decoded SupplierSyncPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, "doc-7", decoded.DocumentID)
	assert.Nil(t, decoded.UpdateData)
}

type fakePurger struct {
	window time.Duration
	err    error
}

func (f *fakePurger) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.window = olderThan
	return 3, f.err
}

func TestIdempotencyPurge(t *testing.T) {
	purger := &fakePurger{}
	job := NewIdempotencyPurgeJob(purger, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyPurgeTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, purger.window)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyPurge, nil)))
	assert.Equal(t, defaultPurgeWindow, purger.window)

	purger.err = errors.New("boom")
	assert.Error(t, job.Handle(context.Background(), task))
}
