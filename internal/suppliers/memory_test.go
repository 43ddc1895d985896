package suppliers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memoryRepo is an in-memory Repository mirroring the Postgres semantics:
// per-account resolve locks and a unique (user_id, normalized_name) key.
type memoryRepo struct {
	mu        sync.Mutex
	suppliers []Supplier
	locks     map[string]*sync.Mutex
	clock     *stepClock

	// noLock disables the resolve lock so the unique key alone must
	// collapse concurrent creates.
	noLock        bool
	searchBarrier *sync.WaitGroup

	searchErr error
	insertErr error
	updateErr error
	inserts   int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		locks: make(map[string]*sync.Mutex),
		clock: newStepClock(),
	}
}

func (r *memoryRepo) seed(accountID, name string) Supplier {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Supplier{
		ID:             uuid.New(),
		UserID:         accountID,
		Name:           name,
		NormalizedName: NormalizeName(name),
		Status:         StatusActive,
		CreatedAt:      r.clock.Now(),
	}
	r.suppliers = append(r.suppliers, s)
	return s
}

func (r *memoryRepo) count(accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.suppliers {
		if s.UserID == accountID {
			n++
		}
	}
	return n
}

func (r *memoryRepo) accountLock(accountID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[accountID] = l
	}
	return l
}

func (r *memoryRepo) WithResolveLock(ctx context.Context, accountID string, fn func(context.Context, TxRepository) error) error {
	if !r.noLock {
		l := r.accountLock(accountID)
		l.Lock()
		defer l.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &memoryTx{repo: r})
}

func (tx *memoryTx) SearchByName(ctx context.Context, accountID, name string) ([]Supplier, error) {
	r := tx.repo
	if r.searchBarrier != nil {
		r.searchBarrier.Done()
		r.searchBarrier.Wait()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	var out []Supplier
	// Newest first, so callers cannot rely on store order.
	for i := len(r.suppliers) - 1; i >= 0; i-- {
		s := r.suppliers[i]
		if s.UserID == accountID && matchesName(s.Name, name) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertOrGet(ctx context.Context, in NewSupplier) (Supplier, bool, error) {
	r := tx.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return Supplier{}, false, r.insertErr
	}
	for _, s := range r.suppliers {
		if s.UserID == in.UserID && s.NormalizedName == in.NormalizedName {
			return s, false, nil
		}
	}
	s := Supplier{
		ID:                uuid.New(),
		UserID:            in.UserID,
		Name:              in.Name,
		NormalizedName:    in.NormalizedName,
		Status:            StatusActive,
		PerformanceRating: decimal.Zero,
		TotalSpend:        decimal.Zero,
		CreatedAt:         r.clock.Now(),
	}
	r.suppliers = append(r.suppliers, s)
	r.inserts++
	return s, true, nil
}

func (r *memoryRepo) Get(ctx context.Context, accountID string, id uuid.UUID) (Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.suppliers {
		if s.UserID == accountID && s.ID == id {
			return s, nil
		}
	}
	return Supplier{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, accountID string, filters ListFilters) ([]Supplier, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Supplier
	for _, s := range r.suppliers {
		if s.UserID != accountID {
			continue
		}
		if filters.Search != "" && !matchesName(s.Name, filters.Search) {
			continue
		}
		if filters.Status != nil && s.Status != *filters.Status {
			continue
		}
		matched = append(matched, s)
	}
	total := len(matched)
	start := filters.offset()
	if start > total {
		start = total
	}
	end := start + filters.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memoryRepo) Update(ctx context.Context, accountID string, id uuid.UUID, fields UpdateFields, at time.Time) (Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return Supplier{}, r.updateErr
	}
	for i, s := range r.suppliers {
		if s.UserID != accountID || s.ID != id {
			continue
		}
		if fields.Name != nil {
			key := NormalizeName(*fields.Name)
			for _, other := range r.suppliers {
				if other.UserID == accountID && other.ID != id && other.NormalizedName == key {
					return Supplier{}, ErrConflict
				}
			}
		}
		fields.apply(&s)
		stamped := at
		s.UpdatedAt = &stamped
		r.suppliers[i] = s
		return s, nil
	}
	return Supplier{}, ErrNotFound
}

// stepClock advances one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (c *countingRecorder) RecordSupplierResolution(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = make(map[string]int)
	}
	c.outcomes[outcome]++
}

func (c *countingRecorder) get(outcome string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[outcome]
}
