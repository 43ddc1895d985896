package suppliers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resolution outcomes reported to the Recorder.
const (
	OutcomeMatched = "matched"
	OutcomeCreated = "created"
	OutcomeError   = "error"
)

const defaultStoreTimeout = 5 * time.Second

// Recorder observes resolver outcomes.
type Recorder interface {
	RecordSupplierResolution(outcome string)
}

// ServiceConfig tunes the Service.
type ServiceConfig struct {
	// StoreTimeout bounds every store round trip. Zero means 5s.
	StoreTimeout time.Duration
	Recorder     Recorder
	Clock        func() time.Time
}

// Service implements supplier resolution and updates.
type Service struct {
	repo     Repository
	timeout  time.Duration
	recorder Recorder
	clock    func() time.Time
}

// NewService constructs the service. A nil repo yields a service whose
// operations fail with ErrStoreUnavailable.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repo: repo, timeout: cfg.StoreTimeout, recorder: cfg.Recorder, clock: cfg.Clock}
}

// Resolve finds the account's supplier whose name contains rawName (case
// insensitive) or creates one. When several suppliers match, the oldest wins.
func (s *Service) Resolve(ctx context.Context, accountID, rawName string) (Resolution, error) {
	accountID = strings.TrimSpace(accountID)
	name := strings.TrimSpace(rawName)
	if accountID == "" || name == "" {
		return Resolution{}, fmt.Errorf("%w: supplier name and user id are required", ErrInvalidInput)
	}
	normalized := NormalizeName(name)
	if normalized == "" {
		return Resolution{}, fmt.Errorf("%w: supplier name has no identifying characters", ErrInvalidInput)
	}
	if s.repo == nil {
		s.record(OutcomeError)
		return Resolution{}, ErrStoreUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		res       Resolution
		attempted bool
	)
	err := s.repo.WithResolveLock(ctx, accountID, func(ctx context.Context, tx TxRepository) error {
		matches, err := tx.SearchByName(ctx, accountID, name)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSearchFailed, err)
		}
		if match, ok := oldestMatch(matches); ok {
			res = Resolution{Supplier: match}
			return nil
		}

		attempted = true
		supplier, inserted, err := tx.InsertOrGet(ctx, NewSupplier{
			UserID:         accountID,
			Name:           name,
			NormalizedName: normalized,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCreateFailed, err)
		}
		res = Resolution{Supplier: supplier, IsNew: inserted}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSearchFailed), errors.Is(err, ErrCreateFailed):
		case attempted:
			// Commit failed after the insert was issued; its effect is indeterminate.
			err = fmt.Errorf("%w: %w", ErrCreateFailed, err)
		default:
			err = fmt.Errorf("%w: %w", ErrSearchFailed, err)
		}
		s.record(OutcomeError)
		return Resolution{}, err
	}

	res.SupplierID = res.Supplier.ID
	if res.IsNew {
		s.record(OutcomeCreated)
	} else {
		s.record(OutcomeMatched)
	}
	return res, nil
}

// Update merges fields into the supplier identified by (accountID, supplierID)
// and stamps updated_at.
func (s *Service) Update(ctx context.Context, accountID string, supplierID uuid.UUID, fields UpdateFields) (Supplier, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" || supplierID == uuid.Nil {
		return Supplier{}, fmt.Errorf("%w: supplier id and user id are required", ErrInvalidInput)
	}
	if err := fields.Validate(); err != nil {
		return Supplier{}, err
	}
	if s.repo == nil {
		return Supplier{}, ErrStoreUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	updated, err := s.repo.Update(ctx, accountID, supplierID, fields, s.clock())
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return Supplier{}, err
		}
		return Supplier{}, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	return updated, nil
}

// Get returns one supplier of the account.
func (s *Service) Get(ctx context.Context, accountID string, supplierID uuid.UUID) (Supplier, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" || supplierID == uuid.Nil {
		return Supplier{}, fmt.Errorf("%w: supplier id and user id are required", ErrInvalidInput)
	}
	if s.repo == nil {
		return Supplier{}, ErrStoreUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	supplier, err := s.repo.Get(ctx, accountID, supplierID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Supplier{}, err
		}
		return Supplier{}, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	return supplier, nil
}

// List pages through the account's suppliers.
func (s *Service) List(ctx context.Context, accountID string, filters ListFilters) ([]Supplier, int, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if filters.Status != nil && !filters.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *filters.Status)
	}
	if s.repo == nil {
		return nil, 0, ErrStoreUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	suppliers, total, err := s.repo.List(ctx, accountID, filters.normalized())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	return suppliers, total, nil
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordSupplierResolution(outcome)
	}
}

// oldestMatch applies the resolver tie-break: earliest created_at, then
// lowest id. It does not rely on the order the store returned.
func oldestMatch(matches []Supplier) (Supplier, bool) {
	if len(matches) == 0 {
		return Supplier{}, false
	}
	ordered := append([]Supplier(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})
	return ordered[0], true
}
