package suppliers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Spend and rating are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// Status is the lifecycle state of a supplier.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Supplier is one vendor known to an account.
type Supplier struct {
	ID                uuid.UUID       `json:"id"`
	UserID            string          `json:"user_id"`
	Name              string          `json:"name"`
	NormalizedName    string          `json:"-"`
	Status            Status          `json:"status"`
	PerformanceRating decimal.Decimal `json:"performance_rating"`
	TotalSpend        decimal.Decimal `json:"total_spend"`
	ContactEmail      *string         `json:"contact_email"`
	ContactPhone      *string         `json:"contact_phone"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         *time.Time      `json:"updated_at"`
}

// NewSupplier holds the values written when the resolver creates a supplier.
type NewSupplier struct {
	UserID         string
	Name           string
	NormalizedName string
}

// Resolution is the outcome of resolving a raw supplier name.
type Resolution struct {
	SupplierID uuid.UUID
	IsNew      bool
	Supplier   Supplier
}

// ListFilters narrows supplier listings.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
	Status  *Status
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func (f ListFilters) normalized() ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	return f
}

func (f ListFilters) offset() int {
	return (f.Page - 1) * f.Limit
}
