package suppliers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// UpdateFields is the typed partial update accepted by the Updater. A nil
// field is left untouched.
type UpdateFields struct {
	Name              *string          `validate:"omitempty,max=255"`
	Status            *Status          `validate:"omitempty,oneof=active inactive suspended"`
	PerformanceRating *decimal.Decimal `validate:"-"`
	TotalSpend        *decimal.Decimal `validate:"-"`
	ContactEmail      *string          `validate:"omitempty,email,max=320"`
	ContactPhone      *string          `validate:"omitempty,max=32"`
}

// fieldAliases maps accepted payload keys to their column names.
var fieldAliases = map[string]string{
	"name":               "name",
	"status":             "status",
	"performance_rating": "performance_rating",
	"performanceRating":  "performance_rating",
	"total_spend":        "total_spend",
	"totalSpend":         "total_spend",
	"contact_email":      "contact_email",
	"contactEmail":       "contact_email",
	"contact_phone":      "contact_phone",
	"contactPhone":       "contact_phone",
}

// Column limits: performance_rating is NUMERIC(5,2), total_spend NUMERIC(18,2).
var (
	maxRating     = decimal.NewFromInt(999)
	spendCeiling  = decimal.New(1, 16)
	decimalPlaces = int32(2)
)

var fieldValidator = validator.New()

// ParseUpdateFields decodes an open updateData mapping into UpdateFields.
// Unrecognised keys, null values and keys given twice through aliases are
// rejected with ErrInvalidInput.
func ParseUpdateFields(raw map[string]json.RawMessage) (UpdateFields, error) {
	var fields UpdateFields
	if len(raw) == 0 {
		return fields, fmt.Errorf("%w: updateData must contain at least one field", ErrInvalidInput)
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var unknown []string
	seen := make(map[string]string, len(raw))
	for _, key := range keys {
		column, ok := fieldAliases[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if prev, dup := seen[column]; dup {
			return fields, fmt.Errorf("%w: %s and %s set the same field", ErrInvalidInput, prev, key)
		}
		seen[column] = key

		value := raw[key]
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return fields, fmt.Errorf("%w: %s must not be null", ErrInvalidInput, key)
		}
		if err := json.Unmarshal(value, fields.target(column)); err != nil {
			return fields, fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
		}
	}
	if len(unknown) > 0 {
		return fields, fmt.Errorf("%w: unrecognised fields %s", ErrInvalidInput, strings.Join(unknown, ", "))
	}
	return fields, fields.Validate()
}

func (f *UpdateFields) target(column string) any {
	switch column {
	case "name":
		return &f.Name
	case "status":
		return &f.Status
	case "performance_rating":
		return &f.PerformanceRating
	case "total_spend":
		return &f.TotalSpend
	case "contact_email":
		return &f.ContactEmail
	default:
		return &f.ContactPhone
	}
}

// Empty reports whether no field is set.
func (f UpdateFields) Empty() bool {
	return f.Name == nil && f.Status == nil && f.PerformanceRating == nil &&
		f.TotalSpend == nil && f.ContactEmail == nil && f.ContactPhone == nil
}

// Validate checks field values before they reach the store.
func (f UpdateFields) Validate() error {
	if f.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if f.Name != nil && NormalizeName(*f.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidInput)
	}
	if err := fieldValidator.Struct(f); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidInput, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if r := f.PerformanceRating; r != nil {
		if r.IsNegative() || r.GreaterThan(maxRating) {
			return fmt.Errorf("%w: performance_rating must be between 0 and 999", ErrInvalidInput)
		}
		if !fitsScale(*r) {
			return fmt.Errorf("%w: performance_rating allows at most 2 decimal places", ErrInvalidInput)
		}
	}
	if sp := f.TotalSpend; sp != nil {
		if sp.IsNegative() {
			return fmt.Errorf("%w: total_spend must not be negative", ErrInvalidInput)
		}
		if sp.GreaterThanOrEqual(spendCeiling) {
			return fmt.Errorf("%w: total_spend must be below 10000000000000000", ErrInvalidInput)
		}
		if !fitsScale(*sp) {
			return fmt.Errorf("%w: total_spend allows at most 2 decimal places", ErrInvalidInput)
		}
	}
	return nil
}

// fitsScale reports whether d is stored without rounding. Trailing zeros
// beyond the scale are accepted.
func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(decimalPlaces))
}

// apply merges f into s, mirroring the store-side UPDATE.
func (f UpdateFields) apply(s *Supplier) {
	if f.Name != nil {
		s.Name = strings.TrimSpace(*f.Name)
		s.NormalizedName = NormalizeName(*f.Name)
	}
	if f.Status != nil {
		s.Status = *f.Status
	}
	if f.PerformanceRating != nil {
		s.PerformanceRating = *f.PerformanceRating
	}
	if f.TotalSpend != nil {
		s.TotalSpend = *f.TotalSpend
	}
	if f.ContactEmail != nil {
		s.ContactEmail = nullIfEmpty(*f.ContactEmail)
	}
	if f.ContactPhone != nil {
		s.ContactPhone = nullIfEmpty(*f.ContactPhone)
	}
}

func nullIfEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
