package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procuredocs/procuredocs/internal/platform/db"
	"github.com/procuredocs/procuredocs/internal/shared"
)

// Repository is the account-scoped supplier store.
type Repository interface {
	// WithResolveLock runs fn in a transaction holding the account's resolve
	// lock, serialising search-then-create per account.
	WithResolveLock(ctx context.Context, accountID string, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, accountID string, id uuid.UUID) (Supplier, error)
	List(ctx context.Context, accountID string, filters ListFilters) ([]Supplier, int, error)
	// Update merges fields into the (accountID, id) row in one statement.
	// It returns ErrNotFound when no row matches and ErrConflict when a rename
	// collides with another supplier's normalized name.
	Update(ctx context.Context, accountID string, id uuid.UUID, fields UpdateFields, at time.Time) (Supplier, error)
}

// TxRepository exposes the operations available under the resolve lock.
type TxRepository interface {
	// SearchByName returns the account's suppliers whose name contains name,
	// ignoring case, oldest first.
	SearchByName(ctx context.Context, accountID, name string) ([]Supplier, error)
	// InsertOrGet inserts s unless a supplier with the same normalized name
	// exists for the account, in which case that supplier is returned with
	// inserted=false.
	InsertOrGet(ctx context.Context, s NewSupplier) (Supplier, bool, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const (
	uniqueViolation = "23505"
	searchLimit     = 50
)

const supplierColumns = `id, user_id, name, normalized_name, status, performance_rating, total_spend,
	contact_email, contact_phone, created_at, updated_at`

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithResolveLock(ctx context.Context, accountID string, fn func(context.Context, TxRepository) error) error {
	// ReadCommitted so statements after the lock see rows committed by the
	// previous lock holder.
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	return db.WithTxOptions(ctx, r.pool, opts, func(tx pgx.Tx) error {
		key := shared.SupplierResolveLockKey(accountID)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("suppliers: acquire resolve lock: %w", err)
		}
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) SearchByName(ctx context.Context, accountID, name string) ([]Supplier, error) {
	query := `SELECT ` + supplierColumns + `
		FROM suppliers
		WHERE user_id = $1 AND strpos(name_lower, $2) > 0
		ORDER BY created_at ASC, id ASC
		LIMIT $3`
	rows, err := r.db.Query(ctx, query, accountID, lowerName(name), searchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) InsertOrGet(ctx context.Context, s NewSupplier) (Supplier, bool, error) {
	insert := `INSERT INTO suppliers (user_id, name, name_lower, normalized_name, status, performance_rating, total_spend)
		VALUES ($1, $2, $3, $4, 'active', 0, 0)
		ON CONFLICT (user_id, normalized_name) DO NOTHING
		RETURNING ` + supplierColumns
	created, err := scanSupplier(r.db.QueryRow(ctx, insert, s.UserID, s.Name, lowerName(s.Name), s.NormalizedName))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, false, err
	}

	existing, err := scanSupplier(r.db.QueryRow(ctx, `SELECT `+supplierColumns+`
		FROM suppliers WHERE user_id = $1 AND normalized_name = $2`, s.UserID, s.NormalizedName))
	if err != nil {
		return Supplier{}, false, fmt.Errorf("suppliers: fetch on conflict: %w", err)
	}
	return existing, false, nil
}

func (r *repository) Get(ctx context.Context, accountID string, id uuid.UUID) (Supplier, error) {
	s, err := scanSupplier(r.db.QueryRow(ctx, `SELECT `+supplierColumns+`
		FROM suppliers WHERE user_id = $1 AND id = $2`, accountID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *repository) List(ctx context.Context, accountID string, filters ListFilters) ([]Supplier, int, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{accountID}

	if filters.Search != "" {
		args = append(args, lowerName(filters.Search))
		conditions = append(conditions, fmt.Sprintf("strpos(name_lower, $%d) > 0", len(args)))
	}
	if filters.Status != nil {
		args = append(args, string(*filters.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + supplierColumns + ` FROM suppliers` + where +
		" ORDER BY " + sortOrder(filters.SortBy, filters.SortDir) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filters.Limit, filters.offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	suppliers := make([]Supplier, 0, filters.Limit)
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Update(ctx context.Context, accountID string, id uuid.UUID, fields UpdateFields, at time.Time) (Supplier, error) {
	query, args := buildUpdate(accountID, id, fields, at)
	s, err := scanSupplier(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Supplier{}, ErrConflict
		}
		return Supplier{}, err
	}
	return s, nil
}

// buildUpdate renders the single-statement merge for fields. Placeholders are
// numbered in SET order, followed by the account and id.
func buildUpdate(accountID string, id uuid.UUID, fields UpdateFields, at time.Time) (string, []interface{}) {
	sets := make([]string, 0, 9)
	args := make([]interface{}, 0, 11)
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		set("name", name)
		set("name_lower", lowerName(name))
		set("normalized_name", NormalizeName(*fields.Name))
	}
	if fields.Status != nil {
		set("status", string(*fields.Status))
	}
	if fields.PerformanceRating != nil {
		set("performance_rating", *fields.PerformanceRating)
	}
	if fields.TotalSpend != nil {
		set("total_spend", *fields.TotalSpend)
	}
	if fields.ContactEmail != nil {
		set("contact_email", nullIfEmpty(*fields.ContactEmail))
	}
	if fields.ContactPhone != nil {
		set("contact_phone", nullIfEmpty(*fields.ContactPhone))
	}
	set("updated_at", at)

	args = append(args, accountID, id)
	query := fmt.Sprintf(`UPDATE suppliers SET %s WHERE user_id = $%d AND id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), supplierColumns)
	return query, args
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var (
		s      Supplier
		status string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.NormalizedName, &status, &s.PerformanceRating, &s.TotalSpend,
		&s.ContactEmail, &s.ContactPhone, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Supplier{}, err
	}
	s.Status = Status(status)
	return s, nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if strings.EqualFold(sortDir, "desc") {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "name " + dir + ", id " + dir
	case "total_spend":
		return "total_spend " + dir + ", id " + dir
	case "updated_at":
		return "updated_at " + dir + " NULLS LAST, id " + dir
	default:
		return "created_at " + dir + ", id " + dir
	}
}
