package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakeledger/bakeledger/internal/shared"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so writers re-check
// availability inside their transaction with the exact computation readers
// use — the two views can never diverge.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// availabilitySQL derives per-batch availability: received minus the sum of
// all allocation rows (sale items and returns). Expiry is computed from the
// product's current shelf life; zero or null shelf life maps to the sentinel.
const availabilitySQL = `
SELECT b.id, b.product_id, p.item_code, p.name, b.received_qty, b.invoice_date, b.invoice_ref, p.invoice_price,
       CASE WHEN COALESCE(p.shelf_life_days, 0) <= 0 THEN DATE '9999-12-31'
            ELSE b.invoice_date + COALESCE(p.shelf_life_days, 0) END AS effective_expiry,
       b.received_qty
         - COALESCE((SELECT SUM(si.quantity) FROM sale_items si WHERE si.batch_id = b.id), 0)
         - COALESCE((SELECT SUM(rt.quantity) FROM returns rt WHERE rt.batch_id = b.id), 0) AS available_qty
FROM stock_batches b
JOIN products p ON p.id = b.product_id`

// AvailabilityFilter selects and scopes the availability read.
type AvailabilityFilter struct {
	ProductID      int64     // 0 = all products
	Date           time.Time // reference date
	IncludeExpired bool
	ExpiryOn       bool // only batches whose effective expiry equals Date
	InvoiceOn      bool // only batches received exactly on Date
	IncludeEmpty   bool // keep batches with zero availability
}

// AvailableBatches runs the derived-availability query through q in FEFO
// order (effective expiry, invoice date, batch id).
func AvailableBatches(ctx context.Context, q Querier, f AvailabilityFilter) ([]BatchAvailability, error) {
	query := `SELECT * FROM (` + availabilitySQL + `) a WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.ProductID != 0 {
		query += ` AND a.product_id = ` + arg(f.ProductID)
	}
	if !f.IncludeEmpty {
		query += ` AND a.available_qty > 0`
	}
	switch {
	case f.ExpiryOn:
		query += ` AND a.effective_expiry = ` + arg(f.Date)
	case f.InvoiceOn:
		query += ` AND a.invoice_date = ` + arg(f.Date)
	case !f.IncludeExpired:
		query += ` AND a.effective_expiry > ` + arg(f.Date)
	}
	query += ` ORDER BY a.effective_expiry, a.invoice_date, a.id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []BatchAvailability
	for rows.Next() {
		b, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// BatchAvailabilityByID reads one batch's derived availability.
func BatchAvailabilityByID(ctx context.Context, q Querier, batchID int64) (BatchAvailability, error) {
	row := q.QueryRow(ctx, `SELECT * FROM (`+availabilitySQL+`) a WHERE a.id = $1`, batchID)
	b, err := scanAvailability(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return BatchAvailability{}, shared.ErrNotFound
	}
	return b, err
}

// LockBatch takes a row lock on one batch so the availability re-check and
// the dependent insert serialise against concurrent allocators.
func LockBatch(ctx context.Context, q Querier, batchID int64) error {
	tag, err := q.Exec(ctx, `SELECT id FROM stock_batches WHERE id = $1 FOR UPDATE`, batchID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// LockProductBatches locks all batches of a product ahead of FEFO planning.
func LockProductBatches(ctx context.Context, q Querier, productID int64) error {
	_, err := q.Exec(ctx, `SELECT id FROM stock_batches WHERE product_id = $1 ORDER BY id FOR UPDATE`, productID)
	return err
}

func scanAvailability(row pgx.Row) (BatchAvailability, error) {
	var b BatchAvailability
	err := row.Scan(&b.BatchID, &b.ProductID, &b.ItemCode, &b.ProductName, &b.ReceivedQty,
		&b.InvoiceDate, &b.InvoiceRef, &b.InvoicePrice, &b.EffectiveExpiry, &b.AvailableQty)
	return b, err
}

// Repository is the pool-backed ledger read side.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AvailableBatches lists per-batch availability as of the filter date.
func (r *Repository) AvailableBatches(ctx context.Context, f AvailabilityFilter) ([]BatchAvailability, error) {
	return AvailableBatches(ctx, r.pool, f)
}

// ProductAvailability aggregates unexpired availability per product with the
// nearest effective expiry.
func (r *Repository) ProductAvailability(ctx context.Context, date time.Time) ([]ProductAvailability, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.product_id, a.item_code, a.name, SUM(a.available_qty), MIN(a.effective_expiry)
FROM (`+availabilitySQL+`) a
WHERE a.available_qty > 0 AND a.effective_expiry > $1
GROUP BY a.product_id, a.item_code, a.name
ORDER BY a.item_code`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []ProductAvailability
	for rows.Next() {
		var p ProductAvailability
		var next time.Time
		if err := rows.Scan(&p.ProductID, &p.ItemCode, &p.Name, &p.AvailableQty, &next); err != nil {
			return nil, err
		}
		if !next.Equal(SentinelExpiry) {
			p.NextExpiry = &next
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
