package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakeledger/bakeledger/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations of one stock intake.
type TxRepository interface {
	// InsertInvoice persists the invoice header; a duplicate number
	// reports shared.ErrConflict.
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	// InsertBatch appends one lot to the stock ledger.
	InsertBatch(ctx context.Context, productID int64, quantity int64, inv Invoice) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (invoice_number, invoice_date, total_amount, status, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING id`,
		inv.InvoiceNumber, inv.InvoiceDate, inv.TotalAmount, StatusPending).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return 0, fmt.Errorf("%w: invoice %s already received", shared.ErrConflict, inv.InvoiceNumber)
	}
	return id, err
}

func (r *txRepo) InsertBatch(ctx context.Context, productID int64, quantity int64, inv Invoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_batches (product_id, received_qty, invoice_date, invoice_ref, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING id`,
		productID, quantity, inv.InvoiceDate, inv.InvoiceNumber).Scan(&id)
	return id, err
}

// FindByNumber looks an invoice up by its number.
func (r *Repository) FindByNumber(ctx context.Context, number string) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT id, invoice_number, invoice_date, total_amount, status, created_at
FROM invoices WHERE invoice_number = $1`, number).
		Scan(&inv.ID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.TotalAmount, &inv.Status, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, err
}

// ListByStatus lists invoices, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]Invoice, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, invoice_number, invoice_date, total_amount, status, created_at FROM invoices`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT %d`, limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.TotalAmount, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
