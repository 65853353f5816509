package returns

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakeledger/bakeledger/internal/ledger"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the processor.
type TxRepository interface {
	// CheckAvailability locks the batch and re-reads its derived
	// availability inside the transaction.
	CheckAvailability(ctx context.Context, batchID int64) (ledger.BatchAvailability, error)
	InsertReturn(ctx context.Context, ret Return) (int64, error)
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

func (r *txRepo) CheckAvailability(ctx context.Context, batchID int64) (ledger.BatchAvailability, error) {
	if err := ledger.LockBatch(ctx, r.tx, batchID); err != nil {
		return ledger.BatchAvailability{}, err
	}
	return ledger.BatchAvailabilityByID(ctx, r.tx, batchID)
}

func (r *txRepo) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO returns (return_date, type, product_id, batch_id, quantity, invoice_price, loss_amount, rtd, credit_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()) RETURNING id`,
		ret.ReturnDate, ret.Type, ret.ProductID, ret.BatchID, ret.Quantity, ret.InvoicePrice, ret.LossAmount, ret.RTD, ret.CreditStatus).Scan(&id)
	return id, err
}

// Candidates lists batches eligible for a write-off on the given date.
func (r *Repository) Candidates(ctx context.Context, f ledger.AvailabilityFilter) ([]ledger.BatchAvailability, error) {
	return ledger.AvailableBatches(ctx, r.pool, f)
}

// ListByDate returns write-offs recorded for a return date, oldest first.
func (r *Repository) ListByDate(ctx context.Context, date time.Time) ([]Return, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, return_date, type, product_id, batch_id, quantity, invoice_price, loss_amount, rtd, credit_status, created_at
FROM returns WHERE return_date = $1 ORDER BY id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Return
	for rows.Next() {
		var ret Return
		if err := rows.Scan(&ret.ID, &ret.ReturnDate, &ret.Type, &ret.ProductID, &ret.BatchID, &ret.Quantity,
			&ret.InvoicePrice, &ret.LossAmount, &ret.RTD, &ret.CreditStatus, &ret.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ret)
	}
	return result, rows.Err()
}
