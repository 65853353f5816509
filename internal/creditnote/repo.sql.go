package creditnote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakeledger/bakeledger/internal/returns"
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

// TxRepository exposes the transactional operations of one reconciliation run.
type TxRepository interface {
	// PendingPool loads and locks the pending returns whose match-date
	// key falls on one of the given dates: lot expiry for GRM rows,
	// write-off date for GVN rows, with expiry computed from the current
	// shelf life. Pending returns outside those dates stay untouched, so
	// a document for one date cannot alert returns still waiting for
	// their own credit note.
	PendingPool(ctx context.Context, dates []time.Time) ([]PendingReturn, error)
	UpdateStatuses(ctx context.Context, ids []int64, status returns.CreditStatus) error
	// InsertCreditNote persists one (number, return date) row. A duplicate
	// reports shared.ErrConflict so the caller can skip, not abort.
	InsertCreditNote(ctx context.Context, cn CreditNote) error
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

func (r *txRepo) PendingPool(ctx context.Context, dates []time.Time) ([]PendingReturn, error) {
	rows, err := r.tx.Query(ctx, `
SELECT r.id, p.item_code, r.quantity, r.rtd, r.return_date,
       CASE WHEN COALESCE(p.shelf_life_days, 0) <= 0 THEN DATE '9999-12-31'
            ELSE b.invoice_date + COALESCE(p.shelf_life_days, 0) END AS effective_expiry
FROM returns r
JOIN products p ON p.id = r.product_id
JOIN stock_batches b ON b.id = r.batch_id
WHERE r.credit_status = 'pending'
  AND ((r.type = 'GRM' AND CASE WHEN COALESCE(p.shelf_life_days, 0) <= 0 THEN DATE '9999-12-31'
                                ELSE b.invoice_date + COALESCE(p.shelf_life_days, 0) END = ANY($1::date[]))
    OR (r.type = 'GVN' AND r.return_date = ANY($1::date[])))
ORDER BY r.id
FOR UPDATE OF r`, dates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pool []PendingReturn
	for rows.Next() {
		var pr PendingReturn
		if err := rows.Scan(&pr.ReturnID, &pr.ItemCode, &pr.Quantity, &pr.RTD, &pr.ReturnDate, &pr.EffectiveExpiry); err != nil {
			return nil, err
		}
		pool = append(pool, pr)
	}
	return pool, rows.Err()
}

func (r *txRepo) UpdateStatuses(ctx context.Context, ids []int64, status returns.CreditStatus) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.tx.Exec(ctx, `UPDATE returns SET credit_status = $1 WHERE id = ANY($2) AND credit_status = 'pending'`, status, ids)
	return err
}

func (r *txRepo) InsertCreditNote(ctx context.Context, cn CreditNote) error {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO credit_notes (credit_note_number, credit_date, return_date, quantity, status, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING id`,
		cn.CreditNoteNumber, cn.CreditDate, cn.ReturnDate, cn.Quantity, NoteStatusPending).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: credit note %s for %s already recorded", shared.ErrConflict, cn.CreditNoteNumber, cn.ReturnDate.Format("2006-01-02"))
		}
		return err
	}
	for _, item := range cn.Items {
		_, err := r.tx.Exec(ctx, `INSERT INTO credit_note_items (credit_note_id, item_code, quantity, rtd, return_date)
VALUES ($1, $2, $3, $4, $5)`,
			id, item.ItemCode, item.Quantity, item.RTD, item.ReturnDate)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByStatus lists persisted credit-note rows, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]CreditNote, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, credit_note_number, credit_date, return_date, quantity, status, created_at FROM credit_notes`
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
	var notes []CreditNote
	for rows.Next() {
		var cn CreditNote
		if err := rows.Scan(&cn.ID, &cn.CreditNoteNumber, &cn.CreditDate, &cn.ReturnDate, &cn.Quantity, &cn.Status, &cn.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, cn)
	}
	return notes, rows.Err()
}
