package settlement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
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

// TxRepository exposes the transactional operations of one clearing run.
type TxRepository interface {
	// UpsertReceipt stores the receipt header, keyed by receipt number,
	// and returns its id whether freshly inserted or already present.
	UpsertReceipt(ctx context.Context, receipt ParsedRosReceipt) (int64, error)
	// ReplaceBills rewrites the receipt's persisted bill lines; a
	// re-uploaded receipt keeps only its latest document detail.
	ReplaceBills(ctx context.Context, receiptID int64, bills []Bill) error
	FindInvoice(ctx context.Context, invoiceNumber string) (id int64, totalAmount float64, status string, err error)
	ClearInvoice(ctx context.Context, id int64) error
	// ClearCreditNotes marks every split row of the numbered note cleared
	// and returns their ids, including rows that were already cleared.
	ClearCreditNotes(ctx context.Context, creditNoteNumber string) ([]int64, error)
	// InsertClearedItem records the settlement link; duplicates on the
	// natural key are ignored and reported via the bool.
	InsertClearedItem(ctx context.Context, item ClearedItem) (bool, error)
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

func (r *txRepo) UpsertReceipt(ctx context.Context, receipt ParsedRosReceipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ros_receipts (receipt_number, receipt_date, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (receipt_number) DO UPDATE SET receipt_date = EXCLUDED.receipt_date
RETURNING id`, receipt.ReceiptNumber, receipt.ReceiptDate).Scan(&id)
	return id, err
}

func (r *txRepo) ReplaceBills(ctx context.Context, receiptID int64, bills []Bill) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM ros_receipt_bills WHERE receipt_id = $1`, receiptID); err != nil {
		return err
	}
	for _, bill := range bills {
		_, err := r.tx.Exec(ctx, `INSERT INTO ros_receipt_bills (receipt_id, doc_type, bill_number, bill_date, amount)
VALUES ($1, $2, $3, $4, $5)`,
			receiptID, bill.DocType, bill.BillNumber, bill.BillDate, bill.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) FindInvoice(ctx context.Context, invoiceNumber string) (int64, float64, string, error) {
	var (
		id     int64
		total  float64
		status string
	)
	err := r.tx.QueryRow(ctx, `SELECT id, total_amount, status FROM invoices WHERE invoice_number = $1`, invoiceNumber).
		Scan(&id, &total, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, "", shared.ErrNotFound
	}
	return id, total, status, err
}

func (r *txRepo) ClearInvoice(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status = 'cleared' WHERE id = $1`, id)
	return err
}

func (r *txRepo) ClearCreditNotes(ctx context.Context, creditNoteNumber string) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `UPDATE credit_notes SET status = 'cleared' WHERE credit_note_number = $1 RETURNING id`, creditNoteNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *txRepo) InsertClearedItem(ctx context.Context, item ClearedItem) (bool, error) {
	tag, err := r.tx.Exec(ctx, `INSERT INTO ros_receipt_cleared_items (receipt_id, doc_type, doc_id, bill_number, amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (receipt_id, doc_type, bill_number) DO NOTHING`,
		item.ReceiptID, item.DocType, item.DocID, item.BillNumber, item.Amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClearedItems lists what a receipt settled.
func (r *Repository) ClearedItems(ctx context.Context, receiptID int64) ([]ClearedItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, receipt_id, doc_type, doc_id, bill_number, amount
FROM ros_receipt_cleared_items WHERE receipt_id = $1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ClearedItem
	for rows.Next() {
		var item ClearedItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.DocType, &item.DocID, &item.BillNumber, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindReceipt looks a receipt up by number.
func (r *Repository) FindReceipt(ctx context.Context, number string) (RosReceipt, error) {
	var receipt RosReceipt
	err := r.pool.QueryRow(ctx, `SELECT id, receipt_number, receipt_date, created_at FROM ros_receipts WHERE receipt_number = $1`, number).
		Scan(&receipt.ID, &receipt.ReceiptNumber, &receipt.ReceiptDate, &receipt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RosReceipt{}, shared.ErrNotFound
	}
	return receipt, err
}
