package sales

import (
	"context"

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

// TxRepository exposes transactional operations used by the allocator.
type TxRepository interface {
	Deplete(ctx context.Context, src ledger.Depletable, qty int64) ([]ledger.Allocation, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction. Any error
// rolls back every allocation made during the callback.
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

func (r *txRepo) Deplete(ctx context.Context, src ledger.Depletable, qty int64) ([]ledger.Allocation, error) {
	return src.Deplete(ctx, r.tx, qty)
}

func (r *txRepo) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (sale_date, payment_type, total_amount, reference, staff_id, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW()) RETURNING id`,
		sale.SaleDate, sale.PaymentType, sale.TotalAmount, sale.Reference, sale.StaffID).Scan(&id)
	return id, err
}

func (r *txRepo) InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error {
	for _, item := range items {
		_, err := r.tx.Exec(ctx, `INSERT INTO sale_items (sale_id, product_id, batch_id, quantity, unit_price, line_total)
VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5, $6)`,
			saleID, item.ProductID, item.BatchID, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListSales returns recent sale headers, newest first.
func (r *Repository) ListSales(ctx context.Context, limit int) ([]Sale, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sale_date, payment_type, total_amount, COALESCE(reference, ''), staff_id, created_at
FROM sales ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.SaleDate, &s.PaymentType, &s.TotalAmount, &s.Reference, &s.StaffID, &s.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
