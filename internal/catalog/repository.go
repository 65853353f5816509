package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakeledger/bakeledger/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository interface {
	List(ctx context.Context, activeOnly bool) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetByItemCode(ctx context.Context, itemCode string) (Product, error)
	Upsert(ctx context.Context, product Product) (Product, error)
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, item_code, name, category, shelf_life_days, invoice_price, sale_price, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.ItemCode, &p.Name, &p.Category, &p.ShelfLifeDays, &p.InvoicePrice, &p.SalePrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY item_code`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) GetByItemCode(ctx context.Context, itemCode string) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE item_code=$1`, itemCode))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Upsert(ctx context.Context, product Product) (Product, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO products (item_code, name, category, shelf_life_days, invoice_price, sale_price, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
ON CONFLICT (item_code) DO UPDATE SET
  name = EXCLUDED.name,
  category = EXCLUDED.category,
  shelf_life_days = EXCLUDED.shelf_life_days,
  invoice_price = EXCLUDED.invoice_price,
  sale_price = EXCLUDED.sale_price,
  is_active = TRUE,
  updated_at = NOW()
RETURNING `+productColumns, product.ItemCode, product.Name, product.Category, product.ShelfLifeDays, product.InvoicePrice, product.SalePrice)
	return scanProduct(row)
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
