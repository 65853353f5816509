package catalog

import "time"

// Product represents one catalog entry. Products are never deleted;
// an entry leaving the assortment is soft-deactivated.
type Product struct {
	ID            int64     `json:"id"`
	ItemCode      string    `json:"item_code"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	ShelfLifeDays int       `json:"shelf_life_days"`
	InvoicePrice  float64   `json:"invoice_price"`
	SalePrice     float64   `json:"sale_price"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Perishable reports whether batches of this product ever expire.
// A zero shelf life means the sentinel far-future expiry applies.
func (p Product) Perishable() bool {
	return p.ShelfLifeDays > 0
}
