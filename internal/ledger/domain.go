package ledger

import (
	"fmt"
	"time"
)

// SentinelExpiry is the far-future expiry applied to non-perishable products
// (shelf life zero or unset).
var SentinelExpiry = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// StockBatch is one received lot of a product. ReceivedQty is immutable:
// all depletion is derived from allocation rows, the batch row is never
// updated in place.
type StockBatch struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	ReceivedQty int64     `json:"received_qty"`
	InvoiceDate time.Time `json:"invoice_date"`
	InvoiceRef  string    `json:"invoice_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// BatchAvailability is the ledger read model for one batch as of a
// reference date. EffectiveExpiry is recomputed from the product's current
// shelf-life policy, so a shelf-life correction retroactively reclassifies
// existing lots.
type BatchAvailability struct {
	BatchID         int64     `json:"batch_id"`
	ProductID       int64     `json:"product_id"`
	ItemCode        string    `json:"item_code"`
	ProductName     string    `json:"product_name"`
	ReceivedQty     int64     `json:"received_qty"`
	AvailableQty    int64     `json:"available_qty"`
	InvoiceDate     time.Time `json:"invoice_date"`
	InvoiceRef      string    `json:"invoice_ref"`
	EffectiveExpiry time.Time `json:"effective_expiry"`
	InvoicePrice    float64   `json:"invoice_price"`
}

// ProductAvailability aggregates availability across a product's batches
// and reports the nearest effective expiry for display.
type ProductAvailability struct {
	ProductID    int64      `json:"product_id"`
	ItemCode     string     `json:"item_code"`
	Name         string     `json:"name"`
	AvailableQty int64      `json:"available_qty"`
	NextExpiry   *time.Time `json:"next_expiry,omitempty"`
}

// Allocation is one (batch, quantity) consumption decided by the planner.
// BatchID zero marks a counter (non-batched) depletion.
type Allocation struct {
	BatchID  int64 `json:"batch_id"`
	Quantity int64 `json:"quantity"`
}

// InsufficientStockError reports a depletion request exceeding derived
// availability. Unexpired marks the FEFO variant where expired lots were
// excluded from the total.
type InsufficientStockError struct {
	ProductID int64
	BatchID   int64
	Counter   string
	Requested int64
	Available int64
	Unexpired bool
}

func (e *InsufficientStockError) Error() string {
	scope := fmt.Sprintf("product %d", e.ProductID)
	if e.BatchID != 0 {
		scope = fmt.Sprintf("batch %d", e.BatchID)
	}
	if e.Counter != "" {
		scope = fmt.Sprintf("counter %q", e.Counter)
	}
	kind := "insufficient stock"
	if e.Unexpired {
		kind = "insufficient unexpired stock"
	}
	return fmt.Sprintf("ledger: %s for %s: requested %d, available %d", kind, scope, e.Requested, e.Available)
}

// BatchExpiredError reports a caller-pinned batch already expired as of the
// requested date.
type BatchExpiredError struct {
	BatchID   int64
	ExpiredOn time.Time
	AsOf      time.Time
}

func (e *BatchExpiredError) Error() string {
	return fmt.Sprintf("ledger: batch %d expired on %s (as of %s)",
		e.BatchID, e.ExpiredOn.Format("2006-01-02"), e.AsOf.Format("2006-01-02"))
}
