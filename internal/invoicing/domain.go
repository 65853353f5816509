package invoicing

import "time"

// Invoice is one supplier invoice header. Its status moves to cleared
// only through receipt settlement.
type Invoice struct {
	ID            int64     `json:"id"`
	InvoiceNumber string    `json:"invoice_number"`
	InvoiceDate   time.Time `json:"invoice_date"`
	TotalAmount   float64   `json:"total_amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	StatusPending = "pending"
	StatusCleared = "cleared"
)

// InvoiceLine is one received lot on an invoice.
type InvoiceLine struct {
	ItemCode     string
	Name         string
	Quantity     int64
	InvoicePrice float64
}

// ParsedInvoice is the structured form of one uploaded supplier invoice,
// as produced by the external document parser.
type ParsedInvoice struct {
	InvoiceNumber string
	InvoiceDate   time.Time
	Lines         []InvoiceLine
}

// ReceiveResult reports one committed stock intake.
type ReceiveResult struct {
	InvoiceID   int64   `json:"invoice_id"`
	BatchIDs    []int64 `json:"batch_ids"`
	NewProducts []int64 `json:"new_products,omitempty"`
	TotalAmount float64 `json:"total_amount"`
}
