package sales

import "time"

// PaymentType enumerates accepted tender types.
type PaymentType string

const (
	PaymentCash   PaymentType = "CASH"
	PaymentCard   PaymentType = "CARD"
	PaymentUPI    PaymentType = "UPI"
	PaymentCredit PaymentType = "CREDIT"
)

var paymentTypes = map[PaymentType]struct{}{
	PaymentCash: {}, PaymentCard: {}, PaymentUPI: {}, PaymentCredit: {},
}

// Valid reports whether the payment type is known.
func (p PaymentType) Valid() bool {
	_, ok := paymentTypes[p]
	return ok
}

// Sale is the committed sale header.
type Sale struct {
	ID          int64       `json:"id"`
	SaleDate    time.Time   `json:"sale_date"`
	PaymentType PaymentType `json:"payment_type"`
	TotalAmount float64     `json:"total_amount"`
	Reference   string      `json:"reference,omitempty"`
	StaffID     int64       `json:"staff_id"`
	CreatedAt   time.Time   `json:"created_at"`
}

// SaleItem is one allocated (batch, quantity) pair. A single cart line may
// become several rows when FEFO splits it across batches. BatchID zero
// marks the counter (decoration) path.
type SaleItem struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	ProductID int64   `json:"product_id,omitempty"`
	BatchID   int64   `json:"batch_id,omitempty"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// LineInput is one requested cart line.
type LineInput struct {
	ProductID      int64
	DecorationCode string
	Quantity       int64
	UnitPrice      float64
	BatchID        int64
}

// RecordSaleInput is the allocator request.
type RecordSaleInput struct {
	SaleDate    time.Time
	PaymentType PaymentType
	Reference   string
	StaffID     int64
	Items       []LineInput
}

// RecordSaleResult summarises the committed allocation.
type RecordSaleResult struct {
	SaleID      int64      `json:"sale_id"`
	Reference   string     `json:"reference"`
	TotalAmount float64    `json:"total_amount"`
	Items       []SaleItem `json:"items"`
}
