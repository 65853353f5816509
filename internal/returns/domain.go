package returns

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type discriminates the two write-off operations.
type Type string

const (
	// TypeGRM is an expiry-driven goods return.
	TypeGRM Type = "GRM"
	// TypeGVN is an inbound-damage write-off.
	TypeGVN Type = "GVN"
)

// CreditStatus is the reconciliation lifecycle of a return.
type CreditStatus string

const (
	StatusPending  CreditStatus = "pending"
	StatusReceived CreditStatus = "received"
	StatusAlert    CreditStatus = "alert"
)

// RTD values discriminate return types when matching credit-note lines.
const (
	RTDGrm = 15.00
	RTDGvn = 0.00
)

var grmLossRate = decimal.NewFromFloat(0.15)

// Return is one recorded write-off against a specific batch. Rows are never
// deleted; only the credit status moves, and only forward.
type Return struct {
	ID           int64        `json:"id"`
	ReturnDate   time.Time    `json:"return_date"`
	Type         Type         `json:"type"`
	ProductID    int64        `json:"product_id"`
	BatchID      int64        `json:"batch_id"`
	Quantity     int64        `json:"quantity"`
	InvoicePrice float64      `json:"invoice_price"`
	LossAmount   float64      `json:"loss_amount"`
	RTD          float64      `json:"rtd"`
	CreditStatus CreditStatus `json:"credit_status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// LineInput is one requested write-off line.
type LineInput struct {
	ProductID    int64
	BatchID      int64
	Quantity     int64
	InvoicePrice float64
}

// ProcessInput is a batch of write-off lines sharing one date.
type ProcessInput struct {
	Date    time.Time
	StaffID int64
	Items   []LineInput
}

// Summary reports the committed batch of write-offs.
type Summary struct {
	TotalItems    int     `json:"total_items"`
	TotalQuantity int64   `json:"total_quantity"`
	TotalLoss     float64 `json:"total_loss"`
}

// LossAmount computes the write-off loss: 15% of invoice value for GRM,
// zero for inbound damage (the supplier bears GVN in full).
func LossAmount(t Type, quantity int64, invoicePrice float64) float64 {
	if t != TypeGRM {
		return 0
	}
	return decimal.NewFromFloat(invoicePrice).
		Mul(decimal.NewFromInt(quantity)).
		Mul(grmLossRate).
		Round(2).
		InexactFloat64()
}

// RTDFor returns the matching discriminant for a return type.
func RTDFor(t Type) float64 {
	if t == TypeGRM {
		return RTDGrm
	}
	return RTDGvn
}
