package settlement

import "time"

// amountTolerance bounds floating comparison of bill amounts.
const amountTolerance = 0.01

// DocType discriminates the settleable document kinds on a receipt.
type DocType string

const (
	// DocTypeSR is a sales-register bill, settling an invoice.
	DocTypeSR DocType = "SR"
	// DocTypeCN settles a supplier credit note.
	DocTypeCN DocType = "CN"
)

// Bill is one line of a parsed ROS receipt.
type Bill struct {
	DocType    DocType   `json:"doc_type"`
	BillNumber string    `json:"bill_number"`
	BillDate   time.Time `json:"bill_date"`
	Amount     float64   `json:"amount"`
}

// ParsedRosReceipt is the structured form of one uploaded receipt, as
// produced by the external document parser.
type ParsedRosReceipt struct {
	ReceiptNumber string
	ReceiptDate   time.Time
	Bills         []Bill
}

// RosReceipt is one persisted receipt header.
type RosReceipt struct {
	ID            int64     `json:"id"`
	ReceiptNumber string    `json:"receipt_number"`
	ReceiptDate   time.Time `json:"receipt_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// ClearedItem links a receipt to one document it settled. The natural key
// (receipt, doc type, bill number) makes re-processing a receipt a no-op.
type ClearedItem struct {
	ID         int64   `json:"id"`
	ReceiptID  int64   `json:"receipt_id"`
	DocType    string  `json:"doc_type"` // invoice | credit_note
	DocID      int64   `json:"doc_id"`
	BillNumber string  `json:"bill_number"`
	Amount     float64 `json:"amount"`
}

// BillResult classifies one bill after a clearing run.
type BillResult string

const (
	BillCleared          BillResult = "cleared"
	BillAlreadyCleared   BillResult = "already_cleared"
	BillSkippedNoMatch   BillResult = "skipped_no_match"
	BillSkippedBadAmount BillResult = "skipped_amount_mismatch"
)
