package settlement

import "time"

// ClearBillRequest mirrors one parsed receipt bill.
type ClearBillRequest struct {
	DocType    string  `json:"doc_type" validate:"required,oneof=SR CN"`
	BillNumber string  `json:"bill_number" validate:"required"`
	BillDate   string  `json:"bill_date" validate:"omitempty,datetime=2006-01-02"`
	Amount     float64 `json:"amount" validate:"gte=0"`
}

// ClearReceiptRequest is the payload for POST /receipts: the structured
// output of the external document parser.
type ClearReceiptRequest struct {
	ReceiptNumber string             `json:"receipt_number" validate:"required"`
	ReceiptDate   string             `json:"receipt_date" validate:"required,datetime=2006-01-02"`
	Bills         []ClearBillRequest `json:"bills" validate:"required,min=1,dive"`
}

func (r ClearReceiptRequest) toReceipt() (ParsedRosReceipt, error) {
	receiptDate, err := time.ParseInLocation("2006-01-02", r.ReceiptDate, time.UTC)
	if err != nil {
		return ParsedRosReceipt{}, err
	}
	bills := make([]Bill, 0, len(r.Bills))
	for _, b := range r.Bills {
		var billDate time.Time
		if b.BillDate != "" {
			billDate, err = time.ParseInLocation("2006-01-02", b.BillDate, time.UTC)
			if err != nil {
				return ParsedRosReceipt{}, err
			}
		}
		bills = append(bills, Bill{
			DocType:    DocType(b.DocType),
			BillNumber: b.BillNumber,
			BillDate:   billDate,
			Amount:     b.Amount,
		})
	}
	return ParsedRosReceipt{ReceiptNumber: r.ReceiptNumber, ReceiptDate: receiptDate, Bills: bills}, nil
}
