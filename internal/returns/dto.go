package returns

import "time"

// ReturnLineRequest is one requested write-off line.
type ReturnLineRequest struct {
	ProductID    int64   `json:"product_id" validate:"required,gt=0"`
	BatchID      int64   `json:"batch_id" validate:"required,gt=0"`
	Quantity     int64   `json:"quantity" validate:"required,gt=0"`
	InvoicePrice float64 `json:"invoice_price" validate:"gte=0"`
}

// ProcessReturnsRequest is the payload for POST /grm and POST /gvn.
type ProcessReturnsRequest struct {
	ReturnDate string              `json:"return_date" validate:"required,datetime=2006-01-02"`
	Items      []ReturnLineRequest `json:"items" validate:"required,min=1,dive"`
}

func (r ProcessReturnsRequest) toInput(staffID int64) (ProcessInput, error) {
	date, err := time.ParseInLocation("2006-01-02", r.ReturnDate, time.UTC)
	if err != nil {
		return ProcessInput{}, err
	}
	items := make([]LineInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, LineInput{
			ProductID:    item.ProductID,
			BatchID:      item.BatchID,
			Quantity:     item.Quantity,
			InvoicePrice: item.InvoicePrice,
		})
	}
	return ProcessInput{Date: date, StaffID: staffID, Items: items}, nil
}
