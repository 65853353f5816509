package sales

import "time"

// RecordSaleRequest is the JSON payload for POST /sales.
type RecordSaleRequest struct {
	SaleDate    string             `json:"sale_date" validate:"required,datetime=2006-01-02"`
	PaymentType string             `json:"payment_type" validate:"required,oneof=CASH CARD UPI CREDIT"`
	Reference   string             `json:"reference,omitempty" validate:"omitempty,max=64"`
	Items       []RecordSaleLine   `json:"items" validate:"required,min=1,dive"`
}

// RecordSaleLine is one requested cart line.
type RecordSaleLine struct {
	ProductID      int64   `json:"product_id" validate:"omitempty,gt=0"`
	DecorationCode string  `json:"decoration_code,omitempty" validate:"omitempty,max=32"`
	Quantity       int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice      float64 `json:"unit_price" validate:"gte=0"`
	BatchID        int64   `json:"batch_id,omitempty" validate:"omitempty,gt=0"`
}

func (r RecordSaleRequest) toInput(staffID int64) (RecordSaleInput, error) {
	saleDate, err := time.Parse("2006-01-02", r.SaleDate)
	if err != nil {
		return RecordSaleInput{}, err
	}
	input := RecordSaleInput{
		SaleDate:    saleDate,
		PaymentType: PaymentType(r.PaymentType),
		Reference:   r.Reference,
		StaffID:     staffID,
	}
	for _, line := range r.Items {
		input.Items = append(input.Items, LineInput{
			ProductID:      line.ProductID,
			DecorationCode: line.DecorationCode,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			BatchID:        line.BatchID,
		})
	}
	return input, nil
}
