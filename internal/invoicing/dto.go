package invoicing

import "time"

// ReceiveLineRequest mirrors one parsed invoice line.
type ReceiveLineRequest struct {
	ItemCode     string  `json:"item_code" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Quantity     int64   `json:"quantity" validate:"required,gt=0"`
	InvoicePrice float64 `json:"invoice_price" validate:"gte=0"`
}

// ReceiveStockRequest is the payload for POST /invoices: the structured
// output of the external document parser.
type ReceiveStockRequest struct {
	InvoiceNumber string               `json:"invoice_number" validate:"required"`
	InvoiceDate   string               `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	Items         []ReceiveLineRequest `json:"items" validate:"required,min=1,dive"`
}

func (r ReceiveStockRequest) toDoc() (ParsedInvoice, error) {
	invoiceDate, err := time.ParseInLocation("2006-01-02", r.InvoiceDate, time.UTC)
	if err != nil {
		return ParsedInvoice{}, err
	}
	lines := make([]InvoiceLine, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, InvoiceLine{
			ItemCode:     item.ItemCode,
			Name:         item.Name,
			Quantity:     item.Quantity,
			InvoicePrice: item.InvoicePrice,
		})
	}
	return ParsedInvoice{InvoiceNumber: r.InvoiceNumber, InvoiceDate: invoiceDate, Lines: lines}, nil
}
