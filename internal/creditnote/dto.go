package creditnote

import "time"

// ReconcileLineRequest mirrors one parsed credit-note line.
type ReconcileLineRequest struct {
	ItemCode   string  `json:"item_code" validate:"required"`
	Quantity   int64   `json:"quantity" validate:"required,gt=0"`
	RTD        float64 `json:"rtd" validate:"gte=0"`
	ReturnDate string  `json:"return_date" validate:"required,datetime=2006-01-02"`
}

// ReconcileRequest is the payload for POST /reconcile: the structured
// output of the external document parser.
type ReconcileRequest struct {
	CreditNoteNumber string                 `json:"credit_note_number" validate:"required"`
	CreditDate       string                 `json:"credit_date" validate:"required,datetime=2006-01-02"`
	Items            []ReconcileLineRequest `json:"items" validate:"required,min=1,dive"`
}

func (r ReconcileRequest) toDoc() (ParsedCreditNote, error) {
	creditDate, err := time.ParseInLocation("2006-01-02", r.CreditDate, time.UTC)
	if err != nil {
		return ParsedCreditNote{}, err
	}
	lines := make([]CreditNoteLine, 0, len(r.Items))
	for _, item := range r.Items {
		returnDate, err := time.ParseInLocation("2006-01-02", item.ReturnDate, time.UTC)
		if err != nil {
			return ParsedCreditNote{}, err
		}
		lines = append(lines, CreditNoteLine{
			ItemCode:   item.ItemCode,
			Quantity:   item.Quantity,
			RTD:        item.RTD,
			ReturnDate: returnDate,
		})
	}
	return ParsedCreditNote{CreditNoteNumber: r.CreditNoteNumber, CreditDate: creditDate, Lines: lines}, nil
}
