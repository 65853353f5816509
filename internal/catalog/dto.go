package catalog

// UpsertProductRequest is the import payload for one catalog entry.
type UpsertProductRequest struct {
	ItemCode      string  `json:"item_code" validate:"required,max=32"`
	Name          string  `json:"name" validate:"required,max=200"`
	Category      string  `json:"category" validate:"omitempty,max=50"`
	ShelfLifeDays *int    `json:"shelf_life_days,omitempty" validate:"omitempty,gte=0"`
	InvoicePrice  float64 `json:"invoice_price" validate:"gte=0"`
	SalePrice     float64 `json:"sale_price" validate:"gte=0"`
}
