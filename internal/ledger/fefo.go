package ledger

import "sort"

// SortFEFO orders batches by the deterministic first-expiring-first-out
// chain: effective expiry, then invoice date, then batch id.
func SortFEFO(batches []BatchAvailability) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if !a.EffectiveExpiry.Equal(b.EffectiveExpiry) {
			return a.EffectiveExpiry.Before(b.EffectiveExpiry)
		}
		if !a.InvoiceDate.Equal(b.InvoiceDate) {
			return a.InvoiceDate.Before(b.InvoiceDate)
		}
		return a.BatchID < b.BatchID
	})
}

// PlanFEFO greedily consumes FEFO-ordered batches until qty is satisfied.
// The plan is all-or-nothing: when total availability falls short no
// partial plan is returned.
func PlanFEFO(batches []BatchAvailability, productID, qty int64) ([]Allocation, error) {
	var total int64
	for _, b := range batches {
		total += b.AvailableQty
	}
	if total < qty {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: total,
			Unexpired: true,
		}
	}

	remaining := qty
	var plan []Allocation
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		if b.AvailableQty <= 0 {
			continue
		}
		take := b.AvailableQty
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Allocation{BatchID: b.BatchID, Quantity: take})
		remaining -= take
	}
	return plan, nil
}
