package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bakeledger/bakeledger/internal/shared"
)

// Depletable is one source of sellable stock. Both implementations honour
// the same non-negative invariant inside the caller's transaction: either
// the whole requested quantity comes out, or nothing does.
type Depletable interface {
	Deplete(ctx context.Context, q Querier, qty int64) ([]Allocation, error)
}

// FEFOSource depletes a product's batches in first-expiring-first-out order.
type FEFOSource struct {
	ProductID int64
	Date      time.Time
}

// Deplete locks the product's batches, plans FEFO over current availability
// and returns the per-batch split. It performs no inserts; the caller
// records the allocations.
func (s FEFOSource) Deplete(ctx context.Context, q Querier, qty int64) ([]Allocation, error) {
	if err := LockProductBatches(ctx, q, s.ProductID); err != nil {
		return nil, err
	}
	batches, err := AvailableBatches(ctx, q, AvailabilityFilter{ProductID: s.ProductID, Date: s.Date})
	if err != nil {
		return nil, err
	}
	return PlanFEFO(batches, s.ProductID, qty)
}

// PinnedSource depletes one caller-chosen batch, verifying expiry and
// availability as of the given date.
type PinnedSource struct {
	BatchID int64
	Date    time.Time
}

func (s PinnedSource) Deplete(ctx context.Context, q Querier, qty int64) ([]Allocation, error) {
	if err := LockBatch(ctx, q, s.BatchID); err != nil {
		return nil, err
	}
	b, err := BatchAvailabilityByID(ctx, q, s.BatchID)
	if err != nil {
		return nil, err
	}
	if !b.EffectiveExpiry.After(s.Date) {
		return nil, &BatchExpiredError{BatchID: s.BatchID, ExpiredOn: b.EffectiveExpiry, AsOf: s.Date}
	}
	if b.AvailableQty < qty {
		return nil, &InsufficientStockError{BatchID: s.BatchID, ProductID: b.ProductID, Requested: qty, Available: b.AvailableQty}
	}
	return []Allocation{{BatchID: s.BatchID, Quantity: qty}}, nil
}

// CounterSource depletes a named non-batched counter (decoration stock).
// The conditional update enforces the non-negative invariant in one
// statement, so no separate lock is needed.
type CounterSource struct {
	Code string
}

func (s CounterSource) Deplete(ctx context.Context, q Querier, qty int64) ([]Allocation, error) {
	var remaining int64
	err := q.QueryRow(ctx, `UPDATE counters SET quantity = quantity - $2, updated_at = NOW()
WHERE code = $1 AND quantity >= $2 RETURNING quantity`, s.Code, qty).Scan(&remaining)
	if err == nil {
		return []Allocation{{Quantity: qty}}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	var available int64
	switch err := q.QueryRow(ctx, `SELECT quantity FROM counters WHERE code = $1`, s.Code).Scan(&available); {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, shared.ErrNotFound
	case err != nil:
		return nil, err
	}
	return nil, &InsufficientStockError{Counter: s.Code, Requested: qty, Available: available}
}

// AddToCounter tops up a named counter, creating it on first receipt.
func AddToCounter(ctx context.Context, q Querier, code string, qty int64) error {
	_, err := q.Exec(ctx, `INSERT INTO counters (code, quantity, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (code) DO UPDATE SET quantity = counters.quantity + EXCLUDED.quantity, updated_at = NOW()`, code, qty)
	return err
}
