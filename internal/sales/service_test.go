package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bakeledger/bakeledger/internal/ledger"
	"github.com/bakeledger/bakeledger/internal/shared"
)

// fakeTxRepo plans depletions against an in-memory ledger and records
// inserts so atomicity can be asserted.
type fakeTxRepo struct {
	batches  []ledger.BatchAvailability
	counters map[string]int64

	sales     []Sale
	saleItems []SaleItem
	nextID    int64
}

func (f *fakeTxRepo) Deplete(_ context.Context, src ledger.Depletable, qty int64) ([]ledger.Allocation, error) {
	switch s := src.(type) {
	case ledger.FEFOSource:
		var candidates []ledger.BatchAvailability
		for _, b := range f.batches {
			if b.ProductID == s.ProductID && b.EffectiveExpiry.After(s.Date) && b.AvailableQty > 0 {
				candidates = append(candidates, b)
			}
		}
		ledger.SortFEFO(candidates)
		plan, err := ledger.PlanFEFO(candidates, s.ProductID, qty)
		if err != nil {
			return nil, err
		}
		f.apply(plan)
		return plan, nil
	case ledger.PinnedSource:
		for i, b := range f.batches {
			if b.BatchID != s.BatchID {
				continue
			}
			if !b.EffectiveExpiry.After(s.Date) {
				return nil, &ledger.BatchExpiredError{BatchID: b.BatchID, ExpiredOn: b.EffectiveExpiry, AsOf: s.Date}
			}
			if b.AvailableQty < qty {
				return nil, &ledger.InsufficientStockError{BatchID: b.BatchID, ProductID: b.ProductID, Requested: qty, Available: b.AvailableQty}
			}
			f.batches[i].AvailableQty -= qty
			return []ledger.Allocation{{BatchID: b.BatchID, Quantity: qty}}, nil
		}
		return nil, shared.ErrNotFound
	case ledger.CounterSource:
		available, ok := f.counters[s.Code]
		if !ok {
			return nil, shared.ErrNotFound
		}
		if available < qty {
			return nil, &ledger.InsufficientStockError{Counter: s.Code, Requested: qty, Available: available}
		}
		f.counters[s.Code] -= qty
		return []ledger.Allocation{{Quantity: qty}}, nil
	default:
		return nil, errors.New("unknown depletion source")
	}
}

func (f *fakeTxRepo) apply(plan []ledger.Allocation) {
	for _, alloc := range plan {
		for i, b := range f.batches {
			if b.BatchID == alloc.BatchID {
				f.batches[i].AvailableQty -= alloc.Quantity
			}
		}
	}
}

func (f *fakeTxRepo) InsertSale(_ context.Context, sale Sale) (int64, error) {
	f.nextID++
	sale.ID = f.nextID
	f.sales = append(f.sales, sale)
	return f.nextID, nil
}

func (f *fakeTxRepo) InsertSaleItems(_ context.Context, saleID int64, items []SaleItem) error {
	f.saleItems = append(f.saleItems, items...)
	return nil
}

type fakeRepo struct {
	tx *fakeTxRepo
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot so a failed transaction leaves no trace, mirroring rollback.
	batches := make([]ledger.BatchAvailability, len(f.tx.batches))
	copy(batches, f.tx.batches)
	counters := make(map[string]int64, len(f.tx.counters))
	for k, v := range f.tx.counters {
		counters[k] = v
	}
	sales, items := len(f.tx.sales), len(f.tx.saleItems)

	if err := fn(ctx, f.tx); err != nil {
		f.tx.batches = batches
		f.tx.counters = counters
		f.tx.sales = f.tx.sales[:sales]
		f.tx.saleItems = f.tx.saleItems[:items]
		return err
	}
	return nil
}

func saleDate() time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

func availBatch(id, productID, qty int64, expiryDay string) ledger.BatchAvailability {
	expiry, err := time.ParseInLocation("2006-01-02", expiryDay, time.UTC)
	if err != nil {
		panic(err)
	}
	return ledger.BatchAvailability{BatchID: id, ProductID: productID, AvailableQty: qty, EffectiveExpiry: expiry}
}

func newSaleService(tx *fakeTxRepo) (*Service, *fakeRepo) {
	repo := &fakeRepo{tx: tx}
	return NewService(repo, nil, nil, nil, nil), repo
}

func TestRecordSaleSplitsFEFOAcrossBatches(t *testing.T) {
	tx := &fakeTxRepo{
		batches: []ledger.BatchAvailability{
			availBatch(2, 1, 4, "2026-06-04"),
			availBatch(1, 1, 3, "2026-06-02"),
		},
		counters: map[string]int64{},
	}
	svc, _ := newSaleService(tx)

	result, err := svc.RecordSale(context.Background(), RecordSaleInput{
		SaleDate:    saleDate(),
		PaymentType: PaymentCash,
		Items:       []LineInput{{ProductID: 1, Quantity: 5, UnitPrice: 18.00}},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	// Earliest expiry drained first, remainder from the later batch.
	require.Equal(t, int64(1), result.Items[0].BatchID)
	require.Equal(t, int64(3), result.Items[0].Quantity)
	require.Equal(t, int64(2), result.Items[1].BatchID)
	require.Equal(t, int64(2), result.Items[1].Quantity)
	require.InDelta(t, 90.00, result.TotalAmount, 0.001)
}

func TestRecordSaleAtomicAcrossLines(t *testing.T) {
	tx := &fakeTxRepo{
		batches: []ledger.BatchAvailability{
			availBatch(1, 1, 10, "2026-06-04"),
			availBatch(2, 2, 1, "2026-06-04"),
		},
		counters: map[string]int64{},
	}
	svc, _ := newSaleService(tx)

	_, err := svc.RecordSale(context.Background(), RecordSaleInput{
		SaleDate:    saleDate(),
		PaymentType: PaymentCard,
		Items: []LineInput{
			{ProductID: 1, Quantity: 5, UnitPrice: 18.00},
			{ProductID: 2, Quantity: 3, UnitPrice: 35.00},
		},
	})
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(2), insufficient.ProductID)

	// Nothing persisted, including the line that would have succeeded.
	require.Empty(t, tx.sales)
	require.Empty(t, tx.saleItems)
	require.Equal(t, int64(10), tx.batches[0].AvailableQty)
}

func TestRecordSalePinnedBatch(t *testing.T) {
	tx := &fakeTxRepo{
		batches: []ledger.BatchAvailability{
			availBatch(1, 1, 3, "2026-06-02"),
			availBatch(2, 1, 4, "2026-06-04"),
		},
		counters: map[string]int64{},
	}
	svc, _ := newSaleService(tx)

	result, err := svc.RecordSale(context.Background(), RecordSaleInput{
		SaleDate:    saleDate(),
		PaymentType: PaymentUPI,
		Items:       []LineInput{{ProductID: 1, BatchID: 2, Quantity: 2, UnitPrice: 18.00}},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, int64(2), result.Items[0].BatchID)
	// The FEFO-preferred batch stays untouched when the caller pins one.
	require.Equal(t, int64(3), tx.batches[0].AvailableQty)
}

func TestRecordSaleRejectsExpiredPinnedBatch(t *testing.T) {
	tx := &fakeTxRepo{
		batches:  []ledger.BatchAvailability{availBatch(1, 1, 3, "2026-05-30")},
		counters: map[string]int64{},
	}
	svc, _ := newSaleService(tx)

	_, err := svc.RecordSale(context.Background(), RecordSaleInput{
		SaleDate:    saleDate(),
		PaymentType: PaymentCash,
		Items:       []LineInput{{ProductID: 1, BatchID: 1, Quantity: 1, UnitPrice: 18.00}},
	})
	var expired *ledger.BatchExpiredError
	require.ErrorAs(t, err, &expired)
	require.Equal(t, int64(1), expired.BatchID)
}

func TestRecordSaleDepletesCounter(t *testing.T) {
	tx := &fakeTxRepo{
		batches:  nil,
		counters: map[string]int64{"DECOR": 10},
	}
	svc, _ := newSaleService(tx)

	result, err := svc.RecordSale(context.Background(), RecordSaleInput{
		SaleDate:    saleDate(),
		PaymentType: PaymentCash,
		Items:       []LineInput{{DecorationCode: "DECOR", Quantity: 4, UnitPrice: 2.00}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), tx.counters["DECOR"])
	// Counter lines carry neither product nor batch identity; the repo
	// stores both columns as NULL.
	require.Zero(t, result.Items[0].ProductID)
	require.Zero(t, result.Items[0].BatchID)
	require.InDelta(t, 8.00, result.TotalAmount, 0.001)
}

func TestRecordSaleCounterShortageAbortsSale(t *testing.T) {
	tx := &fakeTxRepo{
		batches:  []ledger.BatchAvailability{availBatch(1, 1, 10, "2026-06-04")},
		counters: map[string]int64{"DECOR": 2},
	}
	svc, _ := newSaleService(tx)

	_, err := svc.RecordSale(context.Background(), RecordSaleInput{
		SaleDate:    saleDate(),
		PaymentType: PaymentCash,
		Items: []LineInput{
			{ProductID: 1, Quantity: 5, UnitPrice: 18.00},
			{DecorationCode: "DECOR", Quantity: 4, UnitPrice: 2.00},
		},
	})
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "DECOR", insufficient.Counter)
	require.Equal(t, int64(10), tx.batches[0].AvailableQty)
	require.Equal(t, int64(2), tx.counters["DECOR"])
}

func TestRecordSaleValidatesInput(t *testing.T) {
	svc, _ := newSaleService(&fakeTxRepo{counters: map[string]int64{}})

	_, err := svc.RecordSale(context.Background(), RecordSaleInput{PaymentType: PaymentCash})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordSale(context.Background(), RecordSaleInput{
		SaleDate:    saleDate(),
		PaymentType: "CHEQUE",
		Items:       []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordSale(context.Background(), RecordSaleInput{
		SaleDate:    saleDate(),
		PaymentType: PaymentCash,
		Items:       []LineInput{{Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
