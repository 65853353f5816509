package returns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bakeledger/bakeledger/internal/ledger"
	"github.com/bakeledger/bakeledger/internal/shared"
)

type fakeTxRepo struct {
	availability map[int64]ledger.BatchAvailability
	inserted     []Return
}

func (f *fakeTxRepo) CheckAvailability(_ context.Context, batchID int64) (ledger.BatchAvailability, error) {
	a, ok := f.availability[batchID]
	if !ok {
		return ledger.BatchAvailability{}, shared.ErrNotFound
	}
	return a, nil
}

func (f *fakeTxRepo) InsertReturn(_ context.Context, ret Return) (int64, error) {
	f.inserted = append(f.inserted, ret)
	return int64(len(f.inserted)), nil
}

type fakeRepo struct {
	tx         *fakeTxRepo
	committed  []Return
	candidates []ledger.BatchAvailability
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	f.tx.inserted = nil
	if err := fn(ctx, f.tx); err != nil {
		return err
	}
	f.committed = append(f.committed, f.tx.inserted...)
	return nil
}

func (f *fakeRepo) Candidates(_ context.Context, _ ledger.AvailabilityFilter) ([]ledger.BatchAvailability, error) {
	return f.candidates, nil
}

func date(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func TestProcessGRMReturnComputesLoss(t *testing.T) {
	repo := &fakeRepo{tx: &fakeTxRepo{availability: map[int64]ledger.BatchAvailability{
		7: {BatchID: 7, ProductID: 3, AvailableQty: 12, InvoicePrice: 12.00},
	}}}
	svc := NewService(repo, nil, nil)

	summary, err := svc.ProcessGRMReturn(context.Background(), ProcessInput{
		Date:  date("2026-08-28"),
		Items: []LineInput{{ProductID: 3, BatchID: 7, Quantity: 10, InvoicePrice: 12.00}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalItems)
	require.Equal(t, int64(10), summary.TotalQuantity)
	require.InDelta(t, 18.00, summary.TotalLoss, 0.001)

	require.Len(t, repo.committed, 1)
	ret := repo.committed[0]
	require.Equal(t, TypeGRM, ret.Type)
	require.Equal(t, StatusPending, ret.CreditStatus)
	require.InDelta(t, RTDGrm, ret.RTD, 0.001)
	require.InDelta(t, 18.00, ret.LossAmount, 0.001)
}

func TestProcessGVNDamageHasZeroLoss(t *testing.T) {
	repo := &fakeRepo{tx: &fakeTxRepo{availability: map[int64]ledger.BatchAvailability{
		4: {BatchID: 4, ProductID: 9, AvailableQty: 5, InvoicePrice: 40.00},
	}}}
	svc := NewService(repo, nil, nil)

	summary, err := svc.ProcessGVNDamage(context.Background(), ProcessInput{
		Date:  date("2026-08-28"),
		Items: []LineInput{{ProductID: 9, BatchID: 4, Quantity: 5, InvoicePrice: 40.00}},
	})
	require.NoError(t, err)
	require.Zero(t, summary.TotalLoss)

	require.Len(t, repo.committed, 1)
	require.Equal(t, TypeGVN, repo.committed[0].Type)
	require.InDelta(t, RTDGvn, repo.committed[0].RTD, 0.001)
	require.Zero(t, repo.committed[0].LossAmount)
}

func TestProcessAbortsWholeBatchOnShortage(t *testing.T) {
	repo := &fakeRepo{tx: &fakeTxRepo{availability: map[int64]ledger.BatchAvailability{
		1: {BatchID: 1, ProductID: 2, AvailableQty: 20, InvoicePrice: 10.00},
		2: {BatchID: 2, ProductID: 2, AvailableQty: 3, InvoicePrice: 10.00},
	}}}
	svc := NewService(repo, nil, nil)

	_, err := svc.ProcessGRMReturn(context.Background(), ProcessInput{
		Date: date("2026-08-28"),
		Items: []LineInput{
			{ProductID: 2, BatchID: 1, Quantity: 5, InvoicePrice: 10.00},
			{ProductID: 2, BatchID: 2, Quantity: 8, InvoicePrice: 10.00},
		},
	})
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(2), insufficient.BatchID)
	require.Equal(t, int64(8), insufficient.Requested)
	require.Equal(t, int64(3), insufficient.Available)
	require.Empty(t, repo.committed)
}

func TestProcessRejectsProductMismatch(t *testing.T) {
	repo := &fakeRepo{tx: &fakeTxRepo{availability: map[int64]ledger.BatchAvailability{
		1: {BatchID: 1, ProductID: 2, AvailableQty: 20, InvoicePrice: 10.00},
	}}}
	svc := NewService(repo, nil, nil)

	_, err := svc.ProcessGRMReturn(context.Background(), ProcessInput{
		Date:  date("2026-08-28"),
		Items: []LineInput{{ProductID: 99, BatchID: 1, Quantity: 1, InvoicePrice: 10.00}},
	})
	require.True(t, errors.Is(err, shared.ErrValidation))
	require.Empty(t, repo.committed)
}

func TestProcessValidatesInput(t *testing.T) {
	svc := NewService(&fakeRepo{tx: &fakeTxRepo{}}, nil, nil)

	_, err := svc.ProcessGRMReturn(context.Background(), ProcessInput{Date: date("2026-08-28")})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.ProcessGVNDamage(context.Background(), ProcessInput{
		Date:  date("2026-08-28"),
		Items: []LineInput{{ProductID: 1, BatchID: 1, Quantity: 0}},
	})
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestLossAmountRounding(t *testing.T) {
	require.InDelta(t, 18.00, LossAmount(TypeGRM, 10, 12.00), 0.0001)
	require.InDelta(t, 0.77, LossAmount(TypeGRM, 1, 5.10), 0.0001)
	require.Zero(t, LossAmount(TypeGVN, 10, 12.00))
}
