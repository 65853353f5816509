package creditnote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bakeledger/bakeledger/internal/returns"
	"github.com/bakeledger/bakeledger/internal/shared"
)

type fakeTxRepo struct {
	pool     []PendingReturn
	statuses map[int64]returns.CreditStatus
	notes    []CreditNote
	existing map[string]bool // "number|date" rows already persisted
}

func (f *fakeTxRepo) PendingPool(_ context.Context, dates []time.Time) ([]PendingReturn, error) {
	var pending []PendingReturn
	for _, pr := range f.pool {
		if f.statuses[pr.ReturnID] != returns.StatusPending {
			continue
		}
		matchDate := pr.ReturnDate
		if isGRM(pr.RTD) {
			matchDate = pr.EffectiveExpiry
		}
		for _, d := range dates {
			if sameDay(matchDate, d) {
				pending = append(pending, pr)
				break
			}
		}
	}
	return pending, nil
}

func (f *fakeTxRepo) UpdateStatuses(_ context.Context, ids []int64, status returns.CreditStatus) error {
	for _, id := range ids {
		if f.statuses[id] == returns.StatusPending {
			f.statuses[id] = status
		}
	}
	return nil
}

func (f *fakeTxRepo) InsertCreditNote(_ context.Context, cn CreditNote) error {
	key := cn.CreditNoteNumber + "|" + cn.ReturnDate.Format("2006-01-02")
	if f.existing[key] {
		return shared.ErrConflict
	}
	f.existing[key] = true
	f.notes = append(f.notes, cn)
	return nil
}

type fakeRepo struct {
	tx *fakeTxRepo
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f.tx)
}

func newFakeRepo(pool []PendingReturn) *fakeRepo {
	statuses := make(map[int64]returns.CreditStatus, len(pool))
	for _, pr := range pool {
		statuses[pr.ReturnID] = returns.StatusPending
	}
	return &fakeRepo{tx: &fakeTxRepo{pool: pool, statuses: statuses, existing: map[string]bool{}}}
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestReconcileAppliesCanonicalPolicy(t *testing.T) {
	repo := newFakeRepo([]PendingReturn{
		{ReturnID: 1, ItemCode: "OGB101", Quantity: 5, RTD: returns.RTDGrm, EffectiveExpiry: day("2026-06-01")},
		{ReturnID: 2, ItemCode: "OGC200", Quantity: 3, RTD: returns.RTDGrm, EffectiveExpiry: day("2026-06-01")},
		{ReturnID: 3, ItemCode: "OGK300", Quantity: 7, RTD: returns.RTDGrm, EffectiveExpiry: day("2026-06-01")},
	})
	svc := newTestService(repo)

	result, err := svc.Reconcile(context.Background(), 9, ParsedCreditNote{
		CreditNoteNumber: "CN-500",
		CreditDate:       day("2026-06-02"),
		Lines: []CreditNoteLine{
			{ItemCode: "OGB101", Quantity: 5, RTD: 15.00, ReturnDate: day("2026-06-01")},
			{ItemCode: "OGC200", Quantity: 2, RTD: 15.00, ReturnDate: day("2026-06-01")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.ReceivedCount)
	require.Equal(t, 2, result.AlertedCount) // mismatch + leftover

	require.Equal(t, returns.StatusReceived, repo.tx.statuses[1])
	require.Equal(t, returns.StatusAlert, repo.tx.statuses[2])
	require.Equal(t, returns.StatusAlert, repo.tx.statuses[3])
}

func TestReconcileLeavesOtherDatesPending(t *testing.T) {
	repo := newFakeRepo([]PendingReturn{
		{ReturnID: 1, ItemCode: "OGB101", Quantity: 5, RTD: returns.RTDGrm, EffectiveExpiry: day("2026-06-01")},
		{ReturnID: 2, ItemCode: "OGC200", Quantity: 3, RTD: returns.RTDGrm, EffectiveExpiry: day("2026-06-05")},
		{ReturnID: 3, ItemCode: "OGK300", Quantity: 2, RTD: returns.RTDGvn, ReturnDate: day("2026-06-03")},
	})
	svc := newTestService(repo)

	result, err := svc.Reconcile(context.Background(), 9, ParsedCreditNote{
		CreditNoteNumber: "CN-504",
		CreditDate:       day("2026-06-02"),
		Lines: []CreditNoteLine{
			{ItemCode: "OGB101", Quantity: 5, RTD: 15.00, ReturnDate: day("2026-06-01")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.ReceivedCount)
	require.Zero(t, result.AlertedCount)

	// Returns whose credit notes have not arrived yet stay pending.
	require.Equal(t, returns.StatusReceived, repo.tx.statuses[1])
	require.Equal(t, returns.StatusPending, repo.tx.statuses[2])
	require.Equal(t, returns.StatusPending, repo.tx.statuses[3])
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newFakeRepo([]PendingReturn{
		{ReturnID: 1, ItemCode: "OGB101", Quantity: 5, RTD: returns.RTDGrm, EffectiveExpiry: day("2026-06-01")},
	})
	svc := newTestService(repo)

	doc := ParsedCreditNote{
		CreditNoteNumber: "CN-501",
		CreditDate:       day("2026-06-02"),
		Lines: []CreditNoteLine{
			{ItemCode: "OGB101", Quantity: 5, RTD: 15.00, ReturnDate: day("2026-06-01")},
		},
	}

	first, err := svc.Reconcile(context.Background(), 9, doc)
	require.NoError(t, err)
	require.Equal(t, 1, first.ReceivedCount)

	second, err := svc.Reconcile(context.Background(), 9, doc)
	require.NoError(t, err)
	require.Zero(t, second.ReceivedCount)
	require.Zero(t, second.AlertedCount)
	require.Equal(t, returns.StatusReceived, repo.tx.statuses[1])
	require.Equal(t, []string{"2026-06-01"}, second.SkippedNotes)
}

func TestReconcilePersistsOneNotePerReturnDate(t *testing.T) {
	repo := newFakeRepo(nil)
	svc := newTestService(repo)

	result, err := svc.Reconcile(context.Background(), 9, ParsedCreditNote{
		CreditNoteNumber: "CN-502",
		CreditDate:       day("2026-06-02"),
		Lines: []CreditNoteLine{
			{ItemCode: "OGB101", Quantity: 5, RTD: 15.00, ReturnDate: day("2026-06-01")},
			{ItemCode: "OGC200", Quantity: 2, RTD: 15.00, ReturnDate: day("2026-06-01")},
			{ItemCode: "OGK300", Quantity: 1, RTD: 0.00, ReturnDate: day("2026-05-30")},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 3)

	require.Len(t, repo.tx.notes, 2)
	require.Equal(t, int64(7), repo.tx.notes[0].Quantity)
	require.Equal(t, "2026-06-01", repo.tx.notes[0].ReturnDate.Format("2006-01-02"))
	require.Equal(t, int64(1), repo.tx.notes[1].Quantity)

	// Each split row keeps its own document lines.
	require.Len(t, repo.tx.notes[0].Items, 2)
	require.Equal(t, "OGB101", repo.tx.notes[0].Items[0].ItemCode)
	require.Len(t, repo.tx.notes[1].Items, 1)
	require.Equal(t, "OGK300", repo.tx.notes[1].Items[0].ItemCode)
}

func TestReconcileValidatesDocument(t *testing.T) {
	svc := newTestService(newFakeRepo(nil))

	_, err := svc.Reconcile(context.Background(), 9, ParsedCreditNote{})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Reconcile(context.Background(), 9, ParsedCreditNote{
		CreditNoteNumber: "CN-503",
		CreditDate:       day("2026-06-02"),
		Lines:            []CreditNoteLine{{ItemCode: "", Quantity: 1, ReturnDate: day("2026-06-01")}},
	})
	require.True(t, errors.Is(err, shared.ErrValidation))
}
