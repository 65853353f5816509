package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bakeledger/bakeledger/internal/shared"
)

type fakeInvoice struct {
	id     int64
	total  float64
	status string
}

type fakeTxRepo struct {
	receiptID   int64
	invoices    map[string]*fakeInvoice
	creditNotes map[string][]int64
	cleared     map[string]bool // "receipt|doctype|bill"
	items       []ClearedItem
	bills       []Bill
}

func (f *fakeTxRepo) UpsertReceipt(_ context.Context, _ ParsedRosReceipt) (int64, error) {
	return f.receiptID, nil
}

func (f *fakeTxRepo) ReplaceBills(_ context.Context, _ int64, bills []Bill) error {
	f.bills = append([]Bill(nil), bills...)
	return nil
}

func (f *fakeTxRepo) FindInvoice(_ context.Context, number string) (int64, float64, string, error) {
	inv, ok := f.invoices[number]
	if !ok {
		return 0, 0, "", shared.ErrNotFound
	}
	return inv.id, inv.total, inv.status, nil
}

func (f *fakeTxRepo) ClearInvoice(_ context.Context, id int64) error {
	for _, inv := range f.invoices {
		if inv.id == id {
			inv.status = "cleared"
		}
	}
	return nil
}

func (f *fakeTxRepo) ClearCreditNotes(_ context.Context, number string) ([]int64, error) {
	return f.creditNotes[number], nil
}

func (f *fakeTxRepo) InsertClearedItem(_ context.Context, item ClearedItem) (bool, error) {
	key := item.DocType + "|" + item.BillNumber
	if f.cleared[key] {
		return false, nil
	}
	f.cleared[key] = true
	f.items = append(f.items, item)
	return true, nil
}

type fakeRepo struct {
	tx *fakeTxRepo
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f.tx)
}

func newTestService(tx *fakeTxRepo) *Service {
	return NewService(&fakeRepo{tx: tx}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func receiptDate() time.Time {
	return time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC)
}

func TestClearInvoiceBillWithinTolerance(t *testing.T) {
	tx := &fakeTxRepo{
		receiptID:   77,
		invoices:    map[string]*fakeInvoice{"INV-100": {id: 10, total: 500.00, status: "pending"}},
		creditNotes: map[string][]int64{},
		cleared:     map[string]bool{},
	}
	svc := newTestService(tx)

	result, err := svc.ClearFromReceipt(context.Background(), 9, ParsedRosReceipt{
		ReceiptNumber: "ROS-1",
		ReceiptDate:   receiptDate(),
		Bills:         []Bill{{DocType: DocTypeSR, BillNumber: "INV-100", Amount: 500.00}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(77), result.ReceiptID)
	require.Equal(t, BillCleared, result.Bills[0].Result)
	require.Equal(t, "cleared", tx.invoices["INV-100"].status)
	require.Len(t, tx.items, 1)
	require.Equal(t, "invoice", tx.items[0].DocType)
	require.Equal(t, int64(10), tx.items[0].DocID)

	// The receipt's own bill lines are persisted alongside the header.
	require.Len(t, tx.bills, 1)
	require.Equal(t, "INV-100", tx.bills[0].BillNumber)
}

func TestClearSkipsAmountMismatch(t *testing.T) {
	tx := &fakeTxRepo{
		receiptID:   77,
		invoices:    map[string]*fakeInvoice{"INV-100": {id: 10, total: 500.00, status: "pending"}},
		creditNotes: map[string][]int64{},
		cleared:     map[string]bool{},
	}
	svc := newTestService(tx)

	result, err := svc.ClearFromReceipt(context.Background(), 9, ParsedRosReceipt{
		ReceiptNumber: "ROS-2",
		ReceiptDate:   receiptDate(),
		Bills:         []Bill{{DocType: DocTypeSR, BillNumber: "INV-100", Amount: 480.00}},
	})
	require.NoError(t, err)
	require.Equal(t, BillSkippedBadAmount, result.Bills[0].Result)
	require.Equal(t, 1, result.SkippedCount)
	require.Equal(t, "pending", tx.invoices["INV-100"].status)
	require.Empty(t, tx.items)
}

func TestClearSkipsUnknownDocuments(t *testing.T) {
	tx := &fakeTxRepo{receiptID: 77, invoices: map[string]*fakeInvoice{}, creditNotes: map[string][]int64{}, cleared: map[string]bool{}}
	svc := newTestService(tx)

	result, err := svc.ClearFromReceipt(context.Background(), 9, ParsedRosReceipt{
		ReceiptNumber: "ROS-3",
		ReceiptDate:   receiptDate(),
		Bills: []Bill{
			{DocType: DocTypeSR, BillNumber: "INV-404", Amount: 10.00},
			{DocType: DocTypeCN, BillNumber: "CN-404", Amount: 5.00},
		},
	})
	require.NoError(t, err)
	require.Equal(t, BillSkippedNoMatch, result.Bills[0].Result)
	require.Equal(t, BillSkippedNoMatch, result.Bills[1].Result)
	require.Equal(t, 2, result.SkippedCount)
}

func TestClearCreditNoteIgnoresAmount(t *testing.T) {
	tx := &fakeTxRepo{
		receiptID:   77,
		invoices:    map[string]*fakeInvoice{},
		creditNotes: map[string][]int64{"CN-500": {31, 32}},
		cleared:     map[string]bool{},
	}
	svc := newTestService(tx)

	result, err := svc.ClearFromReceipt(context.Background(), 9, ParsedRosReceipt{
		ReceiptNumber: "ROS-4",
		ReceiptDate:   receiptDate(),
		Bills:         []Bill{{DocType: DocTypeCN, BillNumber: "CN-500", Amount: 123.45}},
	})
	require.NoError(t, err)
	require.Equal(t, BillCleared, result.Bills[0].Result)
	require.Len(t, tx.items, 1)
	require.Equal(t, "credit_note", tx.items[0].DocType)
}

func TestClearReprocessingIsIdempotent(t *testing.T) {
	tx := &fakeTxRepo{
		receiptID:   77,
		invoices:    map[string]*fakeInvoice{"INV-100": {id: 10, total: 500.00, status: "pending"}},
		creditNotes: map[string][]int64{},
		cleared:     map[string]bool{},
	}
	svc := newTestService(tx)

	receipt := ParsedRosReceipt{
		ReceiptNumber: "ROS-5",
		ReceiptDate:   receiptDate(),
		Bills:         []Bill{{DocType: DocTypeSR, BillNumber: "INV-100", Amount: 500.00}},
	}

	first, err := svc.ClearFromReceipt(context.Background(), 9, receipt)
	require.NoError(t, err)
	require.Equal(t, BillCleared, first.Bills[0].Result)

	second, err := svc.ClearFromReceipt(context.Background(), 9, receipt)
	require.NoError(t, err)
	require.Equal(t, BillAlreadyCleared, second.Bills[0].Result)
	require.Len(t, tx.items, 1)
}

func TestClearValidatesReceipt(t *testing.T) {
	svc := newTestService(&fakeTxRepo{cleared: map[string]bool{}})

	_, err := svc.ClearFromReceipt(context.Background(), 9, ParsedRosReceipt{})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.ClearFromReceipt(context.Background(), 9, ParsedRosReceipt{
		ReceiptNumber: "ROS-6",
		ReceiptDate:   receiptDate(),
		Bills:         []Bill{{DocType: DocTypeSR, BillNumber: ""}},
	})
	require.True(t, errors.Is(err, shared.ErrValidation))
}
