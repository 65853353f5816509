package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bakeledger/bakeledger/internal/catalog"
	"github.com/bakeledger/bakeledger/internal/shared"
)

type fakeTxRepo struct {
	invoices map[string]int64
	batches  []struct {
		productID int64
		quantity  int64
		ref       string
	}
	nextInvoiceID int64
	nextBatchID   int64
}

func (f *fakeTxRepo) InsertInvoice(_ context.Context, inv Invoice) (int64, error) {
	if _, ok := f.invoices[inv.InvoiceNumber]; ok {
		return 0, shared.ErrConflict
	}
	f.nextInvoiceID++
	f.invoices[inv.InvoiceNumber] = f.nextInvoiceID
	return f.nextInvoiceID, nil
}

func (f *fakeTxRepo) InsertBatch(_ context.Context, productID int64, quantity int64, inv Invoice) (int64, error) {
	f.batches = append(f.batches, struct {
		productID int64
		quantity  int64
		ref       string
	}{productID, quantity, inv.InvoiceNumber})
	f.nextBatchID++
	return f.nextBatchID, nil
}

type fakeRepo struct {
	tx        *fakeTxRepo
	committed bool
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := len(f.tx.batches)
	if err := fn(ctx, f.tx); err != nil {
		f.tx.batches = f.tx.batches[:snapshot]
		return err
	}
	f.committed = true
	return nil
}

type fakeCatalog struct {
	known  map[string]catalog.Product
	nextID int64
}

func (f *fakeCatalog) EnsureProduct(_ context.Context, itemCode, name string, invoicePrice float64) (catalog.Product, bool, error) {
	if p, ok := f.known[itemCode]; ok {
		return p, false, nil
	}
	f.nextID++
	p := catalog.Product{ID: f.nextID, ItemCode: itemCode, Name: name, InvoicePrice: invoicePrice}
	f.known[itemCode] = p
	return p, true, nil
}

func invoiceDate() time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

func TestReceiveStockAppendsOneBatchPerLine(t *testing.T) {
	repo := &fakeRepo{tx: &fakeTxRepo{invoices: map[string]int64{}}}
	cat := &fakeCatalog{known: map[string]catalog.Product{
		"OGB101": {ID: 1, ItemCode: "OGB101"},
	}}
	svc := NewService(repo, cat, nil, nil, nil)

	result, err := svc.ReceiveStock(context.Background(), 9, ParsedInvoice{
		InvoiceNumber: "INV-100",
		InvoiceDate:   invoiceDate(),
		Lines: []InvoiceLine{
			{ItemCode: "OGB101", Name: "Sourdough", Quantity: 20, InvoicePrice: 12.50},
			{ItemCode: "OGC200", Name: "Chocolate Cake", Quantity: 4, InvoicePrice: 80.00},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.InvoiceID)
	require.Len(t, result.BatchIDs, 2)
	require.InDelta(t, 570.00, result.TotalAmount, 0.001)

	require.Len(t, repo.tx.batches, 2)
	require.Equal(t, "INV-100", repo.tx.batches[0].ref)
	require.Equal(t, int64(20), repo.tx.batches[0].quantity)
}

func TestReceiveStockRegistersUnknownProducts(t *testing.T) {
	repo := &fakeRepo{tx: &fakeTxRepo{invoices: map[string]int64{}}}
	cat := &fakeCatalog{known: map[string]catalog.Product{}}
	svc := NewService(repo, cat, nil, nil, nil)

	result, err := svc.ReceiveStock(context.Background(), 9, ParsedInvoice{
		InvoiceNumber: "INV-101",
		InvoiceDate:   invoiceDate(),
		Lines:         []InvoiceLine{{ItemCode: "OGK300", Name: "Butter Cookies", Quantity: 10, InvoicePrice: 6.00}},
	})
	require.NoError(t, err)
	require.Len(t, result.NewProducts, 1)
	require.Contains(t, cat.known, "OGK300")
}

func TestReceiveStockRejectsDuplicateInvoice(t *testing.T) {
	repo := &fakeRepo{tx: &fakeTxRepo{invoices: map[string]int64{"INV-100": 1}}}
	cat := &fakeCatalog{known: map[string]catalog.Product{}}
	svc := NewService(repo, cat, nil, nil, nil)

	_, err := svc.ReceiveStock(context.Background(), 9, ParsedInvoice{
		InvoiceNumber: "INV-100",
		InvoiceDate:   invoiceDate(),
		Lines:         []InvoiceLine{{ItemCode: "OGB101", Name: "Sourdough", Quantity: 1, InvoicePrice: 1.00}},
	})
	require.True(t, errors.Is(err, shared.ErrConflict))
	require.Empty(t, repo.tx.batches)
}

func TestReceiveStockValidatesInput(t *testing.T) {
	svc := NewService(&fakeRepo{tx: &fakeTxRepo{invoices: map[string]int64{}}}, &fakeCatalog{known: map[string]catalog.Product{}}, nil, nil, nil)

	_, err := svc.ReceiveStock(context.Background(), 9, ParsedInvoice{})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.ReceiveStock(context.Background(), 9, ParsedInvoice{
		InvoiceNumber: "INV-102",
		InvoiceDate:   invoiceDate(),
		Lines:         []InvoiceLine{{ItemCode: "OGB101", Name: "Sourdough", Quantity: 0, InvoicePrice: 1.00}},
	})
	require.True(t, errors.Is(err, shared.ErrValidation))
}
