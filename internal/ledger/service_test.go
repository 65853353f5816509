package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bakeledger/bakeledger/internal/platform/cache"
	"github.com/bakeledger/bakeledger/internal/shared"
)

type fakeLedgerRepo struct {
	batches  []BatchAvailability
	products []ProductAvailability
	calls    int
}

func (f *fakeLedgerRepo) AvailableBatches(_ context.Context, _ AvailabilityFilter) ([]BatchAvailability, error) {
	return f.batches, nil
}

func (f *fakeLedgerRepo) ProductAvailability(_ context.Context, _ time.Time) ([]ProductAvailability, error) {
	f.calls++
	return f.products, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProductAvailabilityServedFromCacheUntilInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &fakeLedgerRepo{products: []ProductAvailability{
		{ProductID: 1, ItemCode: "OGB101", Name: "Sourdough Loaf", AvailableQty: 12},
	}}
	svc := NewService(repo, cache.NewJSONCache(client, time.Minute, "ledger:availability"), testLogger())

	date := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.ProductAvailability(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, repo.calls)

	second, err := svc.ProductAvailability(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.calls)

	svc.InvalidateAvailability(context.Background())

	_, err = svc.ProductAvailability(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestProductAvailabilityWorksWithoutCache(t *testing.T) {
	repo := &fakeLedgerRepo{products: []ProductAvailability{{ProductID: 1, AvailableQty: 3}}}
	svc := NewService(repo, nil, testLogger())

	view, err := svc.ProductAvailability(context.Background(), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, view, 1)

	// Invalidation with no cache configured is a no-op.
	svc.InvalidateAvailability(context.Background())
}

func TestAvailableBatchesRequiresDate(t *testing.T) {
	svc := NewService(&fakeLedgerRepo{}, nil, testLogger())

	_, err := svc.AvailableBatches(context.Background(), 1, time.Time{}, false)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProductAvailability(context.Background(), time.Time{})
	require.ErrorIs(t, err, shared.ErrValidation)
}
