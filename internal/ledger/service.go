package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bakeledger/bakeledger/internal/platform/cache"
	"github.com/bakeledger/bakeledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	AvailableBatches(ctx context.Context, f AvailabilityFilter) ([]BatchAvailability, error)
	ProductAvailability(ctx context.Context, date time.Time) ([]ProductAvailability, error)
}

// Service exposes the ledger read side. The aggregated product view is
// cached; writers bump the cache version after commit.
type Service struct {
	repo   RepositoryPort
	cache  *cache.JSONCache
	logger *slog.Logger
	sf     singleflight.Group
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, c *cache.JSONCache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: c, logger: logger}
}

// AvailableBatches lists per-batch availability FEFO-ordered as of date.
func (s *Service) AvailableBatches(ctx context.Context, productID int64, date time.Time, includeExpired bool) ([]BatchAvailability, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: reference date required", shared.ErrValidation)
	}
	return s.repo.AvailableBatches(ctx, AvailabilityFilter{
		ProductID:      productID,
		Date:           date,
		IncludeExpired: includeExpired,
	})
}

// ProductAvailability returns the aggregated per-product view. Concurrent
// cache misses for the same date collapse into one repository query.
func (s *Service) ProductAvailability(ctx context.Context, date time.Time) ([]ProductAvailability, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: reference date required", shared.ErrValidation)
	}
	day := date.Format("2006-01-02")
	key, err := s.cache.BuildKey(ctx, "ledger", "availability", day)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("availability cache key", slog.Any("error", err))
		}
		return s.repo.ProductAvailability(ctx, date)
	}
	result, err, _ := s.sf.Do(key, func() (any, error) {
		var view []ProductAvailability
		err := s.cache.FetchJSON(ctx, key, &view, func(ctx context.Context) (any, error) {
			return s.repo.ProductAvailability(ctx, date)
		})
		return view, err
	})
	if err != nil {
		return nil, err
	}
	return result.([]ProductAvailability), nil
}

// InvalidateAvailability bumps the cache version after a committed write.
func (s *Service) InvalidateAvailability(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("availability cache bump", slog.Any("error", err))
	}
}
