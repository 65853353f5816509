package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bakeledger/bakeledger/internal/shared"
)

// Service coordinates catalog operations.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]Product, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByItemCode(ctx context.Context, itemCode string) (Product, error) {
	if strings.TrimSpace(itemCode) == "" {
		return Product{}, fmt.Errorf("%w: item code required", shared.ErrValidation)
	}
	return s.repo.GetByItemCode(ctx, itemCode)
}

// Upsert imports or refreshes a catalog entry. When category or shelf life
// are unset they are inferred from the item code prefix.
func (s *Service) Upsert(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	if product.Category == "" || product.ShelfLifeDays < 0 {
		inferred := InferCategoryAndShelfLife(product.ItemCode)
		if product.Category == "" {
			product.Category = inferred.Category
		}
		if product.ShelfLifeDays < 0 {
			product.ShelfLifeDays = inferred.ShelfLifeDays
		}
	}
	return s.repo.Upsert(ctx, product)
}

// EnsureProduct resolves an item code, creating the entry with inferred
// classification when the supplier invoice introduces a new code. The
// bool reports whether the product was created by this call.
func (s *Service) EnsureProduct(ctx context.Context, itemCode, name string, invoicePrice float64) (Product, bool, error) {
	product, err := s.repo.GetByItemCode(ctx, itemCode)
	if err == nil {
		return product, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Product{}, false, err
	}
	inferred := InferCategoryAndShelfLife(itemCode)
	created, err := s.repo.Upsert(ctx, Product{
		ItemCode:      strings.ToUpper(strings.TrimSpace(itemCode)),
		Name:          name,
		Category:      inferred.Category,
		ShelfLifeDays: inferred.ShelfLifeDays,
		InvoicePrice:  invoicePrice,
		SalePrice:     invoicePrice,
	})
	return created, err == nil, err
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.ItemCode) == "" {
		return fmt.Errorf("%w: item code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}
	if p.InvoicePrice < 0 || p.SalePrice < 0 {
		return fmt.Errorf("%w: prices must be >= 0", shared.ErrValidation)
	}
	return nil
}
