package sales

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bakeledger/bakeledger/internal/ledger"
	"github.com/bakeledger/bakeledger/internal/observability"
	"github.com/bakeledger/bakeledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator bumps availability read caches after a committed write.
type CacheInvalidator interface {
	InvalidateAvailability(ctx context.Context)
}

// Service is the sale allocator.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	invalidator CacheInvalidator
	metrics     *observability.Metrics
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, invalidator CacheInvalidator, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, invalidator: invalidator, metrics: metrics}
}

// RecordSale allocates every requested line inside one transaction.
// Batch lines without a pinned batch are split FEFO; decoration lines come
// off the named counter. Any line failing aborts the whole sale.
func (s *Service) RecordSale(ctx context.Context, input RecordSaleInput) (RecordSaleResult, error) {
	if err := validateInput(input); err != nil {
		return RecordSaleResult{}, err
	}

	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}

	insertedKey := false
	key := ""
	if s.idempotency != nil {
		key = fmt.Sprintf("sale:%s", input.Reference)
		if err := s.idempotency.CheckAndInsert(ctx, key, "sales"); err != nil {
			return RecordSaleResult{}, err
		}
		insertedKey = true
	}

	var result RecordSaleResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		total := decimal.Zero
		var items []SaleItem
		for _, line := range input.Items {
			src, path := depletionSource(line, input)
			allocations, err := tx.Deplete(ctx, src, line.Quantity)
			if err != nil {
				return err
			}
			unitPrice := decimal.NewFromFloat(line.UnitPrice)
			for _, alloc := range allocations {
				lineTotal := unitPrice.Mul(decimal.NewFromInt(alloc.Quantity)).Round(2)
				total = total.Add(lineTotal)
				items = append(items, SaleItem{
					ProductID: line.ProductID,
					BatchID:   alloc.BatchID,
					Quantity:  alloc.Quantity,
					UnitPrice: line.UnitPrice,
					LineTotal: lineTotal.InexactFloat64(),
				})
				s.metrics.ObserveAllocation(path, alloc.Quantity)
			}
		}

		sale := Sale{
			SaleDate:    input.SaleDate,
			PaymentType: input.PaymentType,
			TotalAmount: total.Round(2).InexactFloat64(),
			Reference:   input.Reference,
			StaffID:     input.StaffID,
		}
		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].SaleID = saleID
		}
		if err := tx.InsertSaleItems(ctx, saleID, items); err != nil {
			return err
		}
		result = RecordSaleResult{SaleID: saleID, Reference: sale.Reference, TotalAmount: sale.TotalAmount, Items: items}
		return nil
	})
	if err != nil {
		s.metrics.ObserveRollback()
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return RecordSaleResult{}, err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateAvailability(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			StaffID:  input.StaffID,
			Action:   "sales:record",
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", result.SaleID),
			Meta: map[string]any{
				"total_amount": result.TotalAmount,
				"line_count":   len(input.Items),
				"payment_type": string(input.PaymentType),
			},
		})
	}
	return result, nil
}

func depletionSource(line LineInput, input RecordSaleInput) (ledger.Depletable, string) {
	switch {
	case line.DecorationCode != "":
		return ledger.CounterSource{Code: line.DecorationCode}, "counter"
	case line.BatchID != 0:
		return ledger.PinnedSource{BatchID: line.BatchID, Date: input.SaleDate}, "pinned"
	default:
		return ledger.FEFOSource{ProductID: line.ProductID, Date: input.SaleDate}, "fefo"
	}
}

func validateInput(input RecordSaleInput) error {
	if input.SaleDate.IsZero() {
		return fmt.Errorf("%w: sale date required", shared.ErrValidation)
	}
	if !input.PaymentType.Valid() {
		return fmt.Errorf("%w: unknown payment type %q", shared.ErrValidation, input.PaymentType)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	for i, line := range input.Items {
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d: quantity must be > 0", shared.ErrValidation, i+1)
		}
		if line.UnitPrice < 0 {
			return fmt.Errorf("%w: line %d: unit price must be >= 0", shared.ErrValidation, i+1)
		}
		if line.ProductID == 0 && line.DecorationCode == "" {
			return fmt.Errorf("%w: line %d: product or decoration code required", shared.ErrValidation, i+1)
		}
	}
	return nil
}
