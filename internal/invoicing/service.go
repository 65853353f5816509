package invoicing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bakeledger/bakeledger/internal/catalog"
	"github.com/bakeledger/bakeledger/internal/observability"
	"github.com/bakeledger/bakeledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// CatalogPort resolves and registers products during intake.
type CatalogPort interface {
	EnsureProduct(ctx context.Context, itemCode, name string, invoicePrice float64) (catalog.Product, bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator bumps availability read caches after a committed write.
type CacheInvalidator interface {
	InvalidateAvailability(ctx context.Context)
}

// Service is the stock intake. It is the only writer of stock_batches:
// every lot in the ledger traces back to exactly one invoice line.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	audit       AuditPort
	invalidator CacheInvalidator
	metrics     *observability.Metrics
}

// NewService builds Service.
func NewService(repo RepositoryPort, cat CatalogPort, audit AuditPort, invalidator CacheInvalidator, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, catalog: cat, audit: audit, invalidator: invalidator, metrics: metrics}
}

// ReceiveStock records one supplier invoice and appends one stock batch
// per line. Unknown item codes are registered in the catalog first, with
// category and shelf life inferred from the code prefix. All-or-nothing:
// a duplicate invoice number or any bad line rolls everything back.
func (s *Service) ReceiveStock(ctx context.Context, staffID int64, doc ParsedInvoice) (ReceiveResult, error) {
	if err := validateInvoice(doc); err != nil {
		return ReceiveResult{}, err
	}

	var result ReceiveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		total := decimal.Zero
		for _, line := range doc.Lines {
			total = total.Add(decimal.NewFromFloat(line.InvoicePrice).Mul(decimal.NewFromInt(line.Quantity)))
		}
		inv := Invoice{
			InvoiceNumber: doc.InvoiceNumber,
			InvoiceDate:   doc.InvoiceDate,
			TotalAmount:   total.Round(2).InexactFloat64(),
		}
		invoiceID, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}

		result = ReceiveResult{InvoiceID: invoiceID, TotalAmount: inv.TotalAmount}
		for _, line := range doc.Lines {
			product, created, err := s.catalog.EnsureProduct(ctx, line.ItemCode, line.Name, line.InvoicePrice)
			if err != nil {
				return err
			}
			if created {
				result.NewProducts = append(result.NewProducts, product.ID)
			}
			batchID, err := tx.InsertBatch(ctx, product.ID, line.Quantity, inv)
			if err != nil {
				return err
			}
			result.BatchIDs = append(result.BatchIDs, batchID)
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveRollback()
		return ReceiveResult{}, err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateAvailability(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			StaffID:  staffID,
			Action:   "invoicing:receive",
			Entity:   "invoice",
			EntityID: doc.InvoiceNumber,
			Meta: map[string]any{
				"lines":        len(doc.Lines),
				"total_amount": result.TotalAmount,
			},
		})
	}
	return result, nil
}

func validateInvoice(doc ParsedInvoice) error {
	if doc.InvoiceNumber == "" {
		return fmt.Errorf("%w: invoice number required", shared.ErrValidation)
	}
	if doc.InvoiceDate.IsZero() {
		return fmt.Errorf("%w: invoice date required", shared.ErrValidation)
	}
	if len(doc.Lines) == 0 {
		return fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	for i, line := range doc.Lines {
		if line.ItemCode == "" {
			return fmt.Errorf("%w: line %d: item code required", shared.ErrValidation, i+1)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d: quantity must be > 0", shared.ErrValidation, i+1)
		}
		if line.InvoicePrice < 0 {
			return fmt.Errorf("%w: line %d: invoice price must be >= 0", shared.ErrValidation, i+1)
		}
	}
	return nil
}
