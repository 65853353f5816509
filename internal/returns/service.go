package returns

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bakeledger/bakeledger/internal/ledger"
	"github.com/bakeledger/bakeledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Candidates(ctx context.Context, f ledger.AvailabilityFilter) ([]ledger.BatchAvailability, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator bumps availability read caches after a committed write.
type CacheInvalidator interface {
	InvalidateAvailability(ctx context.Context)
}

// Service records GRM returns and GVN damage write-offs.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator CacheInvalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, invalidator CacheInvalidator) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator}
}

// ListGRMCandidates lists lots whose current effective expiry equals date
// and that still have derived availability. A shelf-life correction moves
// lots in or out of this list.
func (s *Service) ListGRMCandidates(ctx context.Context, date time.Time) ([]ledger.BatchAvailability, error) {
	return s.repo.Candidates(ctx, ledger.AvailabilityFilter{Date: date, ExpiryOn: true})
}

// ListGVNCandidates lists lots received exactly on date, regardless of
// remaining availability.
func (s *Service) ListGVNCandidates(ctx context.Context, date time.Time) ([]ledger.BatchAvailability, error) {
	return s.repo.Candidates(ctx, ledger.AvailabilityFilter{Date: date, InvoiceOn: true, IncludeEmpty: true, IncludeExpired: true})
}

// ProcessGRMReturn records expiry returns with a 15% loss per line.
func (s *Service) ProcessGRMReturn(ctx context.Context, input ProcessInput) (Summary, error) {
	return s.process(ctx, TypeGRM, input)
}

// ProcessGVNDamage records inbound-damage write-offs at zero loss.
func (s *Service) ProcessGVNDamage(ctx context.Context, input ProcessInput) (Summary, error) {
	return s.process(ctx, TypeGVN, input)
}

// process runs one all-or-nothing transaction over the requested lines.
// Every line re-checks availability under a row lock, so a sale committed
// in the same window cannot leave a batch oversubscribed.
func (s *Service) process(ctx context.Context, t Type, input ProcessInput) (Summary, error) {
	if err := validateInput(input); err != nil {
		return Summary{}, err
	}

	var summary Summary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		totalLoss := decimal.Zero
		for _, line := range input.Items {
			availability, err := tx.CheckAvailability(ctx, line.BatchID)
			if err != nil {
				return err
			}
			if availability.ProductID != line.ProductID {
				return fmt.Errorf("%w: batch %d does not belong to product %d", shared.ErrValidation, line.BatchID, line.ProductID)
			}
			if availability.AvailableQty < line.Quantity {
				return &ledger.InsufficientStockError{
					BatchID:   line.BatchID,
					ProductID: line.ProductID,
					Requested: line.Quantity,
					Available: availability.AvailableQty,
				}
			}
			loss := LossAmount(t, line.Quantity, line.InvoicePrice)
			ret := Return{
				ReturnDate:   input.Date,
				Type:         t,
				ProductID:    line.ProductID,
				BatchID:      line.BatchID,
				Quantity:     line.Quantity,
				InvoicePrice: line.InvoicePrice,
				LossAmount:   loss,
				RTD:          RTDFor(t),
				CreditStatus: StatusPending,
			}
			if _, err := tx.InsertReturn(ctx, ret); err != nil {
				return err
			}
			summary.TotalItems++
			summary.TotalQuantity += line.Quantity
			totalLoss = totalLoss.Add(decimal.NewFromFloat(loss))
		}
		summary.TotalLoss = totalLoss.Round(2).InexactFloat64()
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateAvailability(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			StaffID:  input.StaffID,
			Action:   fmt.Sprintf("returns:%s", t),
			Entity:   "return_batch",
			EntityID: input.Date.Format("2006-01-02"),
			Meta: map[string]any{
				"total_items":    summary.TotalItems,
				"total_quantity": summary.TotalQuantity,
				"total_loss":     summary.TotalLoss,
			},
		})
	}
	return summary, nil
}

func validateInput(input ProcessInput) error {
	if input.Date.IsZero() {
		return fmt.Errorf("%w: date required", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	for i, line := range input.Items {
		if line.BatchID <= 0 {
			return fmt.Errorf("%w: line %d: batch id required", shared.ErrValidation, i+1)
		}
		if line.ProductID <= 0 {
			return fmt.Errorf("%w: line %d: product id required", shared.ErrValidation, i+1)
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
