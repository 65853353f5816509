package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

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

// Service settles invoices and credit notes from parsed ROS receipts.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, metrics: metrics}
}

// BillOutcome reports how one bill on the receipt fared.
type BillOutcome struct {
	DocType    DocType    `json:"doc_type"`
	BillNumber string     `json:"bill_number"`
	Amount     float64    `json:"amount"`
	Result     BillResult `json:"result"`
	DocID      int64      `json:"doc_id,omitempty"`
}

// ClearResult reports one clearing run.
type ClearResult struct {
	ReceiptID     int64         `json:"receipt_id"`
	ReceiptNumber string        `json:"receipt_number"`
	Bills         []BillOutcome `json:"bills"`
	ClearedCount  int           `json:"cleared_count"`
	SkippedCount  int           `json:"skipped_count"`
}

// ClearFromReceipt runs one transaction over the receipt: upsert the
// header, persist its bill lines, then settle each bill. SR bills clear an invoice only when the
// amount matches within tolerance; CN bills clear every split row of the
// numbered credit note with no amount check, since settlement amounts may
// carry deductions. A bill referencing a document not in the ledger is
// logged and skipped, never fatal. Cleared items upsert on their natural
// key, so re-processing a receipt changes nothing.
func (s *Service) ClearFromReceipt(ctx context.Context, staffID int64, receipt ParsedRosReceipt) (ClearResult, error) {
	if err := validateReceipt(receipt); err != nil {
		return ClearResult{}, err
	}

	var result ClearResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		receiptID, err := tx.UpsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		if err := tx.ReplaceBills(ctx, receiptID, receipt.Bills); err != nil {
			return err
		}
		result = ClearResult{ReceiptID: receiptID, ReceiptNumber: receipt.ReceiptNumber}

		for _, bill := range receipt.Bills {
			var outcome BillOutcome
			switch bill.DocType {
			case DocTypeSR:
				outcome, err = s.clearInvoiceBill(ctx, tx, receiptID, bill)
			case DocTypeCN:
				outcome, err = s.clearCreditNoteBill(ctx, tx, receiptID, bill)
			default:
				outcome = BillOutcome{DocType: bill.DocType, BillNumber: bill.BillNumber, Amount: bill.Amount, Result: BillSkippedNoMatch}
				s.logger.Warn("unknown doc type on receipt", "receipt", receipt.ReceiptNumber, "doc_type", bill.DocType)
			}
			if err != nil {
				return err
			}
			result.Bills = append(result.Bills, outcome)
			switch outcome.Result {
			case BillCleared:
				result.ClearedCount++
			case BillSkippedNoMatch, BillSkippedBadAmount:
				result.SkippedCount++
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveRollback()
		return ClearResult{}, err
	}

	for _, bill := range result.Bills {
		s.metrics.ObserveSettlementBill(string(bill.Result))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			StaffID:  staffID,
			Action:   "settlement:clear",
			Entity:   "ros_receipt",
			EntityID: receipt.ReceiptNumber,
			Meta: map[string]any{
				"bills":   len(result.Bills),
				"cleared": result.ClearedCount,
				"skipped": result.SkippedCount,
			},
		})
	}
	return result, nil
}

func (s *Service) clearInvoiceBill(ctx context.Context, tx TxRepository, receiptID int64, bill Bill) (BillOutcome, error) {
	outcome := BillOutcome{DocType: bill.DocType, BillNumber: bill.BillNumber, Amount: bill.Amount}

	id, total, _, err := tx.FindInvoice(ctx, bill.BillNumber)
	if errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("settlement bill has no matching invoice", "bill_number", bill.BillNumber)
		outcome.Result = BillSkippedNoMatch
		return outcome, nil
	}
	if err != nil {
		return outcome, err
	}
	if math.Abs(total-bill.Amount) >= amountTolerance {
		s.logger.Warn("settlement bill amount differs from invoice total",
			"bill_number", bill.BillNumber, "invoice_total", total, "bill_amount", bill.Amount)
		outcome.Result = BillSkippedBadAmount
		return outcome, nil
	}

	if err := tx.ClearInvoice(ctx, id); err != nil {
		return outcome, err
	}
	inserted, err := tx.InsertClearedItem(ctx, ClearedItem{
		ReceiptID:  receiptID,
		DocType:    "invoice",
		DocID:      id,
		BillNumber: bill.BillNumber,
		Amount:     bill.Amount,
	})
	if err != nil {
		return outcome, err
	}
	outcome.DocID = id
	outcome.Result = BillCleared
	if !inserted {
		outcome.Result = BillAlreadyCleared
	}
	return outcome, nil
}

func (s *Service) clearCreditNoteBill(ctx context.Context, tx TxRepository, receiptID int64, bill Bill) (BillOutcome, error) {
	outcome := BillOutcome{DocType: bill.DocType, BillNumber: bill.BillNumber, Amount: bill.Amount}

	ids, err := tx.ClearCreditNotes(ctx, bill.BillNumber)
	if err != nil {
		return outcome, err
	}
	if len(ids) == 0 {
		s.logger.Warn("settlement bill has no matching credit note", "bill_number", bill.BillNumber)
		outcome.Result = BillSkippedNoMatch
		return outcome, nil
	}

	inserted, err := tx.InsertClearedItem(ctx, ClearedItem{
		ReceiptID:  receiptID,
		DocType:    "credit_note",
		DocID:      ids[0],
		BillNumber: bill.BillNumber,
		Amount:     bill.Amount,
	})
	if err != nil {
		return outcome, err
	}
	outcome.DocID = ids[0]
	outcome.Result = BillCleared
	if !inserted {
		outcome.Result = BillAlreadyCleared
	}
	return outcome, nil
}

func validateReceipt(receipt ParsedRosReceipt) error {
	if receipt.ReceiptNumber == "" {
		return fmt.Errorf("%w: receipt number required", shared.ErrValidation)
	}
	if receipt.ReceiptDate.IsZero() {
		return fmt.Errorf("%w: receipt date required", shared.ErrValidation)
	}
	if len(receipt.Bills) == 0 {
		return fmt.Errorf("%w: at least one bill required", shared.ErrValidation)
	}
	for i, bill := range receipt.Bills {
		if bill.BillNumber == "" {
			return fmt.Errorf("%w: bill %d: bill number required", shared.ErrValidation, i+1)
		}
	}
	return nil
}
