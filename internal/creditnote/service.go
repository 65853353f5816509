package creditnote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bakeledger/bakeledger/internal/observability"
	"github.com/bakeledger/bakeledger/internal/returns"
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

// Service reconciles parsed credit-note documents against pending returns.
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

// ReconcileResult reports one reconciliation run.
type ReconcileResult struct {
	CreditNoteNumber string       `json:"credit_note_number"`
	Lines            []LineResult `json:"lines"`
	ReceivedCount    int          `json:"received_count"`
	AlertedCount     int          `json:"alerted_count"`
	SkippedNotes     []string     `json:"skipped_notes,omitempty"`
}

// Reconcile runs one transaction over the whole document: lock the pending
// returns scoped to the document's return dates, match, apply the status
// transitions, and persist one credit-note row per distinct return date.
// The status transitions are uniform no matter how the run was triggered:
// an exact quantity match moves a return to received, everything else
// considered in the run moves to alert. Pending returns whose dates the
// document does not cover are never considered, so their credit notes can
// still arrive later. Duplicate (number, return date) rows from a
// re-submitted split document are skipped with a warning, never fatal.
func (s *Service) Reconcile(ctx context.Context, staffID int64, doc ParsedCreditNote) (ReconcileResult, error) {
	if err := validateDoc(doc); err != nil {
		return ReconcileResult{}, err
	}

	var result ReconcileResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pool, err := tx.PendingPool(ctx, returnDates(doc))
		if err != nil {
			return err
		}
		match := Match(pool, doc.Lines)
		if err := tx.UpdateStatuses(ctx, match.Received, returns.StatusReceived); err != nil {
			return err
		}
		if err := tx.UpdateStatuses(ctx, match.Alerted, returns.StatusAlert); err != nil {
			return err
		}

		var skipped []string
		for _, cn := range splitByReturnDate(doc) {
			if err := tx.InsertCreditNote(ctx, cn); err != nil {
				if errors.Is(err, shared.ErrConflict) {
					s.logger.Warn("duplicate credit note row skipped",
						"credit_note_number", cn.CreditNoteNumber,
						"return_date", cn.ReturnDate.Format("2006-01-02"))
					skipped = append(skipped, cn.ReturnDate.Format("2006-01-02"))
					continue
				}
				return err
			}
		}

		result = ReconcileResult{
			CreditNoteNumber: doc.CreditNoteNumber,
			Lines:            match.Lines,
			ReceivedCount:    len(match.Received),
			AlertedCount:     len(match.Alerted),
			SkippedNotes:     skipped,
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveRollback()
		return ReconcileResult{}, err
	}

	for _, line := range result.Lines {
		s.metrics.ObserveReconcileOutcome(string(line.Outcome))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			StaffID:  staffID,
			Action:   "creditnote:reconcile",
			Entity:   "credit_note",
			EntityID: doc.CreditNoteNumber,
			Meta: map[string]any{
				"lines":    len(result.Lines),
				"received": result.ReceivedCount,
				"alerted":  result.AlertedCount,
			},
		})
	}
	return result, nil
}

// splitByReturnDate groups document lines into one persisted row per
// distinct return date, preserving first-seen order. Each row carries its
// own lines so the document detail survives the split.
func splitByReturnDate(doc ParsedCreditNote) []CreditNote {
	var notes []CreditNote
	index := map[string]int{}
	for _, line := range doc.Lines {
		key := line.ReturnDate.UTC().Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(notes)
			index[key] = i
			notes = append(notes, CreditNote{
				CreditNoteNumber: doc.CreditNoteNumber,
				CreditDate:       doc.CreditDate,
				ReturnDate:       line.ReturnDate,
			})
		}
		notes[i].Quantity += line.Quantity
		notes[i].Items = append(notes[i].Items, line)
	}
	return notes
}

// returnDates collects the document's distinct return dates in first-seen
// order; they bound which pending returns a run may touch.
func returnDates(doc ParsedCreditNote) []time.Time {
	var dates []time.Time
	seen := map[string]struct{}{}
	for _, line := range doc.Lines {
		key := line.ReturnDate.UTC().Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, line.ReturnDate)
	}
	return dates
}

func validateDoc(doc ParsedCreditNote) error {
	if doc.CreditNoteNumber == "" {
		return fmt.Errorf("%w: credit note number required", shared.ErrValidation)
	}
	if doc.CreditDate.IsZero() {
		return fmt.Errorf("%w: credit date required", shared.ErrValidation)
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
		if line.ReturnDate.IsZero() {
			return fmt.Errorf("%w: line %d: return date required", shared.ErrValidation, i+1)
		}
	}
	return nil
}
