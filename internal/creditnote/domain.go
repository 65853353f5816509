package creditnote

import "time"

// rtdTolerance bounds floating comparison of return-type discriminants.
const rtdTolerance = 0.01

// LineOutcome classifies one credit-note line after matching.
type LineOutcome string

const (
	OutcomePerfectMatch     LineOutcome = "perfect_match"
	OutcomeQuantityMismatch LineOutcome = "quantity_mismatch"
	OutcomeNoMatchingReturn LineOutcome = "no_matching_return"
)

// CreditNoteLine is one parsed line of a supplier credit-note document.
// The parser is an external collaborator; the engine only consumes its
// structured output.
type CreditNoteLine struct {
	ItemCode   string    `json:"item_code"`
	Quantity   int64     `json:"quantity"`
	RTD        float64   `json:"rtd"`
	ReturnDate time.Time `json:"return_date"`
}

// ParsedCreditNote is the structured form of one uploaded document.
type ParsedCreditNote struct {
	CreditNoteNumber string
	CreditDate       time.Time
	Lines            []CreditNoteLine
}

// CreditNote is one persisted ledger row. A document covering several
// return dates is stored as one row per date, all sharing the number;
// each row keeps its own document lines in credit_note_items.
type CreditNote struct {
	ID               int64            `json:"id"`
	CreditNoteNumber string           `json:"credit_note_number"`
	CreditDate       time.Time        `json:"credit_date"`
	ReturnDate       time.Time        `json:"return_date"`
	Quantity         int64            `json:"quantity"`
	Status           string           `json:"status"`
	Items            []CreditNoteLine `json:"items,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

const (
	NoteStatusPending = "pending"
	NoteStatusCleared = "cleared"
)

// PendingReturn is a pending write-off row as seen by the matcher:
// joined to its product code and carrying the expiry computed from the
// product's current shelf life.
type PendingReturn struct {
	ReturnID        int64
	ItemCode        string
	Quantity        int64
	RTD             float64
	ReturnDate      time.Time
	EffectiveExpiry time.Time
}

// LineResult reports how one credit-note line fared.
type LineResult struct {
	ItemCode   string      `json:"item_code"`
	Quantity   int64       `json:"quantity"`
	RTD        float64     `json:"rtd"`
	ReturnDate time.Time   `json:"return_date"`
	Outcome    LineOutcome `json:"outcome"`
	ReturnID   int64       `json:"return_id,omitempty"`
	PendingQty int64       `json:"pending_quantity,omitempty"`
}

// MatchResult is the outcome of one reconciliation pass. Received and
// Alerted carry return ids due for a status transition; a pending return
// never appears in both.
type MatchResult struct {
	Lines    []LineResult
	Received []int64
	Alerted  []int64
}
