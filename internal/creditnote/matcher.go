package creditnote

import (
	"math"
	"time"

	"github.com/bakeledger/bakeledger/internal/returns"
)

// Match reconciles parsed credit-note lines against the pending-returns
// pool. The caller scopes the pool to the document's return dates; Match
// itself is a pure function: one deterministic greedy pass over the
// lines, consuming at most one pending return each.
//
// A line matches the first unconsumed return with the same item code, an
// RTD within tolerance, and the date rule for its type: GRM lines carry
// the lot's expiry date, GVN lines the write-off date. Exact quantity
// moves the return to received; a quantity mismatch, and every pooled
// return still unconsumed when the pass ends, moves to alert. Returns
// already received or alerted were never in the pool, so re-running the
// same document is a no-op.
func Match(pool []PendingReturn, lines []CreditNoteLine) MatchResult {
	consumed := make([]bool, len(pool))
	result := MatchResult{Lines: make([]LineResult, 0, len(lines))}

	for _, line := range lines {
		idx := findCandidate(pool, consumed, line)
		lr := LineResult{
			ItemCode:   line.ItemCode,
			Quantity:   line.Quantity,
			RTD:        line.RTD,
			ReturnDate: line.ReturnDate,
		}
		if idx < 0 {
			lr.Outcome = OutcomeNoMatchingReturn
			result.Lines = append(result.Lines, lr)
			continue
		}
		consumed[idx] = true
		ret := pool[idx]
		lr.ReturnID = ret.ReturnID
		lr.PendingQty = ret.Quantity
		if ret.Quantity == line.Quantity {
			lr.Outcome = OutcomePerfectMatch
			result.Received = append(result.Received, ret.ReturnID)
		} else {
			lr.Outcome = OutcomeQuantityMismatch
			result.Alerted = append(result.Alerted, ret.ReturnID)
		}
		result.Lines = append(result.Lines, lr)
	}

	for i, ret := range pool {
		if !consumed[i] {
			result.Alerted = append(result.Alerted, ret.ReturnID)
		}
	}
	return result
}

func findCandidate(pool []PendingReturn, consumed []bool, line CreditNoteLine) int {
	for i, ret := range pool {
		if consumed[i] {
			continue
		}
		if ret.ItemCode != line.ItemCode {
			continue
		}
		if math.Abs(ret.RTD-line.RTD) >= rtdTolerance {
			continue
		}
		matchDate := ret.ReturnDate
		if isGRM(ret.RTD) {
			matchDate = ret.EffectiveExpiry
		}
		if !sameDay(matchDate, line.ReturnDate) {
			continue
		}
		return i
	}
	return -1
}

func isGRM(rtd float64) bool {
	return math.Abs(rtd-returns.RTDGrm) < rtdTolerance
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
