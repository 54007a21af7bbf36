/*
Package refund allocates a refund across a reservation's prior charges.

PURPOSE:
  A reservation may have been paid in several charges, possibly on several
  cards. When money has to go back, the allocator decides which charges to
  draw from and how much, asks the processor to refund each draw and records
  the result in the ledger.

KEY CONCEPTS:
  - Plan (plan.go): pure. Eligible charges newest first, greedy draws.
  - Allocator (allocator.go): executes a plan one charge at a time.
  - chargeResolver (resolver.go): finds the processor charge id to refund.

CRITICAL INVARIANTS:
  1. A draw never exceeds the charge's refundable amount
  2. Sum of successful draws + Remaining == Requested
  3. Most recent charge is refunded first (LIFO)
  4. Draws run sequentially; there is no rollback of completed draws

SEE ALSO:
  - ledger/ledger.go: where refundable amounts come from
  - booking/save.go, booking/refund.go: callers
*/
package refund

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
)

// =============================================================================
// PLAN - Pure allocation over ledger entries
// =============================================================================

// Draw is one planned refund against one charge.
type Draw struct {
	TransactionID   string          `json:"transaction_id"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`

	// Full is set when the draw consumes everything still refundable on the
	// charge.
	Full bool `json:"full"`
}

// Plan is the ordered allocation of a target amount.
type Plan struct {
	Target decimal.Decimal `json:"target"`

	// Candidates are the eligible charges in draw order. The executor walks
	// these, not Draws, so a failed draw can be covered by later charges.
	Candidates []ledger.Entry `json:"-"`

	Draws     []Draw          `json:"draws"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// Covered is the amount the plan draws.
func (p Plan) Covered() decimal.Decimal {
	return p.Target.Sub(p.Shortfall)
}

// Eligible returns the charges that can be refunded, newest first.
// A charge is eligible when it is a settled charge with something left to
// refund and, when cardFilter is set, was paid with that payment method.
// Charges created at the same instant keep their input order.
func Eligible(charges []ledger.Entry, cardFilter string) []ledger.Entry {
	var out []ledger.Entry
	for _, c := range charges {
		if !c.IsCharge() || !c.Status.Settled() {
			continue
		}
		if !c.Refundable.IsPositive() {
			continue
		}
		if cardFilter != "" && c.PaymentMethodID != cardFilter {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// NewPlan allocates target greedily over the eligible charges.
func NewPlan(target decimal.Decimal, charges []ledger.Entry, cardFilter string) Plan {
	plan := Plan{
		Target:     target,
		Candidates: Eligible(charges, cardFilter),
	}

	remaining := core.NonNegative(target)
	for _, c := range plan.Candidates {
		if !remaining.IsPositive() {
			break
		}
		amount := core.Min(remaining, c.Refundable)
		plan.Draws = append(plan.Draws, Draw{
			TransactionID:   c.ID,
			PaymentMethodID: c.PaymentMethodID,
			Amount:          amount,
			Full:            amount.Equal(c.Refundable),
		})
		remaining = remaining.Sub(amount)
	}

	plan.Shortfall = remaining
	return plan
}
