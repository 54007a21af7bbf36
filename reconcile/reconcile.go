/*
Package reconcile merges a pricing delta with a reservation's pending balance.

After an edit the calculator produces a new grand total. The difference
against the stored authoritative total says which way money should move;
any balance still pending in the ledger is folded in so that the customer
ends up with exactly one figure: a balance due or a refund due, never both.

	rawDifference = grandTotal - originalTotal   (< 0 means refund)

Reconcile is total: every (pendingBalance, rawDifference) pair falls into
exactly one Branch.
*/
package reconcile

import (
	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/core"
)

// Branch names the row of the reconciliation table an outcome came from.
type Branch string

const (
	// Pending balance absorbs the whole refund.
	BranchRefundAbsorbed Branch = "refund_absorbed_by_pending"
	// Refund exceeds the pending balance; the rest is refunded.
	BranchRefundExceedsPending Branch = "refund_exceeds_pending"
	// Price went up (or stayed) on top of a pending balance.
	BranchPendingPlusIncrease Branch = "pending_plus_increase"
	// No pending balance; plain refund.
	BranchRefund Branch = "refund"
	// No pending balance and no refund.
	BranchBalanceDue Branch = "balance_due"
)

// Outcome is the reconciled result. At most one of FinalBalanceDue and
// FinalRefundAmount is positive.
type Outcome struct {
	IsRefund          bool            `json:"is_refund"`
	RefundAmount      decimal.Decimal `json:"refund_amount"`
	FinalBalanceDue   decimal.Decimal `json:"final_balance_due"`
	FinalRefundAmount decimal.Decimal `json:"final_refund_amount"`
	Branch            Branch          `json:"branch"`
}

// Difference is grandTotal - originalTotal.
func Difference(grandTotal, originalTotal decimal.Decimal) decimal.Decimal {
	return grandTotal.Sub(originalTotal)
}

// Reconcile folds rawDifference into pendingBalance.
func Reconcile(pendingBalance, rawDifference decimal.Decimal) Outcome {
	out := Outcome{
		IsRefund:          rawDifference.IsNegative(),
		FinalBalanceDue:   decimal.Zero,
		FinalRefundAmount: decimal.Zero,
	}
	if out.IsRefund {
		out.RefundAmount = rawDifference.Neg()
	} else {
		out.RefundAmount = decimal.Zero
	}

	switch {
	case pendingBalance.IsPositive() && out.IsRefund && out.RefundAmount.LessThanOrEqual(pendingBalance):
		out.FinalBalanceDue = pendingBalance.Sub(out.RefundAmount)
		out.Branch = BranchRefundAbsorbed

	case pendingBalance.IsPositive() && out.IsRefund:
		out.FinalRefundAmount = out.RefundAmount.Sub(pendingBalance)
		out.Branch = BranchRefundExceedsPending

	case pendingBalance.IsPositive():
		out.FinalBalanceDue = pendingBalance.Add(core.NonNegative(rawDifference))
		out.Branch = BranchPendingPlusIncrease

	case out.IsRefund:
		out.FinalRefundAmount = out.RefundAmount
		out.Branch = BranchRefund

	default:
		out.FinalBalanceDue = core.NonNegative(rawDifference)
		out.Branch = BranchBalanceDue
	}

	return out
}
