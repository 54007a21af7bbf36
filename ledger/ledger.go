package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/core"
)

// =============================================================================
// LEDGER - Derived view over a reservation's transactions
// =============================================================================

// Ledger partitions a reservation's transactions and carries the derived
// refund figures. It is a value: Build never mutates its input.
type Ledger struct {
	// Settled charges (completed or paid), in input order.
	Charges []Entry

	// Completed refunds.
	Refunds []PaymentTransaction

	// Pending charges and refunds not yet settled.
	Pending []PaymentTransaction
}

// Build derives the ledger from raw transactions.
//
// For each settled charge the refunded amount is the sum of completed refunds
// pointing at it. When the backend supplied AvailableRefundAmount on the
// charge, that value is authoritative for refundable and refunded is derived
// from it. Refundable is always clamped to [0, amount].
func Build(txs []PaymentTransaction) Ledger {
	var l Ledger

	refundedBy := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		switch {
		case tx.Status == StatusPending:
			l.Pending = append(l.Pending, tx)
		case tx.IsRefund() && tx.Status == StatusCompleted:
			l.Refunds = append(l.Refunds, tx)
			if tx.ParentTransactionID != "" {
				refundedBy[tx.ParentTransactionID] = refundedBy[tx.ParentTransactionID].Add(tx.Amount)
			}
		}
	}

	for _, tx := range txs {
		if !tx.IsCharge() || !tx.Status.Settled() {
			continue
		}

		var refunded, refundable decimal.Decimal
		if tx.AvailableRefundAmount != nil {
			refundable = core.Min(core.NonNegative(*tx.AvailableRefundAmount), tx.Amount)
			refunded = core.NonNegative(tx.Amount.Sub(refundable))
		} else {
			refunded = refundedBy[tx.ID]
			refundable = core.NonNegative(tx.Amount.Sub(refunded))
		}

		l.Charges = append(l.Charges, Entry{
			PaymentTransaction: tx,
			Refunded:           refunded,
			Refundable:         refundable,
		})
	}

	return l
}

// Charge returns the settled charge with the given id.
func (l Ledger) Charge(id string) (Entry, bool) {
	for _, e := range l.Charges {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// TotalCharged is the gross of all settled charges.
func (l Ledger) TotalCharged() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.Charges {
		total = total.Add(e.Amount)
	}
	return total
}

// TotalRefunded is the sum of completed refunds, linked to a charge or not.
func (l Ledger) TotalRefunded() decimal.Decimal {
	total := decimal.Zero
	for _, r := range l.Refunds {
		total = total.Add(r.Amount)
	}
	return total
}

// TotalRefundable is what could still be refunded across all charges.
func (l Ledger) TotalRefundable() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.Charges {
		total = total.Add(e.Refundable)
	}
	return total
}

// PendingBalance is pending charges minus pending refunds. Positive means the
// customer still owes money.
func (l Ledger) PendingBalance() decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range l.Pending {
		switch tx.Direction {
		case DirectionCharge:
			balance = balance.Add(tx.Amount)
		case DirectionRefund:
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance
}

// PendingCharges are the pending transactions that bill the customer.
func (l Ledger) PendingCharges() []PaymentTransaction {
	var out []PaymentTransaction
	for _, tx := range l.Pending {
		if tx.IsCharge() {
			out = append(out, tx)
		}
	}
	return out
}

// PendingRefundTotal is what is still owed back to the customer.
func (l Ledger) PendingRefundTotal() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range l.Pending {
		if tx.IsRefund() {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// Outstanding returns pending refunds written for a shortfall, oldest first.
func (l Ledger) Outstanding() []PaymentTransaction {
	var out []PaymentTransaction
	for _, tx := range l.Pending {
		if tx.IsRefund() && tx.Meta(MetaOutstanding) == "true" {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
