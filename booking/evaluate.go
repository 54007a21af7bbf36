package booking

import (
	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/pricing"
	"github.com/warp/tour-pricing/reconcile"
)

// Quote is what an edited reservation costs and what that means for the
// customer's balance.
type Quote struct {
	ReservationID string            `json:"reservation_id"`
	Breakdown     pricing.Breakdown `json:"breakdown"`

	// OriginalTotal is the reservation's authoritative saved total.
	OriginalTotal decimal.Decimal `json:"original_total"`

	RawDifference   decimal.Decimal   `json:"raw_difference"`
	PendingBalance  decimal.Decimal   `json:"pending_balance"`
	TotalRefundable decimal.Decimal   `json:"total_refundable"`
	Outcome         reconcile.Outcome `json:"outcome"`
}

// Evaluate prices in against the context. It performs no I/O and does not
// modify pc.
func Evaluate(pc *PricingContext, in pricing.Input) (Quote, error) {
	breakdown, err := pricing.ComputeGrandTotal(in)
	if err != nil {
		return Quote{}, err
	}

	raw := reconcile.Difference(breakdown.GrandTotal, pc.Reservation.TotalPrice)
	pending := pc.Ledger.PendingBalance()

	return Quote{
		ReservationID:   pc.Reservation.ID,
		Breakdown:       breakdown,
		OriginalTotal:   pc.Reservation.TotalPrice,
		RawDifference:   raw,
		PendingBalance:  pending,
		TotalRefundable: pc.Ledger.TotalRefundable(),
		Outcome:         reconcile.Reconcile(pending, raw),
	}, nil
}
