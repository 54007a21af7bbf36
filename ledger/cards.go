package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CARD GROUPS - Per-card aggregates
// =============================================================================

// CardDetails describes the card behind a payment method.
type CardDetails struct {
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	PaymentDate string `json:"payment_date,omitempty"`
}

// ChargeWithCard pairs a charge with its resolved card, nil when the card
// could not be resolved.
type ChargeWithCard struct {
	Entry
	Card *CardDetails
}

// CardGroup aggregates every charge made on one card.
type CardGroup struct {
	PaymentMethodID string          `json:"payment_method_id"`
	Brand           string          `json:"brand"`
	Last4           string          `json:"last4"`
	Gross           decimal.Decimal `json:"gross"`
	Refundable      decimal.Decimal `json:"refundable"`
	Refunded        decimal.Decimal `json:"refunded"`
	TransactionIDs  []string        `json:"transaction_ids"`
}

// GroupByCard groups charges that carry card details by payment method,
// ordered by first appearance. Charges without a payment method or without
// resolvable card details are left out.
//
// A group whose aggregate refundable is zero while nothing has been refunded
// reports its gross as refundable: the charges predate refund tracking.
func GroupByCard(charges []ChargeWithCard) []CardGroup {
	var groups []CardGroup
	index := make(map[string]int)

	for _, c := range charges {
		if c.Card == nil || c.PaymentMethodID == "" {
			continue
		}
		i, ok := index[c.PaymentMethodID]
		if !ok {
			groups = append(groups, CardGroup{
				PaymentMethodID: c.PaymentMethodID,
				Brand:           c.Card.Brand,
				Last4:           c.Card.Last4,
			})
			i = len(groups) - 1
			index[c.PaymentMethodID] = i
		}
		g := &groups[i]
		g.Gross = g.Gross.Add(c.Amount)
		g.Refundable = g.Refundable.Add(c.Refundable)
		g.Refunded = g.Refunded.Add(c.Refunded)
		g.TransactionIDs = append(g.TransactionIDs, c.ID)
	}

	for i := range groups {
		g := &groups[i]
		if g.Refundable.IsZero() && g.Refunded.IsZero() {
			g.Refundable = g.Gross
		}
	}
	return groups
}

// FindGroup returns the group for a payment method.
func FindGroup(groups []CardGroup, paymentMethodID string) (CardGroup, bool) {
	for _, g := range groups {
		if g.PaymentMethodID == paymentMethodID {
			return g, true
		}
	}
	return CardGroup{}, false
}
