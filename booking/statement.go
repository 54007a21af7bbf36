package booking

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
)

// Statement is a reservation's payment ledger as shown to staff.
type Statement struct {
	ReservationID   string                      `json:"reservation_id"`
	Charges         []ledger.Entry              `json:"charges"`
	Refunds         []ledger.PaymentTransaction `json:"refunds"`
	Pending         []ledger.PaymentTransaction `json:"pending"`
	Cards           []ledger.CardGroup          `json:"cards"`
	TotalCharged    decimal.Decimal             `json:"total_charged"`
	TotalRefunded   decimal.Decimal             `json:"total_refunded"`
	TotalRefundable decimal.Decimal             `json:"total_refundable"`
	PendingBalance  decimal.Decimal             `json:"pending_balance"`
}

// Statement builds the ledger statement of a reservation. Cards that cannot
// be looked up are left out of the card groups.
func (s *Service) Statement(ctx context.Context, reservationID string) (Statement, error) {
	txs, err := s.backend.ListPaymentTransactions(ctx, reservationID)
	if err != nil {
		return Statement{}, fmt.Errorf("load payment transactions: %w", err)
	}
	l := ledger.Build(txs)

	return Statement{
		ReservationID:   reservationID,
		Charges:         l.Charges,
		Refunds:         l.Refunds,
		Pending:         l.Pending,
		Cards:           s.cardGroups(ctx, l.Charges),
		TotalCharged:    l.TotalCharged(),
		TotalRefunded:   l.TotalRefunded(),
		TotalRefundable: l.TotalRefundable(),
		PendingBalance:  l.PendingBalance(),
	}, nil
}

// cardGroups resolves each distinct payment method once.
func (s *Service) cardGroups(ctx context.Context, charges []ledger.Entry) []ledger.CardGroup {
	cards := make(map[string]*ledger.CardDetails)
	withCards := make([]ledger.ChargeWithCard, 0, len(charges))

	for _, c := range charges {
		id := c.PaymentMethodID
		card, seen := cards[id]
		if !seen && id != "" {
			m, err := s.backend.GetPaymentMethod(ctx, id)
			switch {
			case err == nil:
				card = m.Card()
			case core.IsNotFound(err):
				s.logger.WithField("payment_method_id", id).Debug("payment method not found")
			default:
				s.logger.WithError(err).WithFields(logrus.Fields{
					"payment_method_id": id,
				}).Warn("payment method lookup failed")
			}
			cards[id] = card
		}
		withCards = append(withCards, ledger.ChargeWithCard{Entry: c, Card: card})
	}
	return ledger.GroupByCard(withCards)
}
