package booking

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/refund"
	"github.com/warp/tour-pricing/traces"
)

// =============================================================================
// MANUAL REFUND
// =============================================================================

// RefundRequest is a staff-initiated refund outside of an edit.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method refund.Method   `json:"method,omitempty"`

	// PaymentMethodID selects the card. Required for card refunds; for
	// store credit it optionally limits which charges are drawn from.
	PaymentMethodID string `json:"payment_method_id,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// RefundResult is either a preview plan or an executed refund.
type RefundResult struct {
	DryRun  bool           `json:"dry_run"`
	Plan    refund.Plan    `json:"plan"`
	Outcome *RefundOutcome `json:"outcome,omitempty"`

	// SettledIDs are outstanding refunds this refund paid off.
	SettledIDs []string `json:"settled_ids,omitempty"`
}

// Refund validates req against the ledger and, unless dryRun, executes it.
// Every validation runs before any refund request reaches the processor.
func (s *Service) Refund(ctx context.Context, reservationID string, req RefundRequest, dryRun bool) (RefundResult, error) {
	ctx, span := traces.StartSpan(ctx, "booking.Refund",
		traces.ReservationID(reservationID), traces.Amount("refund.amount", req.Amount))
	defer span.End()

	res, err := s.manualRefund(ctx, reservationID, req, dryRun)
	traces.Fail(span, err)
	return res, err
}

func (s *Service) manualRefund(ctx context.Context, reservationID string, req RefundRequest, dryRun bool) (RefundResult, error) {
	if req.Method == "" {
		req.Method = refund.MethodCard
	}
	if !req.Amount.IsPositive() {
		return RefundResult{}, core.Invalid("amount", "refund amount must be greater than zero")
	}
	switch req.Method {
	case refund.MethodCard:
		if req.PaymentMethodID == "" {
			return RefundResult{}, core.Invalid("payment_method_id", "select a card to refund to")
		}
	case refund.MethodStoreCredit:
	default:
		return RefundResult{}, core.Invalid("method", "unknown refund method %q", req.Method)
	}

	pc, err := s.Context(ctx, reservationID)
	if err != nil {
		return RefundResult{}, err
	}

	limit, err := refundLimit(pc.Ledger, req)
	if err != nil {
		return RefundResult{}, err
	}
	if req.Amount.GreaterThan(limit) {
		return RefundResult{}, core.Invalid("amount",
			"refund of %s exceeds the refundable %s", req.Amount.StringFixed(2), limit.StringFixed(2))
	}

	plan := refund.NewPlan(req.Amount, pc.Ledger.Charges, req.PaymentMethodID)
	if dryRun {
		return RefundResult{DryRun: true, Plan: plan}, nil
	}

	tenantID, err := ResolveTenant(pc)
	if err != nil {
		return RefundResult{Plan: plan}, err
	}

	out, err := s.runRefund(ctx, req.Amount, pc.Ledger.Charges, refund.Options{
		ReservationID: reservationID,
		TenantID:      tenantID,
		CardFilter:    req.PaymentMethodID,
		BalanceDue:    s.BalanceDue,
		Method:        req.Method,
		Reason:        reasonOr(req.Reason, "manual refund"),
	})
	res := RefundResult{Plan: plan, Outcome: &out}
	if out.Result.Refunded.IsPositive() {
		res.SettledIDs = s.settleOutstanding(ctx, pc.Ledger, out.Result.Refunded)
	}
	return res, err
}

// refundLimit is the most that can be refunded for req: the selected card's
// refundable total, or the whole ledger's when no card is selected. The
// card's charges are taken from the ledger alone; card details are only
// needed for display.
func refundLimit(l ledger.Ledger, req RefundRequest) (decimal.Decimal, error) {
	if req.PaymentMethodID == "" {
		return l.TotalRefundable(), nil
	}
	var onCard []ledger.ChargeWithCard
	for _, c := range l.Charges {
		if c.PaymentMethodID == req.PaymentMethodID {
			onCard = append(onCard, ledger.ChargeWithCard{Entry: c, Card: &ledger.CardDetails{}})
		}
	}
	group, ok := ledger.FindGroup(ledger.GroupByCard(onCard), req.PaymentMethodID)
	if !ok {
		return decimal.Zero, core.Invalid("payment_method_id",
			"%s has no refundable charges on this reservation", req.PaymentMethodID)
	}
	return group.Refundable, nil
}

// settleOutstanding archives outstanding refunds, oldest first, that the
// refunded amount fully covers. Failures are logged; the refund stands.
func (s *Service) settleOutstanding(ctx context.Context, l ledger.Ledger, refunded decimal.Decimal) []string {
	archived := ledger.StatusArchived
	var ids []string
	for _, tx := range l.Outstanding() {
		if tx.Amount.GreaterThan(refunded) {
			break
		}
		if _, err := s.backend.UpdatePaymentTransaction(ctx, tx.ID, ledger.Patch{
			Status:   &archived,
			Metadata: map[string]string{"superseded_by": "manual_refund"},
		}); err != nil {
			s.logger.WithError(err).WithField("transaction_id", tx.ID).Warn("failed to settle outstanding refund")
			break
		}
		refunded = refunded.Sub(tx.Amount)
		ids = append(ids, tx.ID)
	}
	return ids
}

// PreviewRefund is Refund with dryRun set.
func (s *Service) PreviewRefund(ctx context.Context, reservationID string, req RefundRequest) (refund.Plan, error) {
	res, err := s.Refund(ctx, reservationID, req, true)
	if err != nil {
		return refund.Plan{}, fmt.Errorf("preview refund: %w", err)
	}
	return res.Plan, nil
}
