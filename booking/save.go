package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/reconcile"
	"github.com/warp/tour-pricing/refund"
	"github.com/warp/tour-pricing/traces"
)

// =============================================================================
// SAVE
// =============================================================================

// SaveRequest is an edit plus how a resulting refund is paid out.
type SaveRequest struct {
	Edit

	// Method defaults to card.
	Method refund.Method `json:"method,omitempty"`

	// CardFilter limits refund draws to one payment method.
	CardFilter string `json:"card_filter,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// SaveResult reports everything a save did.
type SaveResult struct {
	Quote    Quote  `json:"quote"`
	TenantID string `json:"tenant_id,omitempty"`

	// ArchivedIDs are pending charges superseded by this save.
	ArchivedIDs []string `json:"archived_ids,omitempty"`

	// BalanceDueID is the consolidated pending charge, if one was created.
	BalanceDueID string `json:"balance_due_id,omitempty"`

	// OutstandingID is the pending refund written for the part of a refund
	// no charge could cover.
	OutstandingID string `json:"outstanding_refund_id,omitempty"`

	Recorded bool           `json:"recorded"`
	Refund   *RefundOutcome `json:"refund,omitempty"`
}

// Save prices the edit and settles the difference.
//
// Steps, in order, each one a separate backend call:
//  1. resolve the owning tenant (only when something will be written)
//  2. allocate the refund, when the outcome is a refund
//  3. consolidate pending charges into one balance-due charge
//  4. write a pending refund for whatever the allocation left uncovered
//  5. record the edited reservation, when a Recorder is set
//
// When no refund draw succeeds the save stops after step 2 with nothing
// written, so saving the same edit again retries the refund. A partial
// refund carries on through step 5 and returns *refund.PartialRefundError
// with the populated SaveResult. Completed draws are never undone.
func (s *Service) Save(ctx context.Context, reservationID string, req SaveRequest) (SaveResult, error) {
	ctx, span := traces.StartSpan(ctx, "booking.Save", traces.ReservationID(reservationID))
	defer span.End()

	result, err := s.save(ctx, reservationID, req)
	span.SetAttributes(
		traces.Amount("balance_due", result.Quote.Outcome.FinalBalanceDue),
		traces.Amount("refund.amount", result.Quote.Outcome.FinalRefundAmount),
	)
	traces.Fail(span, err)
	return result, err
}

func (s *Service) save(ctx context.Context, reservationID string, req SaveRequest) (SaveResult, error) {
	if req.Method == "" {
		req.Method = refund.MethodCard
	}
	if req.Method != refund.MethodCard && req.Method != refund.MethodStoreCredit {
		return SaveResult{}, core.Invalid("method", "unknown refund method %q", req.Method)
	}

	pc, err := s.Context(ctx, reservationID)
	if err != nil {
		return SaveResult{}, err
	}
	session, err := req.Edit.Apply(pc)
	if err != nil {
		return SaveResult{}, err
	}
	in := session.Input()
	quote, err := Evaluate(pc, in)
	if err != nil {
		return SaveResult{}, err
	}

	result := SaveResult{Quote: quote}
	outcome := quote.Outcome
	archive, due, consolidate := consolidation(pc.Ledger, outcome)
	refunding := outcome.FinalRefundAmount.IsPositive()

	log := s.logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"grand_total":    quote.Breakdown.GrandTotal.StringFixed(2),
		"branch":         outcome.Branch,
	})

	if consolidate || refunding {
		tenantID, err := ResolveTenant(pc)
		if err != nil {
			log.WithError(err).Error("save aborted")
			return result, err
		}
		result.TenantID = tenantID
	}

	var partial *refund.PartialRefundError
	if refunding {
		out, err := s.runRefund(ctx, outcome.FinalRefundAmount, pc.Ledger.Charges, refund.Options{
			ReservationID: reservationID,
			TenantID:      result.TenantID,
			CardFilter:    req.CardFilter,
			BalanceDue:    s.BalanceDue,
			Method:        req.Method,
			Reason:        reasonOr(req.Reason, "reservation updated"),
		})
		result.Refund = &out
		if err != nil && !errors.As(err, &partial) {
			log.WithError(err).Warn("refund failed, nothing saved")
			return result, err
		}
		log = log.WithField("refunded", out.Result.Refunded.StringFixed(2))
	}

	if consolidate {
		ids, dueID, err := s.consolidatePending(ctx, pc, archive, due, result.TenantID)
		result.ArchivedIDs = ids
		result.BalanceDueID = dueID
		if err != nil {
			log.WithError(err).Error("pending balance consolidation failed")
			return result, err
		}
	}

	if partial != nil {
		id, err := s.recordOutstanding(ctx, pc, partial.Remaining, result.TenantID, req)
		if err != nil {
			log.WithError(err).Error("failed to record outstanding refund")
			return result, err
		}
		result.OutstandingID = id
	}

	if s.Recorder != nil {
		err := s.Recorder.RecordReservation(ctx, backend.ReservationUpdate{
			ReservationID: reservationID,
			GuestQuantity: in.GuestQuantity,
			TotalPrice:    quote.Breakdown.GrandTotal,
			Addons:        backend.AddonValues(in.Selections, in.Catalog),
			CustomItems:   in.CustomItems,
		})
		if err != nil {
			log.WithError(err).Error("failed to record reservation")
			return result, fmt.Errorf("record reservation: %w", err)
		}
		result.Recorded = true
	}

	if partial != nil {
		log.WithField("outstanding", partial.Remaining.StringFixed(2)).Warn("reservation saved with refund outstanding")
		return result, partial
	}
	log.WithField("balance_due", outcome.FinalBalanceDue.StringFixed(2)).Info("reservation saved")
	return result, nil
}

// consolidation decides what a save does to the pending transactions.
// Reconcile only folds in a positive pending balance, so only then are the
// pending charges replaced. Pending refunds stay; the replacement charge is
// grossed up by them so the net pending balance equals the balance due.
func consolidation(l ledger.Ledger, out reconcile.Outcome) ([]ledger.PaymentTransaction, decimal.Decimal, bool) {
	pending := l.PendingBalance()
	if !pending.IsPositive() {
		return nil, out.FinalBalanceDue, out.FinalBalanceDue.IsPositive()
	}
	if out.FinalBalanceDue.Equal(pending) {
		return nil, decimal.Zero, false
	}
	return l.PendingCharges(), out.FinalBalanceDue.Add(l.PendingRefundTotal()), true
}

// consolidatePending archives the given pending charges and, when due is
// positive, replaces them with a single pending balance-due charge.
func (s *Service) consolidatePending(ctx context.Context, pc *PricingContext, archive []ledger.PaymentTransaction, due decimal.Decimal, tenantID string) ([]string, string, error) {
	archived := ledger.StatusArchived
	var ids []string
	for _, tx := range archive {
		if _, err := s.backend.UpdatePaymentTransaction(ctx, tx.ID, ledger.Patch{
			Status:   &archived,
			Metadata: map[string]string{"superseded_by": "balance_consolidation"},
		}); err != nil {
			return ids, "", fmt.Errorf("archive pending transaction %s: %w", tx.ID, err)
		}
		ids = append(ids, tx.ID)
	}

	if !due.IsPositive() {
		return ids, "", nil
	}

	created, err := s.backend.CreatePaymentTransaction(ctx, ledger.PaymentTransaction{
		ReservationID:   pc.Reservation.ID,
		TenantID:        tenantID,
		Amount:          due,
		Direction:       ledger.DirectionCharge,
		Status:          ledger.StatusPending,
		PaymentMethodID: pc.Reservation.PaymentMethodID,
		Metadata:        map[string]string{ledger.MetaBalanceDue: "true"},
		CreatedAt:       s.Now().UTC(),
	})
	if err != nil {
		return ids, "", fmt.Errorf("create balance due: %w", err)
	}
	return ids, created.ID, nil
}

// recordOutstanding writes a pending refund for an amount still owed to the
// customer after allocation ran out of charges.
func (s *Service) recordOutstanding(ctx context.Context, pc *PricingContext, amount decimal.Decimal, tenantID string, req SaveRequest) (string, error) {
	created, err := s.backend.CreatePaymentTransaction(ctx, ledger.PaymentTransaction{
		ReservationID:   pc.Reservation.ID,
		TenantID:        tenantID,
		Amount:          amount,
		Direction:       ledger.DirectionRefund,
		Status:          ledger.StatusPending,
		PaymentMethodID: req.CardFilter,
		Metadata: map[string]string{
			ledger.MetaOutstanding:  "true",
			ledger.MetaRefundMethod: string(req.Method),
			ledger.MetaReason:       reasonOr(req.Reason, "reservation updated"),
		},
		CreatedAt: s.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("create outstanding refund: %w", err)
	}
	return created.ID, nil
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
