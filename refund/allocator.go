package refund

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/traces"
)

// =============================================================================
// POLICIES AND OPTIONS
// =============================================================================

// BalanceDuePolicy controls whether each successful draw is paired with a
// pending "balance due" charge of the same amount.
type BalanceDuePolicy string

const (
	BalanceDueNone    BalanceDuePolicy = "none"
	BalanceDuePerDraw BalanceDuePolicy = "per_draw"
)

// ParseBalanceDuePolicy parses a configured policy name. Empty means per_draw.
func ParseBalanceDuePolicy(s string) (BalanceDuePolicy, error) {
	switch BalanceDuePolicy(s) {
	case "", BalanceDuePerDraw:
		return BalanceDuePerDraw, nil
	case BalanceDueNone:
		return BalanceDueNone, nil
	}
	return "", core.Invalid("balance_due_policy", "unknown policy %q", s)
}

// Method is how money goes back to the customer.
type Method string

const (
	MethodCard        Method = "card"
	MethodStoreCredit Method = "store_credit"
)

type Options struct {
	ReservationID string
	TenantID      string

	// CardFilter limits draws to charges paid with this payment method.
	CardFilter string

	BalanceDue BalanceDuePolicy
	Method     Method
	Reason     string
}

// =============================================================================
// RESULT
// =============================================================================

type StepOutcome string

const (
	StepSucceeded StepOutcome = "succeeded"
	StepFailed    StepOutcome = "failed"
	StepSkipped   StepOutcome = "skipped"
)

// Step is what happened to one candidate charge.
type Step struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Outcome       StepOutcome     `json:"outcome"`
	Full          bool            `json:"full,omitempty"`
	RefundID      string          `json:"refund_id,omitempty"`

	// RecordID is the refund transaction written to the ledger.
	RecordID string `json:"record_id,omitempty"`

	// RecordFailed is set when money moved but the ledger write failed.
	RecordFailed bool `json:"record_failed,omitempty"`

	BalanceDueID string `json:"balance_due_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

type Result struct {
	Requested decimal.Decimal `json:"requested"`
	Refunded  decimal.Decimal `json:"refunded"`
	Remaining decimal.Decimal `json:"remaining"`
	Steps     []Step          `json:"steps"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
}

// =============================================================================
// ALLOCATOR
// =============================================================================

// Refunder moves money back for one draw.
type Refunder interface {
	RequestRefund(ctx context.Context, req backend.RefundRequest) (backend.RefundResponse, error)
}

// TransactionWriter records refund and balance-due transactions.
type TransactionWriter interface {
	CreatePaymentTransaction(ctx context.Context, tx ledger.PaymentTransaction) (ledger.PaymentTransaction, error)
}

type Allocator struct {
	refunder Refunder
	intents  IntentLookup
	writer   TransactionWriter
	logger   *logrus.Entry

	// Now stamps created transactions.
	Now func() time.Time
}

func NewAllocator(refunder Refunder, intents IntentLookup, writer TransactionWriter, logger *logrus.Logger) *Allocator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Allocator{
		refunder: refunder,
		intents:  intents,
		writer:   writer,
		logger:   logger.WithField("component", "refund.allocator"),
		Now:      time.Now,
	}
}

// WithRefunder returns a copy of the allocator that moves money through r.
func (a *Allocator) WithRefunder(r Refunder) *Allocator {
	cp := *a
	cp.refunder = r
	return &cp
}

// Allocate refunds target from charges, newest charge first.
//
// Each candidate is attempted once. A failed draw is logged and the loop
// moves on; a charge without any usable processor id is skipped. Completed
// draws are never rolled back.
//
// Errors: a ValidationError when target <= 0 (before any call),
// ErrNoRefundableTransactions when nothing succeeded, *PartialRefundError
// when the charges ran out before target was covered. The Result is
// populated in every case except validation.
func (a *Allocator) Allocate(ctx context.Context, target decimal.Decimal, charges []ledger.Entry, opts Options) (Result, error) {
	if !target.IsPositive() {
		return Result{}, core.Invalid("amount", "refund amount must be greater than zero")
	}
	if opts.Method == "" {
		opts.Method = MethodCard
	}

	ctx, span := traces.StartSpan(ctx, "refund.Allocate",
		traces.ReservationID(opts.ReservationID), traces.Amount("refund.requested", target))
	defer span.End()

	plan := NewPlan(target, charges, opts.CardFilter)

	log := a.logger.WithFields(logrus.Fields{
		"reservation_id": opts.ReservationID,
		"requested":      target.StringFixed(2),
		"method":         opts.Method,
	})

	result := Result{Requested: target, Refunded: decimal.Zero, Remaining: target}
	if len(plan.Candidates) == 0 {
		log.Info("no refundable charges")
		traces.Fail(span, ErrNoRefundableTransactions)
		return result, ErrNoRefundableTransactions
	}

	resolver := newChargeResolver(a.intents, log)
	remaining := target

	for _, c := range plan.Candidates {
		if !remaining.IsPositive() {
			break
		}
		draw := core.Min(remaining, c.Refundable)
		if !draw.IsPositive() {
			continue
		}

		step := a.execute(ctx, resolver, c, draw, opts, log)
		result.Steps = append(result.Steps, step)

		switch step.Outcome {
		case StepSucceeded:
			result.Succeeded++
			remaining = remaining.Sub(draw)
		case StepFailed:
			result.Failed++
		case StepSkipped:
			result.Skipped++
		}
	}

	result.Remaining = remaining
	result.Refunded = target.Sub(remaining)

	log.WithFields(logrus.Fields{
		"refunded":  result.Refunded.StringFixed(2),
		"remaining": result.Remaining.StringFixed(2),
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
	}).Info("refund allocation finished")

	span.SetAttributes(traces.Amount("refund.refunded", result.Refunded))
	if result.Succeeded == 0 {
		traces.Fail(span, ErrNoRefundableTransactions)
		return result, ErrNoRefundableTransactions
	}
	if remaining.IsPositive() {
		err := &PartialRefundError{
			Requested: target,
			Refunded:  result.Refunded,
			Remaining: remaining,
			Succeeded: result.Succeeded,
			Failed:    result.Failed,
			Skipped:   result.Skipped,
		}
		traces.Fail(span, err)
		return result, err
	}
	return result, nil
}

// execute runs one draw: resolve, refund, record, optional balance due.
func (a *Allocator) execute(ctx context.Context, resolver *chargeResolver, c ledger.Entry, draw decimal.Decimal, opts Options, log *logrus.Entry) Step {
	step := Step{
		TransactionID: c.ID,
		Amount:        draw,
		Full:          draw.Equal(c.Refundable),
	}
	log = log.WithFields(logrus.Fields{"transaction_id": c.ID, "draw": draw.StringFixed(2)})

	target, ok := resolver.resolve(ctx, c)
	if !ok {
		step.Outcome = StepSkipped
		step.Error = "no charge id or payment intent id"
		log.Debug("charge skipped: nothing to refund against")
		return step
	}

	resp, err := a.refunder.RequestRefund(ctx, backend.RefundRequest{
		PaymentMethodID:       c.PaymentMethodID,
		Amount:                draw,
		OriginalTransactionID: c.ID,
		ChargeID:              target.ChargeID,
		PaymentIntentID:       target.PaymentIntentID,
	})
	if err == nil && !resp.Success {
		err = &core.ExternalServiceError{Op: "requestRefund", Err: errors.New(declineMessage(resp))}
	}
	if err != nil {
		step.Outcome = StepFailed
		step.Error = err.Error()
		log.WithError(err).Debug("refund draw failed")
		return step
	}

	step.Outcome = StepSucceeded
	step.RefundID = resp.ID

	tenantID := opts.TenantID
	if tenantID == "" {
		tenantID = c.TenantID
	}
	now := a.Now().UTC()

	record, err := a.writer.CreatePaymentTransaction(ctx, ledger.PaymentTransaction{
		ReservationID:       opts.ReservationID,
		TenantID:            tenantID,
		Amount:              draw,
		Direction:           ledger.DirectionRefund,
		Status:              ledger.StatusCompleted,
		PaymentMethodID:     c.PaymentMethodID,
		ParentTransactionID: c.ID,
		ChargeID:            target.ChargeID,
		PaymentIntentID:     target.PaymentIntentID,
		Metadata: map[string]string{
			ledger.MetaRefundID:      resp.ID,
			ledger.MetaFullRefund:    strconv.FormatBool(step.Full),
			ledger.MetaPartialRefund: strconv.FormatBool(!step.Full),
			ledger.MetaRefundMethod:  string(opts.Method),
			ledger.MetaReason:        opts.Reason,
		},
		CreatedAt: now,
	})
	if err != nil {
		// The refund went through; only the bookkeeping is missing.
		step.RecordFailed = true
		step.Error = fmt.Sprintf("refund %s succeeded but was not recorded: %v", resp.ID, err)
		log.WithError(err).WithField("refund_id", resp.ID).Error("failed to record completed refund")
		return step
	}
	step.RecordID = record.ID

	if opts.BalanceDue == BalanceDuePerDraw {
		due, err := a.writer.CreatePaymentTransaction(ctx, ledger.PaymentTransaction{
			ReservationID: opts.ReservationID,
			TenantID:      tenantID,
			Amount:        draw,
			Direction:     ledger.DirectionCharge,
			Status:        ledger.StatusPending,
			Metadata: map[string]string{
				ledger.MetaBalanceDue:   "true",
				ledger.MetaSourceRefund: record.ID,
			},
			CreatedAt: now,
		})
		if err != nil {
			log.WithError(err).Warn("failed to create balance due for refund draw")
		} else {
			step.BalanceDueID = due.ID
		}
	}

	return step
}

func declineMessage(resp backend.RefundResponse) string {
	if resp.Message != "" {
		return "refund declined: " + resp.Message
	}
	return "refund declined"
}
