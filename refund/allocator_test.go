package refund_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/ledger/memory"
	"github.com/warp/tour-pricing/refund"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeRefunder struct {
	requests []backend.RefundRequest
	failFor  map[string]error // by OriginalTransactionID
	decline  map[string]bool
}

func (f *fakeRefunder) RequestRefund(_ context.Context, req backend.RefundRequest) (backend.RefundResponse, error) {
	f.requests = append(f.requests, req)
	if err := f.failFor[req.OriginalTransactionID]; err != nil {
		return backend.RefundResponse{}, err
	}
	if f.decline[req.OriginalTransactionID] {
		return backend.RefundResponse{Success: false, Message: "insufficient funds"}, nil
	}
	return backend.RefundResponse{Success: true, ID: "re_" + req.OriginalTransactionID}, nil
}

type fakeIntents struct {
	calls   map[string]int
	charges map[string]string
	err     error
}

func (f *fakeIntents) GetPaymentIntent(_ context.Context, id string) (*backend.PaymentIntent, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[id]++
	if f.err != nil {
		return nil, f.err
	}
	intent := &backend.PaymentIntent{ID: id}
	if ch, ok := f.charges[id]; ok {
		intent.Charges = []backend.PaymentCharge{{ID: ch}}
	}
	return intent, nil
}

type failingWriter struct{}

func (failingWriter) CreatePaymentTransaction(context.Context, ledger.PaymentTransaction) (ledger.PaymentTransaction, error) {
	return ledger.PaymentTransaction{}, errors.New("disk full")
}

type harness struct {
	refunder *fakeRefunder
	intents  *fakeIntents
	store    *memory.Memory
	hook     *logtest.Hook
	alloc    *refund.Allocator
}

func newHarness() *harness {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		refunder: &fakeRefunder{},
		intents:  &fakeIntents{},
		store:    memory.NewMemory(),
		hook:     hook,
	}
	h.alloc = refund.NewAllocator(h.refunder, h.intents, h.store, logger)
	return h
}

func (h *harness) recorded(t *testing.T, statuses ...ledger.Status) []ledger.PaymentTransaction {
	t.Helper()
	txs, err := h.store.ListPaymentTransactions(context.Background(), "res-1", statuses...)
	require.NoError(t, err)
	return txs
}

func opts() refund.Options {
	return refund.Options{ReservationID: "res-1", TenantID: "tenant-1", BalanceDue: refund.BalanceDueNone}
}

// =============================================================================
// ALLOCATE
// =============================================================================

func TestAllocate_DrawsNewestFirstAcrossCharges(t *testing.T) {
	h := newHarness()
	charges := []ledger.Entry{entry("t1", 200, 200, t1), entry("t2", 100, 100, t2)}

	res, err := h.alloc.Allocate(context.Background(), d(150), charges, opts())

	require.NoError(t, err)
	assertAmount(t, 0, res.Remaining)
	assertAmount(t, 150, res.Refunded)
	assert.Equal(t, 2, res.Succeeded)

	require.Len(t, h.refunder.requests, 2)
	assert.Equal(t, "t2", h.refunder.requests[0].OriginalTransactionID)
	assertAmount(t, 100, h.refunder.requests[0].Amount)
	assert.Equal(t, "ch_t2", h.refunder.requests[0].ChargeID)
	assert.Equal(t, "t1", h.refunder.requests[1].OriginalTransactionID)
	assertAmount(t, 50, h.refunder.requests[1].Amount)

	records := h.recorded(t)
	require.Len(t, records, 2, "exactly one refund record per draw")
	byParent := map[string]ledger.PaymentTransaction{}
	for _, r := range records {
		assert.Equal(t, ledger.DirectionRefund, r.Direction)
		assert.Equal(t, ledger.StatusCompleted, r.Status)
		assert.Equal(t, "tenant-1", r.TenantID)
		byParent[r.ParentTransactionID] = r
	}
	assertAmount(t, 100, byParent["t2"].Amount)
	assert.Equal(t, "true", byParent["t2"].Meta(ledger.MetaFullRefund))
	assertAmount(t, 50, byParent["t1"].Amount)
	assert.Equal(t, "true", byParent["t1"].Meta(ledger.MetaPartialRefund))
	assert.Equal(t, "re_t1", byParent["t1"].Meta(ledger.MetaRefundID))
}

func TestAllocate_PartialWhenChargesRunOut(t *testing.T) {
	h := newHarness()
	charges := []ledger.Entry{entry("a", 100, 100, t1), entry("b", 200, 200, t2)}

	res, err := h.alloc.Allocate(context.Background(), d(500), charges, opts())

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPartialFailure)

	var partial *refund.PartialRefundError
	require.ErrorAs(t, err, &partial)
	assertAmount(t, 300, partial.Refunded)
	assertAmount(t, 200, partial.Remaining)
	assertAmount(t, 300, res.Refunded)
	assertAmount(t, 200, res.Remaining)
}

func TestAllocate_FailedDrawIsCoveredByNextCharge(t *testing.T) {
	h := newHarness()
	h.refunder.failFor = map[string]error{"new": &core.ExternalServiceError{Op: "requestRefund", Err: errors.New("timeout")}}
	charges := []ledger.Entry{entry("old", 200, 200, t1), entry("new", 100, 100, t2)}

	res, err := h.alloc.Allocate(context.Background(), d(150), charges, opts())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, refund.StepFailed, res.Steps[0].Outcome)
	assert.Equal(t, refund.StepSucceeded, res.Steps[1].Outcome)
	assertAmount(t, 150, res.Steps[1].Amount)

	records := h.recorded(t)
	require.Len(t, records, 1)
	assert.Equal(t, "old", records[0].ParentTransactionID)
}

func TestAllocate_DeclinedResponseCountsAsFailure(t *testing.T) {
	h := newHarness()
	h.refunder.decline = map[string]bool{"a": true}

	res, err := h.alloc.Allocate(context.Background(), d(50), []ledger.Entry{entry("a", 100, 100, t1)}, opts())

	assert.ErrorIs(t, err, refund.ErrNoRefundableTransactions)
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Steps[0].Error, "insufficient funds")
	assert.Empty(t, h.recorded(t))
}

func TestAllocate_UnresolvableChargeIsSkipped(t *testing.T) {
	h := newHarness()
	orphan := entry("orphan", 100, 100, t2)
	orphan.ChargeID = ""

	res, err := h.alloc.Allocate(context.Background(), d(50), []ledger.Entry{orphan, entry("ok", 100, 100, t1)}, opts())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, h.refunder.requests, 1)
	assert.Equal(t, "ok", h.refunder.requests[0].OriginalTransactionID)
}

func TestAllocate_ChargeIDFromMetadata(t *testing.T) {
	h := newHarness()
	c := entry("a", 100, 100, t1)
	c.ChargeID = ""
	c.Metadata = map[string]string{ledger.MetaChargeID: "ch_meta"}

	_, err := h.alloc.Allocate(context.Background(), d(10), []ledger.Entry{c}, opts())

	require.NoError(t, err)
	assert.Equal(t, "ch_meta", h.refunder.requests[0].ChargeID)
}

func TestAllocate_IntentLookupIsCachedPerRun(t *testing.T) {
	h := newHarness()
	h.intents.charges = map[string]string{"pi_1": "ch_from_intent"}

	a := entry("a", 100, 100, t2)
	a.ChargeID = ""
	a.PaymentIntentID = "pi_1"
	b := entry("b", 100, 100, t1)
	b.ChargeID = ""
	b.PaymentIntentID = "pi_1"

	_, err := h.alloc.Allocate(context.Background(), d(150), []ledger.Entry{a, b}, opts())

	require.NoError(t, err)
	assert.Equal(t, 1, h.intents.calls["pi_1"])
	require.Len(t, h.refunder.requests, 2)
	assert.Equal(t, "ch_from_intent", h.refunder.requests[0].ChargeID)
	assert.Equal(t, "ch_from_intent", h.refunder.requests[1].ChargeID)
}

func TestAllocate_FailedIntentLookupRefundsByIntent(t *testing.T) {
	h := newHarness()
	h.intents.err = errors.New("processor down")

	c := entry("a", 100, 100, t1)
	c.ChargeID = ""
	c.Metadata = map[string]string{ledger.MetaPaymentIntentID: "pi_9"}

	_, err := h.alloc.Allocate(context.Background(), d(40), []ledger.Entry{c}, opts())

	require.NoError(t, err)
	assert.Empty(t, h.refunder.requests[0].ChargeID)
	assert.Equal(t, "pi_9", h.refunder.requests[0].PaymentIntentID)
}

func TestAllocate_CardFilter(t *testing.T) {
	h := newHarness()
	mc := entry("mc", 100, 100, t2)
	mc.PaymentMethodID = "pm-mc"

	o := opts()
	o.CardFilter = "pm-visa"
	_, err := h.alloc.Allocate(context.Background(), d(50), []ledger.Entry{mc, entry("visa", 100, 100, t1)}, o)

	require.NoError(t, err)
	require.Len(t, h.refunder.requests, 1)
	assert.Equal(t, "visa", h.refunder.requests[0].OriginalTransactionID)
}

func TestAllocate_NothingEligible(t *testing.T) {
	h := newHarness()

	_, err := h.alloc.Allocate(context.Background(), d(50), []ledger.Entry{entry("a", 100, 0, t1)}, opts())

	assert.ErrorIs(t, err, refund.ErrNoRefundableTransactions)
	assert.Empty(t, h.refunder.requests)
}

func TestAllocate_RejectsNonPositiveAmountBeforeAnyCall(t *testing.T) {
	h := newHarness()

	for _, amount := range []decimal.Decimal{d(0), d(-10)} {
		_, err := h.alloc.Allocate(context.Background(), amount, []ledger.Entry{entry("a", 100, 100, t1)}, opts())
		assert.ErrorIs(t, err, core.ErrValidation)
	}
	assert.Empty(t, h.refunder.requests)
}

func TestAllocate_BalanceDuePerDraw(t *testing.T) {
	h := newHarness()
	o := opts()
	o.BalanceDue = refund.BalanceDuePerDraw

	res, err := h.alloc.Allocate(context.Background(), d(150), []ledger.Entry{entry("t1", 200, 200, t1), entry("t2", 100, 100, t2)}, o)
	require.NoError(t, err)

	pending := h.recorded(t, ledger.StatusPending)
	require.Len(t, pending, 2)
	total := decimal.Zero
	for _, p := range pending {
		assert.Equal(t, ledger.DirectionCharge, p.Direction)
		assert.Equal(t, "true", p.Meta(ledger.MetaBalanceDue))
		assert.NotEmpty(t, p.Meta(ledger.MetaSourceRefund))
		total = total.Add(p.Amount)
	}
	assertAmount(t, 150, total)
	assert.NotEmpty(t, res.Steps[0].BalanceDueID)
}

func TestAllocate_RecordFailureStillCountsMoneyMoved(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	refunder := &fakeRefunder{}
	alloc := refund.NewAllocator(refunder, nil, failingWriter{}, logger)

	res, err := alloc.Allocate(context.Background(), d(60), []ledger.Entry{entry("a", 100, 100, t1)}, opts())

	require.NoError(t, err)
	assertAmount(t, 0, res.Remaining)
	assert.True(t, res.Steps[0].RecordFailed)

	var sawError bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestAllocate_LogsOneSummary(t *testing.T) {
	h := newHarness()
	h.refunder.failFor = map[string]error{"new": errors.New("boom")}

	_, _ = h.alloc.Allocate(context.Background(), d(150), []ledger.Entry{entry("old", 200, 200, t1), entry("new", 100, 100, t2)}, opts())

	var summaries, warnings int
	for _, e := range h.hook.AllEntries() {
		switch e.Level {
		case logrus.InfoLevel:
			summaries++
			assert.Equal(t, 1, e.Data["failed"])
			assert.Equal(t, 1, e.Data["succeeded"])
		case logrus.WarnLevel, logrus.ErrorLevel:
			warnings++
		}
	}
	assert.Equal(t, 1, summaries)
	assert.Zero(t, warnings, "per-step failures stay at debug")
}
