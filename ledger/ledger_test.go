package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var t0 = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

func charge(id string, amount int64, pm string) ledger.PaymentTransaction {
	return ledger.PaymentTransaction{
		ID:              id,
		ReservationID:   "res-1",
		Amount:          d(amount),
		Direction:       ledger.DirectionCharge,
		Status:          ledger.StatusCompleted,
		PaymentMethodID: pm,
		CreatedAt:       t0,
	}
}

func refundOf(id, parent string, amount int64) ledger.PaymentTransaction {
	return ledger.PaymentTransaction{
		ID:                  id,
		ReservationID:       "res-1",
		Amount:              d(amount),
		Direction:           ledger.DirectionRefund,
		Status:              ledger.StatusCompleted,
		ParentTransactionID: parent,
		CreatedAt:           t0.Add(time.Hour),
	}
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "expected %d, got %s", want, got)
}

// =============================================================================
// BUILD
// =============================================================================

func TestBuild_RefundableIsAmountMinusCompletedRefunds(t *testing.T) {
	l := ledger.Build([]ledger.PaymentTransaction{
		charge("ch-1", 100, "pm-1"),
		refundOf("rf-1", "ch-1", 30),
		refundOf("rf-2", "ch-1", 20),
	})

	require.Len(t, l.Charges, 1)
	assertAmount(t, 50, l.Charges[0].Refunded)
	assertAmount(t, 50, l.Charges[0].Refundable)
	assertAmount(t, 50, l.TotalRefunded())
	assertAmount(t, 50, l.TotalRefundable())
}

func TestBuild_OverRefundedChargeClampsToZero(t *testing.T) {
	l := ledger.Build([]ledger.PaymentTransaction{
		charge("ch-1", 100, "pm-1"),
		refundOf("rf-1", "ch-1", 80),
		refundOf("rf-2", "ch-1", 40),
	})

	require.Len(t, l.Charges, 1)
	assertAmount(t, 0, l.Charges[0].Refundable)
	assert.True(t, l.Charges[0].FullyRefunded())
}

func TestBuild_PendingRefundsDoNotReduceRefundable(t *testing.T) {
	pending := refundOf("rf-1", "ch-1", 30)
	pending.Status = ledger.StatusPending

	l := ledger.Build([]ledger.PaymentTransaction{charge("ch-1", 100, "pm-1"), pending})

	assertAmount(t, 100, l.Charges[0].Refundable)
	assert.Len(t, l.Pending, 1)
	assert.Empty(t, l.Refunds)
}

func TestBuild_UnlinkedRefundCountsTowardTotalOnly(t *testing.T) {
	l := ledger.Build([]ledger.PaymentTransaction{
		charge("ch-1", 100, "pm-1"),
		refundOf("rf-1", "", 25),
	})

	assertAmount(t, 100, l.Charges[0].Refundable)
	assertAmount(t, 25, l.TotalRefunded())
}

func TestBuild_AvailableRefundAmountIsAuthoritative(t *testing.T) {
	ch := charge("ch-1", 100, "pm-1")
	available := d(40)
	ch.AvailableRefundAmount = &available

	l := ledger.Build([]ledger.PaymentTransaction{ch, refundOf("rf-1", "ch-1", 10)})

	assertAmount(t, 40, l.Charges[0].Refundable)
	assertAmount(t, 60, l.Charges[0].Refunded)
}

func TestBuild_AvailableRefundAmountIsClamped(t *testing.T) {
	over := charge("ch-1", 100, "pm-1")
	tooMuch := d(150)
	over.AvailableRefundAmount = &tooMuch

	under := charge("ch-2", 100, "pm-1")
	negative := d(-5)
	under.AvailableRefundAmount = &negative

	l := ledger.Build([]ledger.PaymentTransaction{over, under})

	assertAmount(t, 100, l.Charges[0].Refundable)
	assertAmount(t, 0, l.Charges[1].Refundable)
}

func TestBuild_ArchivedAndPendingChargesAreNotRefundable(t *testing.T) {
	archived := charge("ch-1", 100, "pm-1")
	archived.Status = ledger.StatusArchived
	pending := charge("ch-2", 50, "pm-1")
	pending.Status = ledger.StatusPending
	paid := charge("ch-3", 70, "pm-1")
	paid.Status = ledger.StatusPaid

	l := ledger.Build([]ledger.PaymentTransaction{archived, pending, paid})

	require.Len(t, l.Charges, 1)
	assert.Equal(t, "ch-3", l.Charges[0].ID)
	assertAmount(t, 70, l.TotalCharged())
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	txs := []ledger.PaymentTransaction{charge("ch-1", 100, "pm-1"), refundOf("rf-1", "ch-1", 30)}
	before := txs[0]

	ledger.Build(txs)

	assert.Equal(t, before, txs[0])
}

func TestPendingBalance(t *testing.T) {
	due := charge("p-1", 40, "")
	due.Status = ledger.StatusPending
	credit := refundOf("p-2", "", 15)
	credit.Status = ledger.StatusPending

	l := ledger.Build([]ledger.PaymentTransaction{charge("ch-1", 100, "pm-1"), due, credit})

	assertAmount(t, 25, l.PendingBalance())
	assertAmount(t, 15, l.PendingRefundTotal())
	require.Len(t, l.PendingCharges(), 1)
	assert.Equal(t, "p-1", l.PendingCharges()[0].ID)
	assert.Empty(t, l.Outstanding(), "untagged pending refunds are not shortfalls")
}

func TestOutstanding_OldestFirst(t *testing.T) {
	owed := func(id string, amount int64, at time.Duration) ledger.PaymentTransaction {
		tx := refundOf(id, "", amount)
		tx.Status = ledger.StatusPending
		tx.CreatedAt = t0.Add(at)
		tx.Metadata = map[string]string{ledger.MetaOutstanding: "true"}
		return tx
	}

	l := ledger.Build([]ledger.PaymentTransaction{owed("o-2", 30, 2*time.Hour), owed("o-1", 20, time.Hour)})

	out := l.Outstanding()
	require.Len(t, out, 2)
	assert.Equal(t, "o-1", out[0].ID)
	assert.Equal(t, "o-2", out[1].ID)
	assertAmount(t, -50, l.PendingBalance())
}

func TestCharge_Lookup(t *testing.T) {
	l := ledger.Build([]ledger.PaymentTransaction{charge("ch-1", 100, "pm-1")})

	e, ok := l.Charge("ch-1")
	require.True(t, ok)
	assertAmount(t, 100, e.Amount)

	_, ok = l.Charge("missing")
	assert.False(t, ok)
}

// =============================================================================
// PATCH
// =============================================================================

func TestPatch_MergesMetadataAndSetsStatus(t *testing.T) {
	tx := charge("ch-1", 100, "pm-1")
	tx.Metadata = map[string]string{ledger.MetaChargeID: "ch_abc"}

	archived := ledger.StatusArchived
	got := ledger.Patch{
		Status:   &archived,
		Metadata: map[string]string{ledger.MetaReason: "superseded"},
	}.Apply(tx)

	assert.Equal(t, ledger.StatusArchived, got.Status)
	assert.Equal(t, "ch_abc", got.Meta(ledger.MetaChargeID))
	assert.Equal(t, "superseded", got.Meta(ledger.MetaReason))
	assert.Len(t, tx.Metadata, 1, "original metadata must be untouched")
}

func TestMatchesStatus(t *testing.T) {
	assert.True(t, ledger.MatchesStatus(ledger.StatusPending, nil))
	assert.True(t, ledger.MatchesStatus(ledger.StatusPaid, []ledger.Status{ledger.StatusCompleted, ledger.StatusPaid}))
	assert.False(t, ledger.MatchesStatus(ledger.StatusArchived, []ledger.Status{ledger.StatusCompleted}))
}
