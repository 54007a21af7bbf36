package reconcile_test

import (
	"testing"
	"testing/quick"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/reconcile"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "expected %d, got %s", want, got)
}

// =============================================================================
// TABLE ROWS
// =============================================================================

func TestReconcile_Rows(t *testing.T) {
	cases := []struct {
		name       string
		pending    int64
		raw        int64
		wantDue    int64
		wantRefund int64
		branch     reconcile.Branch
	}{
		{"refund absorbed by pending", 50, -30, 20, 0, reconcile.BranchRefundAbsorbed},
		{"refund equal to pending", 50, -50, 0, 0, reconcile.BranchRefundAbsorbed},
		{"refund exceeds pending", 50, -80, 0, 30, reconcile.BranchRefundExceedsPending},
		{"increase on top of pending", 50, 25, 75, 0, reconcile.BranchPendingPlusIncrease},
		{"no change with pending", 50, 0, 50, 0, reconcile.BranchPendingPlusIncrease},
		{"plain refund", 0, -40, 0, 40, reconcile.BranchRefund},
		{"plain refund with pending credit", -10, -40, 0, 40, reconcile.BranchRefund},
		{"plain balance due", 0, 40, 40, 0, reconcile.BranchBalanceDue},
		{"nothing to do", 0, 0, 0, 0, reconcile.BranchBalanceDue},
		{"pending credit ignored on increase", -10, 40, 40, 0, reconcile.BranchBalanceDue},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := reconcile.Reconcile(d(c.pending), d(c.raw))
			assertAmount(t, c.wantDue, out.FinalBalanceDue)
			assertAmount(t, c.wantRefund, out.FinalRefundAmount)
			assert.Equal(t, c.branch, out.Branch)
		})
	}
}

func TestReconcile_PendingFiftyRefundEighty(t *testing.T) {
	out := reconcile.Reconcile(d(50), d(-80))

	assert.True(t, out.IsRefund)
	assertAmount(t, 80, out.RefundAmount)
	assertAmount(t, 30, out.FinalRefundAmount)
	assertAmount(t, 0, out.FinalBalanceDue)
}

func TestReconcile_NoPendingIncreaseForty(t *testing.T) {
	out := reconcile.Reconcile(d(0), d(40))

	assert.False(t, out.IsRefund)
	assertAmount(t, 40, out.FinalBalanceDue)
	assertAmount(t, 0, out.FinalRefundAmount)
}

func TestDifference(t *testing.T) {
	assertAmount(t, 30, reconcile.Difference(d(230), d(200)))
	assertAmount(t, -20, reconcile.Difference(d(180), d(200)))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func cents(v int32) decimal.Decimal { return core.Cents(int64(v)) }

func TestReconcile_Properties(t *testing.T) {
	seen := make(map[reconcile.Branch]bool)

	property := func(p, r int32) bool {
		pending, raw := cents(p), cents(r)
		out := reconcile.Reconcile(pending, raw)
		seen[out.Branch] = true

		// Never negative, never both.
		if out.FinalBalanceDue.IsNegative() || out.FinalRefundAmount.IsNegative() {
			return false
		}
		if out.FinalBalanceDue.IsPositive() && out.FinalRefundAmount.IsPositive() {
			return false
		}
		if out.IsRefund != raw.IsNegative() {
			return false
		}

		// With a positive pending balance the net position is conserved:
		// what is owed after reconciling equals pending + rawDifference.
		if pending.IsPositive() {
			net := out.FinalBalanceDue.Sub(out.FinalRefundAmount)
			return net.Equal(pending.Add(raw))
		}

		// Without one, the result is exactly the raw difference.
		return out.FinalBalanceDue.Sub(out.FinalRefundAmount).Equal(raw)
	}

	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 5000}))

	// Hand-picked inputs make sure every row is exercised even if the random
	// sample misses one.
	for _, in := range [][2]int32{{5000, -3000}, {5000, -8000}, {5000, 2500}, {0, -4000}, {0, 4000}} {
		require.True(t, property(in[0], in[1]))
	}
	for _, b := range []reconcile.Branch{
		reconcile.BranchRefundAbsorbed,
		reconcile.BranchRefundExceedsPending,
		reconcile.BranchPendingPlusIncrease,
		reconcile.BranchRefund,
		reconcile.BranchBalanceDue,
	} {
		assert.True(t, seen[b], "branch %s never reached", b)
	}
}

func TestReconcile_IsDeterministic(t *testing.T) {
	f := func(p, r int32) bool {
		a := reconcile.Reconcile(cents(p), cents(r))
		b := reconcile.Reconcile(cents(p), cents(r))
		return a.Branch == b.Branch &&
			a.FinalBalanceDue.Equal(b.FinalBalanceDue) &&
			a.FinalRefundAmount.Equal(b.FinalRefundAmount)
	}
	require.NoError(t, quick.Check(f, nil))
}
