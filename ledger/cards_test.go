package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/ledger"
)

func withCard(tx ledger.PaymentTransaction, refunded int64, brand, last4 string) ledger.ChargeWithCard {
	return ledger.ChargeWithCard{
		Entry: ledger.Entry{
			PaymentTransaction: tx,
			Refunded:           d(refunded),
			Refundable:         tx.Amount.Sub(d(refunded)),
		},
		Card: &ledger.CardDetails{Brand: brand, Last4: last4},
	}
}

func TestGroupByCard_AggregatesInFirstAppearanceOrder(t *testing.T) {
	groups := ledger.GroupByCard([]ledger.ChargeWithCard{
		withCard(charge("ch-1", 100, "pm-visa"), 20, "visa", "4242"),
		withCard(charge("ch-2", 200, "pm-mc"), 0, "mastercard", "5555"),
		withCard(charge("ch-3", 50, "pm-visa"), 0, "visa", "4242"),
	})

	require.Len(t, groups, 2)

	visa := groups[0]
	assert.Equal(t, "pm-visa", visa.PaymentMethodID)
	assert.Equal(t, "4242", visa.Last4)
	assertAmount(t, 150, visa.Gross)
	assertAmount(t, 130, visa.Refundable)
	assertAmount(t, 20, visa.Refunded)
	assert.Equal(t, []string{"ch-1", "ch-3"}, visa.TransactionIDs)

	assert.Equal(t, "pm-mc", groups[1].PaymentMethodID)
	assertAmount(t, 200, groups[1].Refundable)
}

func TestGroupByCard_SkipsUnresolvedCards(t *testing.T) {
	noCard := ledger.ChargeWithCard{Entry: ledger.Entry{PaymentTransaction: charge("ch-1", 100, "pm-1")}}
	noMethod := withCard(charge("ch-2", 100, ""), 0, "visa", "4242")

	assert.Empty(t, ledger.GroupByCard([]ledger.ChargeWithCard{noCard, noMethod}))
}

func TestGroupByCard_LegacyChargesFallBackToGross(t *testing.T) {
	legacy := ledger.ChargeWithCard{
		Entry: ledger.Entry{PaymentTransaction: charge("ch-1", 80, "pm-1")},
		Card:  &ledger.CardDetails{Brand: "visa", Last4: "1111"},
	}

	groups := ledger.GroupByCard([]ledger.ChargeWithCard{legacy})

	require.Len(t, groups, 1)
	assertAmount(t, 80, groups[0].Refundable)
}

func TestGroupByCard_FullyRefundedStaysZero(t *testing.T) {
	groups := ledger.GroupByCard([]ledger.ChargeWithCard{
		withCard(charge("ch-1", 100, "pm-1"), 100, "visa", "4242"),
	})

	require.Len(t, groups, 1)
	assertAmount(t, 0, groups[0].Refundable)
}

func TestFindGroup(t *testing.T) {
	groups := ledger.GroupByCard([]ledger.ChargeWithCard{
		withCard(charge("ch-1", 100, "pm-1"), 0, "visa", "4242"),
	})

	g, ok := ledger.FindGroup(groups, "pm-1")
	require.True(t, ok)
	assert.Equal(t, "visa", g.Brand)

	_, ok = ledger.FindGroup(groups, "pm-2")
	assert.False(t, ok)
}
