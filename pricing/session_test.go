package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/pricing"
)

func newSession() *pricing.EditSession {
	return pricing.NewEditSession(pricing.FlatPolicy(d(50)), catalog(), 4, nil, nil)
}

func addonTotal(t *testing.T, s *pricing.EditSession) int64 {
	t.Helper()
	b, err := s.Total()
	require.NoError(t, err)
	return b.AddonTotal.IntPart()
}

func TestEditSession_CheckboxRoundTripsToZero(t *testing.T) {
	s := newSession()

	s.SetChecked("photos", true)
	assert.Equal(t, int64(25), addonTotal(t, s))

	s.SetChecked("photos", false)
	assert.Equal(t, int64(0), addonTotal(t, s))
}

func TestEditSession_SelectRoundTripsToZero(t *testing.T) {
	s := newSession()

	s.Increment("lunch")
	s.Increment("lunch")
	assert.Equal(t, int64(20), addonTotal(t, s))

	s.Decrement("lunch")
	s.Decrement("lunch")
	assert.Equal(t, int64(0), addonTotal(t, s))

	// Decrement stops at zero.
	s.Decrement("lunch")
	assert.Equal(t, int64(0), addonTotal(t, s))
	assert.Equal(t, 0, s.Input().Selections["lunch"].Quantity)
}

func TestEditSession_CustomItems_LocalIDs(t *testing.T) {
	existing := []pricing.CustomLineItem{
		{ID: "srv-9", Name: "Transfer", Kind: pricing.LineItemCharge, Amount: d(15), Quantity: 1},
	}
	s := pricing.NewEditSession(pricing.FlatPolicy(d(50)), nil, 1, nil, existing)

	first := s.AddCustomItem(pricing.CustomLineItem{Name: "Promo", Kind: pricing.LineItemDiscount, Amount: d(5), Quantity: 1})
	second := s.AddCustomItem(pricing.CustomLineItem{Name: "Snack", Kind: pricing.LineItemCharge, Amount: d(3), Quantity: 2})
	assert.NotEqual(t, first, second)

	b, err := s.Total()
	require.NoError(t, err)
	assert.Equal(t, int64(16), b.CustomItemsTotal.IntPart())

	assert.True(t, s.RemoveCustomItem("", first))
	assert.True(t, s.RemoveCustomItem("srv-9", 0))
	assert.False(t, s.RemoveCustomItem("", 99))

	b, err = s.Total()
	require.NoError(t, err)
	assert.Equal(t, int64(6), b.CustomItemsTotal.IntPart())
}

func TestEditSession_UpdateCustomItem(t *testing.T) {
	s := newSession()
	id := s.AddCustomItem(pricing.CustomLineItem{Name: "Snack", Kind: pricing.LineItemCharge, Amount: d(3), Quantity: 1})

	ok := s.UpdateCustomItem(pricing.CustomLineItem{LocalID: id, Name: "Snack", Kind: pricing.LineItemCharge, Amount: d(3), Quantity: 4})
	require.True(t, ok)

	b, err := s.Total()
	require.NoError(t, err)
	assert.Equal(t, int64(12), b.CustomItemsTotal.IntPart())
}

func TestEditSession_InputIsASnapshot(t *testing.T) {
	s := newSession()
	s.SetChecked("photos", true)
	snap := s.Input()

	s.SetChecked("photos", false)
	assert.True(t, snap.Selections["photos"].Checked)
}

func TestEditSession_NegativeValuesRejected(t *testing.T) {
	s := newSession()
	assert.ErrorIs(t, s.SetGuestQuantity(-1), core.ErrValidation)
	assert.ErrorIs(t, s.SetQuantity("lunch", -3), core.ErrValidation)
}
