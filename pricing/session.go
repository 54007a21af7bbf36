package pricing

import (
	"github.com/warp/tour-pricing/core"
)

// =============================================================================
// EDIT SESSION - Transient state while a reservation is being edited
// =============================================================================

// EditSession holds the edits made to one reservation before they are saved.
// It is not safe for concurrent use; one session belongs to one flow.
type EditSession struct {
	policy        *TierPricingPolicy
	catalog       []Addon
	guestQuantity int
	selections    Selections
	items         []CustomLineItem
	nextLocalID   int64
}

// NewEditSession starts a session from the persisted state.
func NewEditSession(policy *TierPricingPolicy, catalog []Addon, guestQuantity int, selections Selections, items []CustomLineItem) *EditSession {
	s := &EditSession{
		policy:        policy,
		catalog:       catalog,
		guestQuantity: guestQuantity,
		selections:    make(Selections, len(selections)),
		nextLocalID:   1,
	}
	for id, sel := range selections {
		s.selections[id] = sel
	}
	s.items = append(s.items, items...)
	for _, it := range items {
		if it.LocalID >= s.nextLocalID {
			s.nextLocalID = it.LocalID + 1
		}
	}
	return s
}

func (s *EditSession) SetGuestQuantity(n int) error {
	if n < 0 {
		return core.Invalid("guest_quantity", "must not be negative (got %d)", n)
	}
	s.guestQuantity = n
	return nil
}

// SetChecked toggles a CHECKBOX add-on.
func (s *EditSession) SetChecked(addonID string, checked bool) {
	sel := s.selections[addonID]
	sel.AddonID = addonID
	sel.Checked = checked
	s.selections[addonID] = sel
}

// SetQuantity sets a SELECT add-on quantity.
func (s *EditSession) SetQuantity(addonID string, quantity int) error {
	if quantity < 0 {
		return core.Invalid("addons", "quantity for %s must not be negative", addonID)
	}
	sel := s.selections[addonID]
	sel.AddonID = addonID
	sel.Quantity = quantity
	s.selections[addonID] = sel
	return nil
}

func (s *EditSession) Increment(addonID string) {
	sel := s.selections[addonID]
	_ = s.SetQuantity(addonID, sel.Quantity+1)
}

// Decrement lowers a SELECT quantity, stopping at zero.
func (s *EditSession) Decrement(addonID string) {
	sel := s.selections[addonID]
	if sel.Quantity == 0 {
		return
	}
	_ = s.SetQuantity(addonID, sel.Quantity-1)
}

// AddCustomItem appends a row and returns its session-local id.
func (s *EditSession) AddCustomItem(item CustomLineItem) int64 {
	item.ID = ""
	item.LocalID = s.nextLocalID
	s.nextLocalID++
	s.items = append(s.items, item)
	return item.LocalID
}

// UpdateCustomItem replaces the row matching item's ID or LocalID.
func (s *EditSession) UpdateCustomItem(item CustomLineItem) bool {
	for i, it := range s.items {
		if sameItem(it, item) {
			s.items[i] = item
			return true
		}
	}
	return false
}

// RemoveCustomItem drops the row with the given server id or local id.
func (s *EditSession) RemoveCustomItem(id string, localID int64) bool {
	target := CustomLineItem{ID: id, LocalID: localID}
	for i, it := range s.items {
		if sameItem(it, target) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func sameItem(a, b CustomLineItem) bool {
	if a.ID != "" || b.ID != "" {
		return a.ID == b.ID
	}
	return a.LocalID == b.LocalID
}

// Input snapshots the session for the calculator. The snapshot does not
// change when the session is edited afterwards.
func (s *EditSession) Input() Input {
	sel := make(Selections, len(s.selections))
	for id, v := range s.selections {
		sel[id] = v
	}
	items := make([]CustomLineItem, len(s.items))
	copy(items, s.items)
	catalog := make([]Addon, len(s.catalog))
	copy(catalog, s.catalog)

	return Input{
		Policy:        s.policy,
		GuestQuantity: s.guestQuantity,
		Catalog:       catalog,
		Selections:    sel,
		CustomItems:   items,
	}
}

// Total computes the grand total of the current session state.
func (s *EditSession) Total() (Breakdown, error) {
	return ComputeGrandTotal(s.Input())
}
