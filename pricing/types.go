/*
Package pricing computes what a reservation should cost right now.

PURPOSE:
  Pure functions over edit-session inputs: guest price from a flat or tiered
  policy, add-on total from catalog selections, custom line-item total, and
  the grand total. No I/O, no hidden state, never reads the payment ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - TierPricingPolicy: flat or quantity-banded guest price schedule
  - Addon / AddonSelection: catalog entry and the current edit choice
  - CustomLineItem: ad-hoc charge or discount row
  - Input / Breakdown: everything the calculator reads and returns

SEE ALSO:
  - calculator.go: The pure computations
  - session.go: Transient edit-session state producing an Input
  - factory/pricing.go: JSON form of TierPricingPolicy
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER PRICING POLICY
// =============================================================================

type PricingType string

const (
	PricingFlat   PricingType = "flat"
	PricingTiered PricingType = "tiered"
)

// TierEntry applies Price per guest once the guest count reaches
// QuantityThreshold.
type TierEntry struct {
	QuantityThreshold int             `json:"quantity_threshold"`
	Price             decimal.Decimal `json:"price"`
}

// TierPricingPolicy is immutable per tour and loaded per computation.
type TierPricingPolicy struct {
	ID          string          `json:"id,omitempty"`
	TourID      string          `json:"tour_id,omitempty"`
	PricingType PricingType     `json:"pricing_type"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Tiers       []TierEntry     `json:"tiers,omitempty"`
}

// =============================================================================
// ADD-ONS
// =============================================================================

type AddonKind string

const (
	AddonSelect   AddonKind = "SELECT"
	AddonCheckbox AddonKind = "CHECKBOX"
)

// Addon is a catalog entry offered for a tour.
type Addon struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Kind  AddonKind       `json:"kind"`
	Price decimal.Decimal `json:"price"`
}

// AddonSelection is the current choice for one add-on. Quantity is read for
// SELECT add-ons, Checked for CHECKBOX add-ons.
type AddonSelection struct {
	AddonID  string `json:"addon_id"`
	Quantity int    `json:"quantity,omitempty"`
	Checked  bool   `json:"checked,omitempty"`
}

// Selections maps addon id to its selection.
type Selections map[string]AddonSelection

// =============================================================================
// CUSTOM LINE ITEMS
// =============================================================================

type LineItemKind string

const (
	LineItemCharge   LineItemKind = "Charge"
	LineItemDiscount LineItemKind = "Discount"
)

// CustomLineItem is an ad-hoc row. Persisted items carry the server ID;
// rows added during an edit session carry a session-local LocalID instead.
type CustomLineItem struct {
	ID       string          `json:"id,omitempty"`
	LocalID  int64           `json:"local_id,omitempty"`
	Name     string          `json:"name"`
	Kind     LineItemKind    `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity int             `json:"quantity"`
}

// IsBlank reports a placeholder row: no name and no amount.
func (c CustomLineItem) IsBlank() bool {
	return c.Name == "" && c.Amount.IsZero()
}

// IsPersisted reports whether the row already exists on the server.
func (c CustomLineItem) IsPersisted() bool {
	return c.ID != ""
}

// =============================================================================
// CALCULATOR INPUT / OUTPUT
// =============================================================================

// Input is everything the grand total depends on.
type Input struct {
	Policy        *TierPricingPolicy
	GuestQuantity int
	Catalog       []Addon
	Selections    Selections
	CustomItems   []CustomLineItem
}

// Breakdown is the computed price with its components.
type Breakdown struct {
	GuestTotal       decimal.Decimal `json:"guest_total"`
	AddonTotal       decimal.Decimal `json:"addon_total"`
	CustomItemsTotal decimal.Decimal `json:"custom_items_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
}
