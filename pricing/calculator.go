package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/core"
)

// =============================================================================
// GUEST PRICE
// =============================================================================

// ComputeGuestPrice returns the guest total for quantity guests.
//
// A flat policy charges BasePrice per guest. A tiered policy charges the
// price of the highest threshold not exceeding quantity, falling back to
// BasePrice when no tier qualifies. A nil policy has no base price to apply
// and prices guests at zero; callers without a tier policy pass FlatPolicy.
func ComputeGuestPrice(policy *TierPricingPolicy, quantity int) (decimal.Decimal, error) {
	if quantity < 0 {
		return decimal.Zero, core.Invalid("guest_quantity", "must not be negative (got %d)", quantity)
	}
	if policy == nil {
		return decimal.Zero, nil
	}
	if err := policy.Validate(); err != nil {
		return decimal.Zero, err
	}

	if policy.PricingType != PricingTiered || len(policy.Tiers) == 0 {
		return core.Times(policy.BasePrice, quantity), nil
	}

	tiers := make([]TierEntry, len(policy.Tiers))
	copy(tiers, policy.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].QuantityThreshold > tiers[j].QuantityThreshold
	})

	for _, t := range tiers {
		if t.QuantityThreshold <= quantity {
			return core.Times(t.Price, quantity), nil
		}
	}
	return core.Times(policy.BasePrice, quantity), nil
}

// FlatPolicy prices every guest at basePrice.
func FlatPolicy(basePrice decimal.Decimal) *TierPricingPolicy {
	return &TierPricingPolicy{PricingType: PricingFlat, BasePrice: basePrice}
}

// Validate rejects policies the calculator cannot price.
func (p *TierPricingPolicy) Validate() error {
	switch p.PricingType {
	case PricingFlat, PricingTiered, "":
	default:
		return core.Invalid("pricing_type", "unknown pricing type %q", p.PricingType)
	}
	if p.BasePrice.IsNegative() {
		return core.Invalid("base_price", "must not be negative")
	}

	seen := make(map[int]bool, len(p.Tiers))
	for _, t := range p.Tiers {
		if t.QuantityThreshold < 0 {
			return core.Invalid("tiers", "threshold must not be negative (got %d)", t.QuantityThreshold)
		}
		if t.Price.IsNegative() {
			return core.Invalid("tiers", "price for threshold %d must not be negative", t.QuantityThreshold)
		}
		if seen[t.QuantityThreshold] {
			return core.Invalid("tiers", "duplicate threshold %d", t.QuantityThreshold)
		}
		seen[t.QuantityThreshold] = true
	}
	return nil
}

// =============================================================================
// ADD-ONS
// =============================================================================

// ComputeAddonTotal sums the catalog add-ons that are selected. Selections for
// ids missing from the catalog are ignored.
func ComputeAddonTotal(selections Selections, catalog []Addon) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, addon := range catalog {
		sel, ok := selections[addon.ID]
		if !ok {
			continue
		}
		switch addon.Kind {
		case AddonSelect:
			if sel.Quantity < 0 {
				return decimal.Zero, core.Invalid("addons", "quantity for %s must not be negative", addon.ID)
			}
			if sel.Quantity > 0 {
				total = total.Add(core.Times(addon.Price, sel.Quantity))
			}
		case AddonCheckbox:
			if sel.Checked {
				total = total.Add(addon.Price)
			}
		}
	}
	return total, nil
}

// =============================================================================
// CUSTOM LINE ITEMS
// =============================================================================

// ComputeCustomLineItemsTotal sums charge rows and subtracts discount rows.
// Blank placeholder rows are excluded.
func ComputeCustomLineItemsTotal(items []CustomLineItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range items {
		if item.IsBlank() {
			continue
		}
		if item.Quantity < 0 {
			return decimal.Zero, core.Invalid("custom_items", "quantity for %q must not be negative", item.Name)
		}
		line := core.Times(item.Amount, item.Quantity)
		if item.Kind == LineItemDiscount {
			line = line.Neg()
		}
		total = total.Add(line)
	}
	return total, nil
}

// =============================================================================
// GRAND TOTAL
// =============================================================================

// ComputeGrandTotal is the single source of truth for what the reservation
// should cost for the given inputs. Any component error fails the whole
// computation; nothing is partially applied.
func ComputeGrandTotal(in Input) (Breakdown, error) {
	guest, err := ComputeGuestPrice(in.Policy, in.GuestQuantity)
	if err != nil {
		return Breakdown{}, err
	}
	addons, err := ComputeAddonTotal(in.Selections, in.Catalog)
	if err != nil {
		return Breakdown{}, err
	}
	custom, err := ComputeCustomLineItemsTotal(in.CustomItems)
	if err != nil {
		return Breakdown{}, err
	}

	return Breakdown{
		GuestTotal:       guest,
		AddonTotal:       addons,
		CustomItemsTotal: custom,
		GrandTotal:       core.Sum(guest, addons, custom),
	}, nil
}
