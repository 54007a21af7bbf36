/*
Package factory provides JSON to Go tier pricing policy conversion.

PURPOSE:
  Tier pricing policies are stored and exchanged as JSON. The factory turns
  that JSON into a validated pricing.TierPricingPolicy and back, so a tour's
  price schedule can be changed without code changes.

JSON SCHEMA:
  {
    "id": "kayak-tiers",
    "tour_id": "tour-kayak",
    "pricing_type": "tiered",
    "base_price": "120.00",
    "tiers": [
      {"quantity_threshold": 5,  "price": "100.00"},
      {"quantity_threshold": 10, "price": "90.00"}
    ]
  }

DEFAULTS:
  - pricing_type omitted: "tiered" when tiers are present, else "flat"
  - amounts accept JSON strings or numbers

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(jsonString)

  jsonStr := TieredJSON("kayak-tiers", "tour-kayak", core.Dollars(120),
      pricing.TierEntry{QuantityThreshold: 5, Price: core.Dollars(100)})

SEE ALSO:
  - pricing/types.go: TierPricingPolicy
  - store/sqlite: persists policies as config_json
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/pricing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a tier pricing policy.
type PolicyJSON struct {
	ID          string          `json:"id"`
	TourID      string          `json:"tour_id"`
	PricingType string          `json:"pricing_type,omitempty"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Tiers       []TierJSON      `json:"tiers,omitempty"`
}

// TierJSON is one price band.
type TierJSON struct {
	QuantityThreshold int             `json:"quantity_threshold"`
	Price             decimal.Decimal `json:"price"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses and validates a JSON policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*pricing.TierPricingPolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, core.Invalid("policy", "failed to parse policy JSON: %v", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to a validated policy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*pricing.TierPricingPolicy, error) {
	policy := &pricing.TierPricingPolicy{
		ID:          pj.ID,
		TourID:      pj.TourID,
		PricingType: parsePricingType(pj.PricingType, len(pj.Tiers) > 0),
		BasePrice:   pj.BasePrice,
	}
	for _, tj := range pj.Tiers {
		policy.Tiers = append(policy.Tiers, pricing.TierEntry{
			QuantityThreshold: tj.QuantityThreshold,
			Price:             tj.Price,
		})
	}

	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy %s: %w", pj.ID, err)
	}
	return policy, nil
}

// ToJSON converts a policy to PolicyJSON.
func (f *PolicyFactory) ToJSON(policy *pricing.TierPricingPolicy) PolicyJSON {
	pj := PolicyJSON{
		ID:          policy.ID,
		TourID:      policy.TourID,
		PricingType: string(policy.PricingType),
		BasePrice:   policy.BasePrice,
	}
	for _, t := range policy.Tiers {
		pj.Tiers = append(pj.Tiers, TierJSON{QuantityThreshold: t.QuantityThreshold, Price: t.Price})
	}
	return pj
}

// Marshal renders a policy as its JSON string.
func (f *PolicyFactory) Marshal(policy *pricing.TierPricingPolicy) (string, error) {
	data, err := json.Marshal(f.ToJSON(policy))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// =============================================================================
// PRESETS
// =============================================================================

// FlatJSON is a flat per-guest policy.
func FlatJSON(id, tourID string, basePrice decimal.Decimal) string {
	return mustMarshal(PolicyJSON{ID: id, TourID: tourID, PricingType: string(pricing.PricingFlat), BasePrice: basePrice})
}

// TieredJSON is a tiered policy with the given bands.
func TieredJSON(id, tourID string, basePrice decimal.Decimal, tiers ...pricing.TierEntry) string {
	pj := PolicyJSON{ID: id, TourID: tourID, PricingType: string(pricing.PricingTiered), BasePrice: basePrice}
	for _, t := range tiers {
		pj.Tiers = append(pj.Tiers, TierJSON{QuantityThreshold: t.QuantityThreshold, Price: t.Price})
	}
	return mustMarshal(pj)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePricingType(s string, hasTiers bool) pricing.PricingType {
	switch s {
	case "":
		if hasTiers {
			return pricing.PricingTiered
		}
		return pricing.PricingFlat
	default:
		// Unknown values are kept so Validate can reject them.
		return pricing.PricingType(s)
	}
}

func mustMarshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
