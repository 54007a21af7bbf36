/*
Package backend describes the booking system the engine talks to.

The engine owns no durable state. Reservations, the tour catalog, payment
transactions, payment methods and vouchers all live in the booking backend;
this package names the operations the engine consumes and the shapes they
exchange. Two implementations exist:

  - Client: REST/JSON against the booking API
  - store/sqlite: a self-contained local backend for standalone runs and tests

Consumers depend on the narrowest interface they need (Reservations,
Payments, ...), not on Backend.
*/
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/pricing"
)

// =============================================================================
// RECORDS
// =============================================================================

// Reservation is read-only to the engine. TotalPrice is the authoritative
// total last saved by the booking system.
type Reservation struct {
	ID              string          `json:"id"`
	TourID          string          `json:"tour_id"`
	GuestQuantity   int             `json:"guest_quantity"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
	TenantID        string          `json:"tenant_id,omitempty"`
}

// Tour carries the base price used when a tour has no tier policy.
type Tour struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id,omitempty"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
}

type PaymentMethod struct {
	ID          string `json:"id"`
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	PaymentDate string `json:"payment_date,omitempty"`
}

// Card returns the card details used for grouping.
func (m PaymentMethod) Card() *ledger.CardDetails {
	return &ledger.CardDetails{Brand: m.Brand, Last4: m.Last4, PaymentDate: m.PaymentDate}
}

type PaymentIntent struct {
	ID      string          `json:"id"`
	Charges []PaymentCharge `json:"charges"`
}

type PaymentCharge struct {
	ID string `json:"id"`
}

// RefundRequest asks the processor to move money back. Exactly one of
// ChargeID and PaymentIntentID is expected to be set.
type RefundRequest struct {
	PaymentMethodID       string          `json:"payment_method_id,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	OriginalTransactionID string          `json:"original_transaction_id"`
	ChargeID              string          `json:"charge_id,omitempty"`
	PaymentIntentID       string          `json:"payment_intent_id,omitempty"`
}

type RefundResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// ReservationAddon is a persisted add-on selection. Value holds a quantity
// for SELECT add-ons and a boolean for CHECKBOX add-ons.
type ReservationAddon struct {
	AddonID string     `json:"addon_id"`
	Value   AddonValue `json:"value"`
}

// AddonValue accepts a JSON number, boolean or string.
type AddonValue string

func (v *AddonValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = AddonValue(s)
		return nil
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = AddonValue(raw)
	return nil
}

// Quantity interprets the value for a SELECT add-on.
func (v AddonValue) Quantity() (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, fmt.Errorf("addon value %q is not a quantity", string(v))
	}
	return n, nil
}

// Checked interprets the value for a CHECKBOX add-on.
func (v AddonValue) Checked() bool {
	switch v {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// Selections converts persisted values into edit-session selections using
// the catalog to decide how each value is read. Values for add-ons missing
// from the catalog are dropped.
func Selections(values []ReservationAddon, catalog []pricing.Addon) (pricing.Selections, error) {
	kinds := make(map[string]pricing.AddonKind, len(catalog))
	for _, a := range catalog {
		kinds[a.ID] = a.Kind
	}

	sel := make(pricing.Selections, len(values))
	for _, v := range values {
		kind, ok := kinds[v.AddonID]
		if !ok {
			continue
		}
		switch kind {
		case pricing.AddonSelect:
			q, err := v.Value.Quantity()
			if err != nil {
				return nil, err
			}
			sel[v.AddonID] = pricing.AddonSelection{AddonID: v.AddonID, Quantity: q}
		case pricing.AddonCheckbox:
			sel[v.AddonID] = pricing.AddonSelection{AddonID: v.AddonID, Checked: v.Value.Checked()}
		}
	}
	return sel, nil
}

type VoucherRequest struct {
	Amount              decimal.Decimal `json:"amount"`
	OriginReservationID string          `json:"origin_reservation_id"`
}

// Voucher is store credit. Code is opaque and server-issued.
type Voucher struct {
	Code                string          `json:"code"`
	Amount              decimal.Decimal `json:"amount"`
	OriginReservationID string          `json:"origin_reservation_id"`
}

// Guide is a guide assigned to a reservation.
type Guide struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// =============================================================================
// CONTRACTS
// =============================================================================

type Reservations interface {
	GetReservation(ctx context.Context, id string) (*Reservation, error)
}

type Catalog interface {
	GetTour(ctx context.Context, tourID string) (*Tour, error)
	ListAddonsForTour(ctx context.Context, tourID string) ([]pricing.Addon, error)
	ListReservationAddons(ctx context.Context, reservationID string) ([]ReservationAddon, error)
	GetTierPricing(ctx context.Context, tourID string) ([]pricing.TierPricingPolicy, error)
	ListCustomLineItems(ctx context.Context, reservationID string) ([]pricing.CustomLineItem, error)
}

// Payments is the processor-facing side: refunds and card lookups.
type Payments interface {
	RequestRefund(ctx context.Context, req RefundRequest) (RefundResponse, error)
	GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}

type Vouchers interface {
	GenerateVoucher(ctx context.Context, req VoucherRequest) (Voucher, error)
}

type Guides interface {
	ListReservationGuides(ctx context.Context, reservationID string) ([]Guide, error)
}

// ReservationUpdate is the edited reservation after a successful save.
type ReservationUpdate struct {
	ReservationID string
	GuestQuantity int
	TotalPrice    decimal.Decimal
	Addons        []ReservationAddon
	CustomItems   []pricing.CustomLineItem
}

// ReservationRecorder persists an edited reservation. The remote booking
// system records its own edits; only standalone backends implement this.
type ReservationRecorder interface {
	RecordReservation(ctx context.Context, update ReservationUpdate) error
}

// AddonValues renders edit-session selections in their persisted form.
// Unselected add-ons are omitted.
func AddonValues(sel pricing.Selections, catalog []pricing.Addon) []ReservationAddon {
	var out []ReservationAddon
	for _, a := range catalog {
		s, ok := sel[a.ID]
		if !ok {
			continue
		}
		switch a.Kind {
		case pricing.AddonSelect:
			if s.Quantity > 0 {
				out = append(out, ReservationAddon{AddonID: a.ID, Value: AddonValue(strconv.Itoa(s.Quantity))})
			}
		case pricing.AddonCheckbox:
			if s.Checked {
				out = append(out, ReservationAddon{AddonID: a.ID, Value: "true"})
			}
		}
	}
	return out
}

// Backend is everything the engine consumes.
type Backend interface {
	Reservations
	Catalog
	ledger.Store
	Payments
	Vouchers
	Guides
}
