/*
Package booking orchestrates pricing and refund reconciliation for one
reservation edit.

PURPOSE:
  Runs the engine in two phases. Gather fetches everything a computation
  needs from the booking backend into an immutable PricingContext. Evaluate
  is pure: it prices the edited reservation and reconciles the result
  against the authoritative total and the pending ledger balance. Service.Save
  then executes the outcome: refund allocation, store credit and pending
  balance consolidation.

FLOW:
  Gather(ctx, src, reservationID)  -> *PricingContext   (I/O)
  Edit.Apply(pc)                   -> *pricing.EditSession
  Evaluate(pc, session.Input())    -> Quote             (pure)
  Service.Save / Service.Refund                        (I/O, sequential)

CONCURRENCY:
  One flow per edit session. Nothing prevents two saves for the same
  reservation from running at once; completed refund draws are never rolled
  back.

SEE ALSO:
  - pricing: the calculator
  - reconcile: the balance reconciler
  - refund: the allocator
  - credit: store credit
*/
package booking

import (
	"context"
	"fmt"

	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/pricing"
)

// =============================================================================
// PRICING CONTEXT
// =============================================================================

// Source is the read side of the backend that Gather needs.
type Source interface {
	backend.Reservations
	backend.Catalog
	ListPaymentTransactions(ctx context.Context, reservationID string, statuses ...ledger.Status) ([]ledger.PaymentTransaction, error)
}

// PricingContext is a snapshot of one reservation and everything priced
// against it. It is not modified after Gather returns.
type PricingContext struct {
	Reservation backend.Reservation
	Tour        backend.Tour

	// Policy is the tour's tier policy, or a flat policy at the tour's base
	// price when the tour has none.
	Policy *pricing.TierPricingPolicy

	Catalog      []pricing.Addon
	Selections   pricing.Selections
	CustomItems  []pricing.CustomLineItem
	Transactions []ledger.PaymentTransaction
	Ledger       ledger.Ledger
}

// Gather loads a PricingContext. Any collaborator failure aborts it.
func Gather(ctx context.Context, src Source, reservationID string) (*PricingContext, error) {
	res, err := src.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}

	tour, err := src.GetTour(ctx, res.TourID)
	if err != nil {
		return nil, fmt.Errorf("load tour: %w", err)
	}

	policies, err := src.GetTierPricing(ctx, res.TourID)
	if err != nil {
		return nil, fmt.Errorf("load tier pricing: %w", err)
	}
	policy := pricing.FlatPolicy(tour.BasePrice)
	if len(policies) > 0 {
		p := policies[0]
		policy = &p
	}

	catalog, err := src.ListAddonsForTour(ctx, res.TourID)
	if err != nil {
		return nil, fmt.Errorf("load add-ons: %w", err)
	}

	values, err := src.ListReservationAddons(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load reservation add-ons: %w", err)
	}
	selections, err := backend.Selections(values, catalog)
	if err != nil {
		return nil, fmt.Errorf("read reservation add-ons: %w", err)
	}

	items, err := src.ListCustomLineItems(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load custom line items: %w", err)
	}

	txs, err := src.ListPaymentTransactions(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load payment transactions: %w", err)
	}

	return &PricingContext{
		Reservation:  *res,
		Tour:         *tour,
		Policy:       policy,
		Catalog:      catalog,
		Selections:   selections,
		CustomItems:  items,
		Transactions: txs,
		Ledger:       ledger.Build(txs),
	}, nil
}

// Session starts an edit session from the persisted state.
func (pc *PricingContext) Session() *pricing.EditSession {
	return pricing.NewEditSession(pc.Policy, pc.Catalog, pc.Reservation.GuestQuantity, pc.Selections, pc.CustomItems)
}

// =============================================================================
// EDIT
// =============================================================================

// Edit is a change to a reservation. Nil fields keep the persisted value.
type Edit struct {
	GuestQuantity *int `json:"guest_quantity,omitempty"`

	// Selections are merged over the persisted selections by add-on id.
	Selections pricing.Selections `json:"selections,omitempty"`

	// CustomItems, when non-nil, replaces the full list of custom rows.
	CustomItems []pricing.CustomLineItem `json:"custom_items,omitempty"`
}

// Apply replays the edit onto a fresh session.
func (e Edit) Apply(pc *PricingContext) (*pricing.EditSession, error) {
	items := pc.CustomItems
	var added []pricing.CustomLineItem
	if e.CustomItems != nil {
		items = nil
		for _, it := range e.CustomItems {
			if it.IsPersisted() || it.LocalID > 0 {
				items = append(items, it)
			} else {
				added = append(added, it)
			}
		}
	}

	s := pricing.NewEditSession(pc.Policy, pc.Catalog, pc.Reservation.GuestQuantity, pc.Selections, items)
	for _, it := range added {
		s.AddCustomItem(it)
	}

	if e.GuestQuantity != nil {
		if err := s.SetGuestQuantity(*e.GuestQuantity); err != nil {
			return nil, err
		}
	}

	kinds := make(map[string]pricing.AddonKind, len(pc.Catalog))
	for _, a := range pc.Catalog {
		kinds[a.ID] = a.Kind
	}
	// Ids the tour does not offer are skipped, as in ComputeAddonTotal.
	for id, sel := range e.Selections {
		switch kinds[id] {
		case pricing.AddonCheckbox:
			s.SetChecked(id, sel.Checked)
		case pricing.AddonSelect:
			if err := s.SetQuantity(id, sel.Quantity); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}
