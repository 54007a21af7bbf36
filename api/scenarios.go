/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the local SQLite backend with
	realistic reservations. Each scenario creates a tour with its pricing
	policy and add-ons, a reservation, its payment history and guides, set up
	to show one reconciliation or refund behavior.

AVAILABLE SCENARIOS:

	harbor-edit:      Single card charge; edits produce a balance due or a refund
	split-payment:    Tiered tour paid on two cards; refunds draw newest first
	pending-balance:  Part paid with a pending balance; decreases absorb it first
	declined-card:    Newest card declines refunds; allocation falls back
	missing-tenant:   No tenant anywhere; saves that write are rejected

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the tour, its policy via factory and its add-ons
 3. Create payment methods and intents
 4. Create the reservation and its add-on values
 5. Add payment transactions
 6. Assign guides

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "split-payment"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, tx)
 3. Add case to scenarioLoader

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and error mapping
  - factory/policy.go: Policy JSON presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/factory"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/pricing"
	"github.com/warp/tour-pricing/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "harbor-edit",
		Name:        "Harbor Walking Tour",
		Description: "Flat-priced tour paid in one card charge; add or remove guests and add-ons",
		Category:    "edits",
	},
	{
		ID:          "split-payment",
		Name:        "Split Payment",
		Description: "Tiered canyon tour paid on two cards, one already partly refunded",
		Category:    "refunds",
	},
	{
		ID:          "pending-balance",
		Name:        "Pending Balance",
		Description: "Deposit paid with the rest pending; decreases absorb the pending balance first",
		Category:    "edits",
	},
	{
		ID:          "declined-card",
		Name:        "Declined Card",
		Description: "Newest charge is on a card whose issuer declines refunds",
		Category:    "failures",
	},
	{
		ID:          "missing-tenant",
		Name:        "Missing Tenant",
		Description: "No tenant on the reservation, tour or transactions; saving a change fails",
		Category:    "failures",
	},
}

type scenarioLoader func(ctx context.Context, tx *sqlite.TxStore) ([]string, error)

func (h *Handler) scenarioLoader(id string) (scenarioLoader, bool) {
	switch id {
	case "harbor-edit":
		return h.loadHarborEditScenario, true
	case "split-payment":
		return h.loadSplitPaymentScenario, true
	case "pending-balance":
		return h.loadPendingBalanceScenario, true
	case "declined-card":
		return h.loadDeclinedCardScenario, true
	case "missing-tenant":
		return h.loadMissingTenantScenario, true
	}
	return nil, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotImplemented, "Scenarios need the standalone SQLite backend", nil)
		return
	}

	var req LoadScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	load, ok := h.scenarioLoader(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var ids []string
	err := h.Store.WithTx(ctx, func(tx *sqlite.TxStore) error {
		var err error
		ids, err = load(ctx, tx)
		return err
	})
	if err != nil {
		h.logger.WithError(err).WithField("scenario", req.ScenarioID).Error("failed to load scenario")
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	if h.Guides != nil {
		for _, id := range ids {
			h.Guides.Invalidate(ctx, id)
		}
	}
	h.currentScenario = req.ScenarioID
	h.logger.WithField("scenario", req.ScenarioID).Info("scenario loaded")

	resp := LoadScenarioResponse{Scenario: ScenarioDTO{ID: req.ScenarioID}, ReservationIDs: ids}
	for _, s := range scenarios {
		if s.ID == req.ScenarioID {
			resp.Scenario = s
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotImplemented, "Scenarios need the standalone SQLite backend", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const demoTenant = "tenant-demo"

// Harbor tour: $100 flat per guest, photo package $30, lunch $15 each.
// Reservation: 2 guests, 2 lunches, hotel pickup $20 = $250, paid on one card.
func (h *Handler) loadHarborEditScenario(ctx context.Context, tx *sqlite.TxStore) ([]string, error) {
	if err := h.seedHarborTour(ctx, tx, demoTenant); err != nil {
		return nil, err
	}
	if err := tx.SavePaymentMethod(ctx, visa, false); err != nil {
		return nil, err
	}

	res := backend.Reservation{
		ID:              "res-harbor",
		TourID:          "tour-harbor",
		GuestQuantity:   2,
		TotalPrice:      core.Dollars(250),
		PaymentMethodID: visa.ID,
		TenantID:        demoTenant,
	}
	if err := tx.SaveReservation(ctx, res); err != nil {
		return nil, err
	}
	if err := tx.SetReservationAddon(ctx, res.ID, backend.ReservationAddon{AddonID: "addon-lunch", Value: "2"}); err != nil {
		return nil, err
	}
	if _, err := tx.SaveCustomLineItem(ctx, res.ID, pricing.CustomLineItem{
		Name: "Hotel pickup", Kind: pricing.LineItemCharge, Amount: core.Dollars(20), Quantity: 1,
	}); err != nil {
		return nil, err
	}

	if _, err := tx.CreatePaymentTransaction(ctx, charge(res, "tx-harbor-1", core.Dollars(250), visa.ID, 5, "ch_harbor_1", "")); err != nil {
		return nil, err
	}

	if err := assignGuides(ctx, tx, res.ID, guideAda, guideGrace); err != nil {
		return nil, err
	}
	return []string{res.ID}, nil
}

// Canyon tour, tiered: 1-3 guests $150, 4-7 $120, 8+ $100.
// Reservation: 5 guests = $600. $400 on Visa through a payment intent, then
// $250 on Amex, of which $50 was already refunded.
func (h *Handler) loadSplitPaymentScenario(ctx context.Context, tx *sqlite.TxStore) ([]string, error) {
	tour := backend.Tour{ID: "tour-canyon", TenantID: demoTenant, Name: "Canyon Sunrise Hike", BasePrice: core.Dollars(150)}
	if err := tx.SaveTour(ctx, tour); err != nil {
		return nil, err
	}
	policyJSON := factory.TieredJSON("policy-canyon", tour.ID, core.Dollars(150),
		pricing.TierEntry{QuantityThreshold: 1, Price: core.Dollars(150)},
		pricing.TierEntry{QuantityThreshold: 4, Price: core.Dollars(120)},
		pricing.TierEntry{QuantityThreshold: 8, Price: core.Dollars(100)},
	)
	if err := h.createPolicyFromJSON(ctx, tx, policyJSON); err != nil {
		return nil, err
	}
	if err := tx.SaveAddon(ctx, tour.ID, 0, pricing.Addon{
		ID: "addon-breakfast", Name: "Trail breakfast", Kind: pricing.AddonSelect, Price: core.Dollars(12),
	}); err != nil {
		return nil, err
	}

	for _, m := range []backend.PaymentMethod{visa, amex} {
		if err := tx.SavePaymentMethod(ctx, m, false); err != nil {
			return nil, err
		}
	}
	if err := tx.SavePaymentIntent(ctx, backend.PaymentIntent{
		ID: "pi_canyon_1", Charges: []backend.PaymentCharge{{ID: "ch_canyon_1"}},
	}); err != nil {
		return nil, err
	}

	res := backend.Reservation{
		ID:              "res-canyon",
		TourID:          tour.ID,
		GuestQuantity:   5,
		TotalPrice:      core.Dollars(600),
		PaymentMethodID: amex.ID,
		TenantID:        demoTenant,
	}
	if err := tx.SaveReservation(ctx, res); err != nil {
		return nil, err
	}

	txs := []ledger.PaymentTransaction{
		charge(res, "tx-canyon-1", core.Dollars(400), visa.ID, 10, "", "pi_canyon_1"),
		charge(res, "tx-canyon-2", core.Dollars(250), amex.ID, 3, "ch_canyon_2", ""),
		refundOf(res, "tx-canyon-2-r1", "tx-canyon-2", core.Dollars(50), amex.ID, 2),
	}
	for _, t := range txs {
		if _, err := tx.CreatePaymentTransaction(ctx, t); err != nil {
			return nil, err
		}
	}

	if err := assignGuides(ctx, tx, res.ID, guideKatherine); err != nil {
		return nil, err
	}
	return []string{res.ID}, nil
}

// Harbor tour, 3 guests = $300: $200 deposit settled, $100 pending.
func (h *Handler) loadPendingBalanceScenario(ctx context.Context, tx *sqlite.TxStore) ([]string, error) {
	if err := h.seedHarborTour(ctx, tx, demoTenant); err != nil {
		return nil, err
	}
	if err := tx.SavePaymentMethod(ctx, visa, false); err != nil {
		return nil, err
	}

	res := backend.Reservation{
		ID:              "res-deposit",
		TourID:          "tour-harbor",
		GuestQuantity:   3,
		TotalPrice:      core.Dollars(300),
		PaymentMethodID: visa.ID,
		TenantID:        demoTenant,
	}
	if err := tx.SaveReservation(ctx, res); err != nil {
		return nil, err
	}

	pending := charge(res, "tx-deposit-due", core.Dollars(100), visa.ID, 1, "", "")
	pending.Status = ledger.StatusPending
	pending.Metadata = map[string]string{ledger.MetaBalanceDue: "true"}

	for _, t := range []ledger.PaymentTransaction{
		charge(res, "tx-deposit-1", core.Dollars(200), visa.ID, 7, "ch_deposit_1", ""),
		pending,
	} {
		if _, err := tx.CreatePaymentTransaction(ctx, t); err != nil {
			return nil, err
		}
	}

	if err := assignGuides(ctx, tx, res.ID, guideGrace); err != nil {
		return nil, err
	}
	return []string{res.ID}, nil
}

// Harbor tour, 2 guests with photos = $230: $100 on Visa, then $130 on a
// card whose issuer declines refunds.
func (h *Handler) loadDeclinedCardScenario(ctx context.Context, tx *sqlite.TxStore) ([]string, error) {
	if err := h.seedHarborTour(ctx, tx, demoTenant); err != nil {
		return nil, err
	}
	if err := tx.SavePaymentMethod(ctx, visa, false); err != nil {
		return nil, err
	}
	if err := tx.SavePaymentMethod(ctx, prepaid, true); err != nil {
		return nil, err
	}

	res := backend.Reservation{
		ID:              "res-declined",
		TourID:          "tour-harbor",
		GuestQuantity:   2,
		TotalPrice:      core.Dollars(230),
		PaymentMethodID: prepaid.ID,
		TenantID:        demoTenant,
	}
	if err := tx.SaveReservation(ctx, res); err != nil {
		return nil, err
	}
	if err := tx.SetReservationAddon(ctx, res.ID, backend.ReservationAddon{AddonID: "addon-photos", Value: "true"}); err != nil {
		return nil, err
	}

	for _, t := range []ledger.PaymentTransaction{
		charge(res, "tx-declined-1", core.Dollars(100), visa.ID, 6, "ch_declined_1", ""),
		charge(res, "tx-declined-2", core.Dollars(130), prepaid.ID, 2, "ch_declined_2", ""),
	} {
		if _, err := tx.CreatePaymentTransaction(ctx, t); err != nil {
			return nil, err
		}
	}
	return []string{res.ID}, nil
}

// Harbor tour with no tenant anywhere, 2 guests = $200 paid on Visa.
func (h *Handler) loadMissingTenantScenario(ctx context.Context, tx *sqlite.TxStore) ([]string, error) {
	if err := h.seedHarborTour(ctx, tx, ""); err != nil {
		return nil, err
	}
	if err := tx.SavePaymentMethod(ctx, visa, false); err != nil {
		return nil, err
	}

	res := backend.Reservation{
		ID:              "res-orphan",
		TourID:          "tour-harbor",
		GuestQuantity:   2,
		TotalPrice:      core.Dollars(200),
		PaymentMethodID: visa.ID,
	}
	if err := tx.SaveReservation(ctx, res); err != nil {
		return nil, err
	}

	t := charge(res, "tx-orphan-1", core.Dollars(200), visa.ID, 4, "ch_orphan_1", "")
	if _, err := tx.CreatePaymentTransaction(ctx, t); err != nil {
		return nil, err
	}
	return []string{res.ID}, nil
}

// =============================================================================
// SEED HELPERS
// =============================================================================

var (
	visa    = backend.PaymentMethod{ID: "pm-visa", Brand: "visa", Last4: "4242"}
	amex    = backend.PaymentMethod{ID: "pm-amex", Brand: "amex", Last4: "0005"}
	prepaid = backend.PaymentMethod{ID: "pm-prepaid", Brand: "mastercard", Last4: "5100"}

	guideAda       = backend.Guide{ID: "guide-ada", Name: "Ada Lovelace", Email: "ada@tours.example"}
	guideGrace     = backend.Guide{ID: "guide-grace", Name: "Grace Hopper", Email: "grace@tours.example"}
	guideKatherine = backend.Guide{ID: "guide-katherine", Name: "Katherine Johnson", Email: "katherine@tours.example"}
)

func (h *Handler) seedHarborTour(ctx context.Context, tx *sqlite.TxStore, tenantID string) error {
	tour := backend.Tour{ID: "tour-harbor", TenantID: tenantID, Name: "Harbor Walking Tour", BasePrice: core.Dollars(100)}
	if err := tx.SaveTour(ctx, tour); err != nil {
		return err
	}
	if err := h.createPolicyFromJSON(ctx, tx, factory.FlatJSON("policy-harbor", tour.ID, core.Dollars(100))); err != nil {
		return err
	}
	addons := []pricing.Addon{
		{ID: "addon-photos", Name: "Photo package", Kind: pricing.AddonCheckbox, Price: core.Dollars(30)},
		{ID: "addon-lunch", Name: "Harbor lunch", Kind: pricing.AddonSelect, Price: core.Dollars(15)},
	}
	for i, a := range addons {
		if err := tx.SaveAddon(ctx, tour.ID, i, a); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) createPolicyFromJSON(ctx context.Context, tx *sqlite.TxStore, jsonStr string) error {
	policy, err := h.PolicyFactory.ParsePolicy(jsonStr)
	if err != nil {
		return err
	}
	return tx.SavePolicy(ctx, policy)
}

func assignGuides(ctx context.Context, tx *sqlite.TxStore, reservationID string, guides ...backend.Guide) error {
	for _, g := range guides {
		if err := tx.AssignGuide(ctx, reservationID, g); err != nil {
			return err
		}
	}
	return nil
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().Truncate(time.Second).AddDate(0, 0, -n)
}

func charge(res backend.Reservation, id string, amount decimal.Decimal, methodID string, age int, chargeID, intentID string) ledger.PaymentTransaction {
	return ledger.PaymentTransaction{
		ID:              id,
		ReservationID:   res.ID,
		TenantID:        res.TenantID,
		Amount:          amount,
		Direction:       ledger.DirectionCharge,
		Status:          ledger.StatusCompleted,
		PaymentMethodID: methodID,
		ChargeID:        chargeID,
		PaymentIntentID: intentID,
		CreatedAt:       daysAgo(age),
	}
}

func refundOf(res backend.Reservation, id, parentID string, amount decimal.Decimal, methodID string, age int) ledger.PaymentTransaction {
	return ledger.PaymentTransaction{
		ID:                  id,
		ReservationID:       res.ID,
		TenantID:            res.TenantID,
		Amount:              amount,
		Direction:           ledger.DirectionRefund,
		Status:              ledger.StatusCompleted,
		PaymentMethodID:     methodID,
		ParentTransactionID: parentID,
		Metadata:            map[string]string{ledger.MetaReason: "weather delay credit"},
		CreatedAt:           daysAgo(age),
	}
}
