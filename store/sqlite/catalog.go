package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/pricing"
)

// =============================================================================
// TOURS
// =============================================================================

// GetTour returns a tour or *core.NotFoundError.
func (s *Store) GetTour(ctx context.Context, tourID string) (*backend.Tour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t backend.Tour
	var tenantID sql.NullString
	var basePrice string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, base_price FROM tours WHERE id = ?
	`, tourID).Scan(&t.ID, &tenantID, &t.Name, &basePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "tour", ID: tourID}
	}
	if err != nil {
		return nil, err
	}
	t.TenantID = tenantID.String
	t.BasePrice = parseDecimal(basePrice)
	return &t, nil
}

// SaveTour creates or updates a tour.
func (s *Store) SaveTour(ctx context.Context, t backend.Tour) error {
	return s.WithTx(ctx, func(tx *TxStore) error { return tx.SaveTour(ctx, t) })
}

func (t *TxStore) SaveTour(ctx context.Context, tour backend.Tour) error {
	if tour.ID == "" {
		return core.Invalid("tour.id", "is required")
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO tours (id, tenant_id, name, base_price, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			name = excluded.name,
			base_price = excluded.base_price
	`, tour.ID, nullString(tour.TenantID), tour.Name, tour.BasePrice.String(), t.parent.now())
	return err
}

// =============================================================================
// TIER POLICIES
// =============================================================================

// GetTierPricing returns the tour's tier policies, oldest first. A tour
// without policies yields an empty slice.
func (s *Store) GetTierPricing(ctx context.Context, tourID string) ([]pricing.TierPricingPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT config_json FROM tier_policies WHERE tour_id = ? ORDER BY created_at ASC, id ASC
	`, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []pricing.TierPricingPolicy
	for rows.Next() {
		var configJSON string
		if err := rows.Scan(&configJSON); err != nil {
			return nil, err
		}
		policy, err := s.policies.ParsePolicy(configJSON)
		if err != nil {
			return nil, fmt.Errorf("stored tier policy for tour %s: %w", tourID, err)
		}
		result = append(result, *policy)
	}
	return result, rows.Err()
}

// SavePolicy stores a validated tier policy, bumping its version on update.
func (s *Store) SavePolicy(ctx context.Context, policy *pricing.TierPricingPolicy) error {
	return s.WithTx(ctx, func(tx *TxStore) error { return tx.SavePolicy(ctx, policy) })
}

func (t *TxStore) SavePolicy(ctx context.Context, policy *pricing.TierPricingPolicy) error {
	if policy.ID == "" || policy.TourID == "" {
		return core.Invalid("policy", "id and tour_id are required")
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	configJSON, err := t.parent.policies.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to serialize policy: %w", err)
	}

	now := t.parent.now()
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO tier_policies (id, tour_id, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tour_id = excluded.tour_id,
			config_json = excluded.config_json,
			version = tier_policies.version + 1,
			updated_at = excluded.updated_at
	`, policy.ID, policy.TourID, configJSON, now, now)
	return err
}

// =============================================================================
// ADD-ONS
// =============================================================================

// ListAddonsForTour returns the tour's add-on catalog in display order.
func (s *Store) ListAddonsForTour(ctx context.Context, tourID string) ([]pricing.Addon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, price FROM addons WHERE tour_id = ? ORDER BY position ASC, id ASC
	`, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []pricing.Addon
	for rows.Next() {
		var a pricing.Addon
		var kind, price string
		if err := rows.Scan(&a.ID, &a.Name, &kind, &price); err != nil {
			return nil, err
		}
		a.Kind = pricing.AddonKind(kind)
		a.Price = parseDecimal(price)
		result = append(result, a)
	}
	return result, rows.Err()
}

// SaveAddon adds or replaces a catalog entry for a tour.
func (s *Store) SaveAddon(ctx context.Context, tourID string, position int, a pricing.Addon) error {
	return s.WithTx(ctx, func(tx *TxStore) error { return tx.SaveAddon(ctx, tourID, position, a) })
}

func (t *TxStore) SaveAddon(ctx context.Context, tourID string, position int, a pricing.Addon) error {
	if a.ID == "" {
		return core.Invalid("addon.id", "is required")
	}
	if a.Kind != pricing.AddonSelect && a.Kind != pricing.AddonCheckbox {
		return core.Invalid("addon.kind", "unknown add-on kind %q", a.Kind)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO addons (id, tour_id, name, kind, price, position)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tour_id = excluded.tour_id,
			name = excluded.name,
			kind = excluded.kind,
			price = excluded.price,
			position = excluded.position
	`, a.ID, tourID, a.Name, string(a.Kind), a.Price.String(), position)
	return err
}

// ListReservationAddons returns the persisted add-on values.
func (s *Store) ListReservationAddons(ctx context.Context, reservationID string) ([]backend.ReservationAddon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT addon_id, value FROM reservation_addons WHERE reservation_id = ? ORDER BY addon_id
	`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []backend.ReservationAddon
	for rows.Next() {
		var ra backend.ReservationAddon
		var value string
		if err := rows.Scan(&ra.AddonID, &value); err != nil {
			return nil, err
		}
		ra.Value = backend.AddonValue(value)
		result = append(result, ra)
	}
	return result, rows.Err()
}

// SetReservationAddon stores one add-on value for a reservation.
func (s *Store) SetReservationAddon(ctx context.Context, reservationID string, ra backend.ReservationAddon) error {
	return s.WithTx(ctx, func(tx *TxStore) error { return tx.SetReservationAddon(ctx, reservationID, ra) })
}

func (t *TxStore) SetReservationAddon(ctx context.Context, reservationID string, ra backend.ReservationAddon) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservation_addons (reservation_id, addon_id, value)
		VALUES (?, ?, ?)
		ON CONFLICT(reservation_id, addon_id) DO UPDATE SET value = excluded.value
	`, reservationID, ra.AddonID, string(ra.Value))
	return err
}

// =============================================================================
// CUSTOM LINE ITEMS
// =============================================================================

// ListCustomLineItems returns a reservation's persisted custom rows.
func (s *Store) ListCustomLineItems(ctx context.Context, reservationID string) ([]pricing.CustomLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, amount, quantity FROM custom_line_items
		WHERE reservation_id = ? ORDER BY created_at ASC, rowid ASC
	`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []pricing.CustomLineItem
	for rows.Next() {
		var item pricing.CustomLineItem
		var kind, amount string
		if err := rows.Scan(&item.ID, &item.Name, &kind, &amount, &item.Quantity); err != nil {
			return nil, err
		}
		item.Kind = pricing.LineItemKind(kind)
		item.Amount = parseDecimal(amount)
		result = append(result, item)
	}
	return result, rows.Err()
}

// SaveCustomLineItem persists a custom row and returns it with its ID.
func (s *Store) SaveCustomLineItem(ctx context.Context, reservationID string, item pricing.CustomLineItem) (pricing.CustomLineItem, error) {
	var saved pricing.CustomLineItem
	err := s.WithTx(ctx, func(tx *TxStore) error {
		var err error
		saved, err = tx.SaveCustomLineItem(ctx, reservationID, item)
		return err
	})
	return saved, err
}

func (t *TxStore) SaveCustomLineItem(ctx context.Context, reservationID string, item pricing.CustomLineItem) (pricing.CustomLineItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.LocalID = 0
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO custom_line_items (id, reservation_id, name, kind, amount, quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			amount = excluded.amount,
			quantity = excluded.quantity
	`, item.ID, reservationID, item.Name, string(item.Kind), item.Amount.String(), item.Quantity, t.parent.now())
	if err != nil {
		return pricing.CustomLineItem{}, err
	}
	return item, nil
}
