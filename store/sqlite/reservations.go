package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
)

var _ backend.ReservationRecorder = (*Store)(nil)

// =============================================================================
// RESERVATIONS
// =============================================================================

// GetReservation returns a reservation or *core.NotFoundError.
func (s *Store) GetReservation(ctx context.Context, id string) (*backend.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r backend.Reservation
	var tenantID, methodID sql.NullString
	var total string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tour_id, tenant_id, guest_quantity, total_price, payment_method_id
		FROM reservations WHERE id = ?
	`, id).Scan(&r.ID, &r.TourID, &tenantID, &r.GuestQuantity, &total, &methodID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "reservation", ID: id}
	}
	if err != nil {
		return nil, err
	}
	r.TenantID = tenantID.String
	r.PaymentMethodID = methodID.String
	r.TotalPrice = parseDecimal(total)
	return &r, nil
}

// SaveReservation creates or replaces a reservation record.
func (s *Store) SaveReservation(ctx context.Context, r backend.Reservation) error {
	return s.WithTx(ctx, func(tx *TxStore) error { return tx.SaveReservation(ctx, r) })
}

func (t *TxStore) SaveReservation(ctx context.Context, r backend.Reservation) error {
	if r.ID == "" || r.TourID == "" {
		return core.Invalid("reservation", "id and tour_id are required")
	}
	if r.GuestQuantity < 0 {
		return core.Invalid("guest_quantity", "must be non-negative")
	}
	now := t.parent.now()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (id, tour_id, tenant_id, guest_quantity, total_price, payment_method_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tour_id = excluded.tour_id,
			tenant_id = excluded.tenant_id,
			guest_quantity = excluded.guest_quantity,
			total_price = excluded.total_price,
			payment_method_id = excluded.payment_method_id,
			updated_at = excluded.updated_at
	`, r.ID, r.TourID, nullString(r.TenantID), r.GuestQuantity, r.TotalPrice.String(), nullString(r.PaymentMethodID), now, now)
	return err
}

// RecordReservation writes back an edited reservation: guest count, total,
// the full add-on selection and the custom rows. Rows missing from the
// update are removed; rows without an ID are created.
func (s *Store) RecordReservation(ctx context.Context, u backend.ReservationUpdate) error {
	return s.WithTx(ctx, func(tx *TxStore) error {
		res, err := tx.exec(ctx, `
			UPDATE reservations SET guest_quantity = ?, total_price = ?, updated_at = ? WHERE id = ?
		`, u.GuestQuantity, u.TotalPrice.String(), s.now(), u.ReservationID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &core.NotFoundError{Kind: "reservation", ID: u.ReservationID}
		}

		if _, err := tx.exec(ctx, `DELETE FROM reservation_addons WHERE reservation_id = ?`, u.ReservationID); err != nil {
			return err
		}
		for _, ra := range u.Addons {
			if err := tx.SetReservationAddon(ctx, u.ReservationID, ra); err != nil {
				return err
			}
		}

		keep := make([]any, 0, len(u.CustomItems)+1)
		keep = append(keep, u.ReservationID)
		for _, item := range u.CustomItems {
			if item.IsBlank() {
				continue
			}
			saved, err := tx.SaveCustomLineItem(ctx, u.ReservationID, item)
			if err != nil {
				return err
			}
			keep = append(keep, saved.ID)
		}
		return tx.pruneCustomItems(ctx, keep)
	})
}

// pruneCustomItems deletes the reservation's rows not in keep[1:].
func (t *TxStore) pruneCustomItems(ctx context.Context, keep []any) error {
	query := `DELETE FROM custom_line_items WHERE reservation_id = ?`
	if len(keep) > 1 {
		query += ` AND id NOT IN (?` + repeatMarks(len(keep)-2) + `)`
	}
	_, err := t.exec(ctx, query, keep...)
	return err
}

func (t *TxStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return res, nil
}

func repeatMarks(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		out = append(out, ',', '?')
	}
	return string(out)
}

// =============================================================================
// GUIDES
// =============================================================================

// ListReservationGuides returns the guides assigned to a reservation.
func (s *Store) ListReservationGuides(ctx context.Context, reservationID string) ([]backend.Guide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.email
		FROM reservation_guides rg JOIN guides g ON g.id = rg.guide_id
		WHERE rg.reservation_id = ?
		ORDER BY g.name, g.id
	`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []backend.Guide
	for rows.Next() {
		var g backend.Guide
		var email sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &email); err != nil {
			return nil, err
		}
		g.Email = email.String
		result = append(result, g)
	}
	return result, rows.Err()
}

// AssignGuide records a guide and assigns them to a reservation.
func (s *Store) AssignGuide(ctx context.Context, reservationID string, g backend.Guide) error {
	return s.WithTx(ctx, func(tx *TxStore) error { return tx.AssignGuide(ctx, reservationID, g) })
}

func (t *TxStore) AssignGuide(ctx context.Context, reservationID string, g backend.Guide) error {
	if g.ID == "" {
		return core.Invalid("guide.id", "is required")
	}
	if _, err := t.exec(ctx, `
		INSERT INTO guides (id, name, email) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email
	`, g.ID, g.Name, nullString(g.Email)); err != nil {
		return err
	}
	_, err := t.exec(ctx, `
		INSERT OR IGNORE INTO reservation_guides (reservation_id, guide_id) VALUES (?, ?)
	`, reservationID, g.ID)
	return err
}
