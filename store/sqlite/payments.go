package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
)

// =============================================================================
// PAYMENT METHODS
// =============================================================================

// GetPaymentMethod returns a stored card or *core.NotFoundError.
func (s *Store) GetPaymentMethod(ctx context.Context, id string) (*backend.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m backend.PaymentMethod
	var paymentDate sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, brand, last4, payment_date FROM payment_methods WHERE id = ?
	`, id).Scan(&m.ID, &m.Brand, &m.Last4, &paymentDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "payment method", ID: id}
	}
	if err != nil {
		return nil, err
	}
	m.PaymentDate = paymentDate.String
	return &m, nil
}

// SavePaymentMethod stores a card. declineRefunds makes the simulated
// processor decline every refund to it.
func (s *Store) SavePaymentMethod(ctx context.Context, m backend.PaymentMethod, declineRefunds bool) error {
	return s.WithTx(ctx, func(tx *TxStore) error { return tx.SavePaymentMethod(ctx, m, declineRefunds) })
}

func (t *TxStore) SavePaymentMethod(ctx context.Context, m backend.PaymentMethod, declineRefunds bool) error {
	if m.ID == "" {
		return core.Invalid("payment_method.id", "is required")
	}
	_, err := t.exec(ctx, `
		INSERT INTO payment_methods (id, brand, last4, payment_date, decline_refunds)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			brand = excluded.brand,
			last4 = excluded.last4,
			payment_date = excluded.payment_date,
			decline_refunds = excluded.decline_refunds
	`, m.ID, m.Brand, m.Last4, nullString(m.PaymentDate), boolInt(declineRefunds))
	return err
}

// =============================================================================
// PAYMENT INTENTS
// =============================================================================

// GetPaymentIntent returns an intent with its charges in capture order.
func (s *Store) GetPaymentIntent(ctx context.Context, id string) (*backend.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT charge_id FROM payment_intent_charges WHERE intent_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intent := &backend.PaymentIntent{ID: id}
	for rows.Next() {
		var c backend.PaymentCharge
		if err := rows.Scan(&c.ID); err != nil {
			return nil, err
		}
		intent.Charges = append(intent.Charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(intent.Charges) == 0 {
		return nil, &core.NotFoundError{Kind: "payment intent", ID: id}
	}
	return intent, nil
}

// SavePaymentIntent replaces an intent's charge list.
func (s *Store) SavePaymentIntent(ctx context.Context, intent backend.PaymentIntent) error {
	return s.WithTx(ctx, func(tx *TxStore) error { return tx.SavePaymentIntent(ctx, intent) })
}

func (t *TxStore) SavePaymentIntent(ctx context.Context, intent backend.PaymentIntent) error {
	if intent.ID == "" {
		return core.Invalid("payment_intent.id", "is required")
	}
	if _, err := t.exec(ctx, `DELETE FROM payment_intent_charges WHERE intent_id = ?`, intent.ID); err != nil {
		return err
	}
	for i, c := range intent.Charges {
		if _, err := t.exec(ctx, `
			INSERT INTO payment_intent_charges (intent_id, charge_id, position) VALUES (?, ?, ?)
		`, intent.ID, c.ID, i); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SIMULATED PROCESSOR
// =============================================================================

// RequestRefund behaves like a card processor: it declines refunds to cards
// flagged to decline, refunds that name neither a charge nor an intent, and
// refunds that would exceed what was captured on the original transaction.
// Declines are reported in the response, not as errors.
func (s *Store) RequestRefund(ctx context.Context, req backend.RefundRequest) (backend.RefundResponse, error) {
	if !req.Amount.IsPositive() {
		return backend.RefundResponse{}, core.Invalid("amount", "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ChargeID == "" && req.PaymentIntentID == "" {
		return decline("no charge or payment intent to refund"), nil
	}

	original, err := s.getTransaction(ctx, req.OriginalTransactionID)
	if core.IsNotFound(err) {
		return decline("unknown original transaction"), nil
	}
	if err != nil {
		return backend.RefundResponse{}, err
	}

	methodID := req.PaymentMethodID
	if methodID == "" {
		methodID = original.PaymentMethodID
	}
	var declines int
	err = s.db.QueryRowContext(ctx, `SELECT decline_refunds FROM payment_methods WHERE id = ?`, methodID).Scan(&declines)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return backend.RefundResponse{}, err
	}
	if declines != 0 {
		return decline("card issuer declined the refund"), nil
	}

	refunded, err := s.processorRefunded(ctx, original.ID)
	if err != nil {
		return backend.RefundResponse{}, err
	}
	if refunded.Add(req.Amount).GreaterThan(original.Amount) {
		return decline(fmt.Sprintf("amount exceeds refundable balance of %s", original.Amount.Sub(refunded).StringFixed(2))), nil
	}

	id := "re_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processor_refunds (id, original_transaction_id, charge_id, payment_intent_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, original.ID, nullString(req.ChargeID), nullString(req.PaymentIntentID), req.Amount.String(), s.now())
	if err != nil {
		return backend.RefundResponse{}, fmt.Errorf("record processor refund: %w", err)
	}

	return backend.RefundResponse{Success: true, ID: id}, nil
}

// ProcessorRefunded returns what the processor has refunded against a
// transaction.
func (s *Store) ProcessorRefunded(ctx context.Context, originalTransactionID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processorRefunded(ctx, originalTransactionID)
}

func (s *Store) processorRefunded(ctx context.Context, originalTransactionID string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount FROM processor_refunds WHERE original_transaction_id = ?
	`, originalTransactionID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(parseDecimal(amount))
	}
	return total, rows.Err()
}

func decline(msg string) backend.RefundResponse {
	return backend.RefundResponse{Success: false, Message: msg}
}

// =============================================================================
// VOUCHERS
// =============================================================================

const voucherAttempts = 3

// GenerateVoucher issues store credit with a random code.
func (s *Store) GenerateVoucher(ctx context.Context, req backend.VoucherRequest) (backend.Voucher, error) {
	if !req.Amount.IsPositive() {
		return backend.Voucher{}, core.Invalid("amount", "must be positive")
	}
	if req.OriginReservationID == "" {
		return backend.Voucher{}, core.Invalid("origin_reservation_id", "is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < voucherAttempts; attempt++ {
		code, err := voucherCode()
		if err != nil {
			return backend.Voucher{}, err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO vouchers (code, amount, origin_reservation_id, created_at) VALUES (?, ?, ?, ?)
		`, code, req.Amount.String(), req.OriginReservationID, s.now())
		if isUniqueConstraintError(err) {
			continue
		}
		if err != nil {
			return backend.Voucher{}, fmt.Errorf("insert voucher: %w", err)
		}
		return backend.Voucher{Code: code, Amount: req.Amount, OriginReservationID: req.OriginReservationID}, nil
	}
	return backend.Voucher{}, fmt.Errorf("could not allocate a unique voucher code after %d attempts", voucherAttempts)
}

// ListVouchers returns vouchers issued from a reservation.
func (s *Store) ListVouchers(ctx context.Context, originReservationID string) ([]backend.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, amount, origin_reservation_id FROM vouchers
		WHERE origin_reservation_id = ? ORDER BY created_at ASC, rowid ASC
	`, originReservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []backend.Voucher
	for rows.Next() {
		var v backend.Voucher
		var amount string
		if err := rows.Scan(&v.Code, &amount, &v.OriginReservationID); err != nil {
			return nil, err
		}
		v.Amount = parseDecimal(amount)
		result = append(result, v)
	}
	return result, rows.Err()
}

// voucherCode returns a code like "SC-1A2B-3C4D-5E6F".
func voucherCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate voucher code: %w", err)
	}
	h := strings.ToUpper(hex.EncodeToString(b))
	return "SC-" + h[0:4] + "-" + h[4:8] + "-" + h[8:12], nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
