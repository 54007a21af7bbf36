package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
)

// =============================================================================
// PAYMENT TRANSACTIONS (ledger.Store)
// =============================================================================

const transactionColumns = `id, reservation_id, tenant_id, amount, direction, status,
	payment_method_id, parent_transaction_id, charge_id, payment_intent_id,
	available_refund_amount, metadata_json, created_at`

// ListPaymentTransactions returns a reservation's transactions in creation
// order, optionally filtered to the given statuses.
func (s *Store) ListPaymentTransactions(ctx context.Context, reservationID string, statuses ...ledger.Status) ([]ledger.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE reservation_id = ?`
	args := []any{reservationID}
	if len(statuses) > 0 {
		marks := make([]string, len(statuses))
		for i, st := range statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		query += ` AND status IN (` + strings.Join(marks, ",") + `)`
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	return s.queryTransactions(ctx, query, args...)
}

// CreatePaymentTransaction inserts tx, assigning ID and CreatedAt when empty.
func (s *Store) CreatePaymentTransaction(ctx context.Context, tx ledger.PaymentTransaction) (ledger.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTransaction(ctx, s.db, tx)
}

// UpdatePaymentTransaction applies a status and metadata patch.
func (s *Store) UpdatePaymentTransaction(ctx context.Context, id string, patch ledger.Patch) (ledger.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getTransaction(ctx, id)
	if err != nil {
		return ledger.PaymentTransaction{}, err
	}

	updated := patch.Apply(*current)
	meta, err := marshalMetadata(updated.Metadata)
	if err != nil {
		return ledger.PaymentTransaction{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE payment_transactions SET status = ?, metadata_json = ? WHERE id = ?
	`, string(updated.Status), meta, id)
	if err != nil {
		return ledger.PaymentTransaction{}, fmt.Errorf("update payment transaction %s: %w", id, err)
	}
	return updated, nil
}

// CreatePaymentTransaction inserts tx inside the enclosing database
// transaction.
func (t *TxStore) CreatePaymentTransaction(ctx context.Context, tx ledger.PaymentTransaction) (ledger.PaymentTransaction, error) {
	return t.parent.insertTransaction(ctx, t.tx, tx)
}

func (s *Store) insertTransaction(ctx context.Context, db execer, tx ledger.PaymentTransaction) (ledger.PaymentTransaction, error) {
	if tx.ReservationID == "" {
		return ledger.PaymentTransaction{}, core.Invalid("reservation_id", "is required")
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.Now()
	}

	meta, err := marshalMetadata(tx.Metadata)
	if err != nil {
		return ledger.PaymentTransaction{}, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO payment_transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.ReservationID,
		nullString(tx.TenantID),
		tx.Amount.String(),
		string(tx.Direction),
		string(tx.Status),
		nullString(tx.PaymentMethodID),
		nullString(tx.ParentTransactionID),
		nullString(tx.ChargeID),
		nullString(tx.PaymentIntentID),
		nullDecimal(tx.AvailableRefundAmount),
		meta,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.PaymentTransaction{}, core.Invalid("id", "transaction %s already exists", tx.ID)
		}
		return ledger.PaymentTransaction{}, fmt.Errorf("insert payment transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) getTransaction(ctx context.Context, id string) (*ledger.PaymentTransaction, error) {
	txs, err := s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, &core.NotFoundError{Kind: "payment transaction", ID: id}
	}
	return &txs[0], nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.PaymentTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.PaymentTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tx)
	}
	return result, rows.Err()
}

func scanTransaction(rows *sql.Rows) (*ledger.PaymentTransaction, error) {
	var tx ledger.PaymentTransaction
	var tenantID, methodID, parentID, chargeID, intentID, available, meta sql.NullString
	var amount, direction, status, createdAt string

	err := rows.Scan(
		&tx.ID,
		&tx.ReservationID,
		&tenantID,
		&amount,
		&direction,
		&status,
		&methodID,
		&parentID,
		&chargeID,
		&intentID,
		&available,
		&meta,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	tx.TenantID = tenantID.String
	tx.Amount = parseDecimal(amount)
	tx.Direction = ledger.Direction(direction)
	tx.Status = ledger.Status(status)
	tx.PaymentMethodID = methodID.String
	tx.ParentTransactionID = parentID.String
	tx.ChargeID = chargeID.String
	tx.PaymentIntentID = intentID.String
	tx.CreatedAt = parseTime(createdAt)
	if available.Valid {
		d := parseDecimal(available.String)
		tx.AvailableRefundAmount = &d
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &tx.Metadata); err != nil {
			return nil, fmt.Errorf("transaction %s metadata: %w", tx.ID, err)
		}
	}

	return &tx, nil
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
