/*
Package ledger is the read-model over a reservation's payment transactions.

PURPOSE:
  Ingests charges and refunds (possibly across several payment cards) and
  derives, per charge, how much has already been refunded and how much can
  still be refunded. Also aggregates per-card totals and the pending balance.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentTransaction: one charge or refund record as the backend stores it
  - Direction / Status: what the record does and where it is in its life
  - Entry: a charge with its derived refunded / refundable amounts

CRITICAL INVARIANTS:
  1. NEVER DELETED: transactions are only status-transitioned
  2. For every charge:
       refundable = max(0, amount - sum(completed refunds whose parent is the charge))
  3. The ledger never changes prices; pricing never reads the ledger

SEE ALSO:
  - ledger.go: Build and the derived figures
  - cards.go: Per-card grouping
  - store.go: Persistence contract for transactions
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION
// =============================================================================

type Direction string

const (
	DirectionCharge Direction = "charge"
	DirectionRefund Direction = "refund"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusPaid      Status = "paid"
	StatusArchived  Status = "archived"
)

// Settled reports whether money actually moved for a record in this status.
func (s Status) Settled() bool {
	return s == StatusCompleted || s == StatusPaid
}

// Metadata keys written and read by the engine.
const (
	MetaChargeID        = "charge_id"
	MetaPaymentIntentID = "payment_intent_id"
	MetaRefundID        = "refund_id"
	MetaFullRefund      = "full_refund"
	MetaPartialRefund   = "partial_refund"
	MetaRefundMethod    = "refund_method"
	MetaBalanceDue      = "balance_due"
	MetaSourceRefund    = "source_refund_transaction_id"
	MetaReason          = "reason"
	MetaOutstanding     = "outstanding_refund"
)

// PaymentTransaction is one charge or refund record.
type PaymentTransaction struct {
	ID                  string          `json:"id"`
	ReservationID       string          `json:"reservation_id"`
	TenantID            string          `json:"tenant_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Direction           Direction       `json:"direction"`
	Status              Status          `json:"status"`
	PaymentMethodID     string          `json:"payment_method_id,omitempty"`
	ParentTransactionID string          `json:"parent_transaction_id,omitempty"`
	ChargeID            string          `json:"charge_id,omitempty"`
	PaymentIntentID     string          `json:"payment_intent_id,omitempty"`

	// AvailableRefundAmount is set when the backend already computed what
	// remains refundable on this charge.
	AvailableRefundAmount *decimal.Decimal `json:"available_refund_amount,omitempty"`

	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (t PaymentTransaction) IsCharge() bool { return t.Direction == DirectionCharge }
func (t PaymentTransaction) IsRefund() bool { return t.Direction == DirectionRefund }

// Meta returns a metadata value or "".
func (t PaymentTransaction) Meta(key string) string {
	if t.Metadata == nil {
		return ""
	}
	return t.Metadata[key]
}

// Patch is a partial update of a transaction. Only status and metadata are
// ever changed after creation.
type Patch struct {
	Status   *Status           `json:"status,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Apply returns t with the patch applied. Metadata keys are merged.
func (p Patch) Apply(t PaymentTransaction) PaymentTransaction {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if len(p.Metadata) > 0 {
		merged := make(map[string]string, len(t.Metadata)+len(p.Metadata))
		for k, v := range t.Metadata {
			merged[k] = v
		}
		for k, v := range p.Metadata {
			merged[k] = v
		}
		t.Metadata = merged
	}
	return t
}

// =============================================================================
// ENTRY - A charge with derived refund figures
// =============================================================================

// Entry is a settled charge with what has been refunded from it so far.
type Entry struct {
	PaymentTransaction
	Refunded   decimal.Decimal `json:"refunded"`
	Refundable decimal.Decimal `json:"refundable"`
}

// FullyRefunded reports whether nothing is left to refund.
func (e Entry) FullyRefunded() bool {
	return !e.Refundable.IsPositive()
}
