package ledger

import "context"

// =============================================================================
// STORE - Persistence contract for payment transactions
// =============================================================================

// Store persists payment transactions. There is no Delete: records are only
// status-transitioned.
type Store interface {
	// ListPaymentTransactions returns a reservation's transactions in creation order. When
	// statuses are given, only transactions in one of them are returned.
	ListPaymentTransactions(ctx context.Context, reservationID string, statuses ...Status) ([]PaymentTransaction, error)

	// CreatePaymentTransaction persists a new transaction and returns it as stored.
	CreatePaymentTransaction(ctx context.Context, tx PaymentTransaction) (PaymentTransaction, error)

	// UpdatePaymentTransaction applies a patch and returns the updated transaction.
	UpdatePaymentTransaction(ctx context.Context, id string, patch Patch) (PaymentTransaction, error)
}

// MatchesStatus reports whether s is one of statuses. No statuses matches all.
func MatchesStatus(s Status, statuses []Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
