// Package memory provides an in-memory ledger.Store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[string][]ledger.PaymentTransaction // by reservation
	byID         map[string]string                      // tx id -> reservation id

	// Now stamps CreatedAt on transactions created without one.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[string][]ledger.PaymentTransaction),
		byID:         make(map[string]string),
		Now:          time.Now,
	}
}

// Seed inserts transactions as-is, keeping their ids and timestamps.
func (m *Memory) Seed(txs ...ledger.PaymentTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.insertLocked(tx)
	}
}

func (m *Memory) ListPaymentTransactions(_ context.Context, reservationID string, statuses ...ledger.Status) ([]ledger.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.PaymentTransaction
	for _, tx := range m.transactions[reservationID] {
		if ledger.MatchesStatus(tx.Status, statuses) {
			result = append(result, copyTx(tx))
		}
	}
	return result, nil
}

func (m *Memory) CreatePaymentTransaction(_ context.Context, tx ledger.PaymentTransaction) (ledger.PaymentTransaction, error) {
	if tx.ReservationID == "" {
		return ledger.PaymentTransaction{}, core.Invalid("reservation_id", "required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = m.Now().UTC()
	}
	m.insertLocked(tx)
	return copyTx(tx), nil
}

func (m *Memory) UpdatePaymentTransaction(_ context.Context, id string, patch ledger.Patch) (ledger.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resID, ok := m.byID[id]
	if !ok {
		return ledger.PaymentTransaction{}, &core.NotFoundError{Kind: "payment transaction", ID: id}
	}
	txs := m.transactions[resID]
	for i := range txs {
		if txs[i].ID == id {
			txs[i] = patch.Apply(txs[i])
			return copyTx(txs[i]), nil
		}
	}
	return ledger.PaymentTransaction{}, &core.NotFoundError{Kind: "payment transaction", ID: id}
}

// insertLocked keeps each reservation's slice ordered by CreatedAt.
func (m *Memory) insertLocked(tx ledger.PaymentTransaction) {
	txs := m.transactions[tx.ReservationID]

	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].CreatedAt.After(tx.CreatedAt)
	})

	txs = append(txs, ledger.PaymentTransaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[tx.ReservationID] = txs
	m.byID[tx.ID] = tx.ReservationID
}

func copyTx(tx ledger.PaymentTransaction) ledger.PaymentTransaction {
	if tx.Metadata != nil {
		md := make(map[string]string, len(tx.Metadata))
		for k, v := range tx.Metadata {
			md[k] = v
		}
		tx.Metadata = md
	}
	return tx
}
