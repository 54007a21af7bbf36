/*
Package sqlite provides a SQLite-backed implementation of the booking backend.

PURPOSE:
  Implements every collaborator contract the engine consumes (backend.Backend)
  against a local SQLite database, so the engine can run standalone: demos,
  integration tests, and offline tooling. In production the booking system's
  REST API (backend.Client) plays this role.

INTERFACES IMPLEMENTED:
  backend.Reservations:  Reservation records
  backend.Catalog:       Tours, tier policies, add-ons, custom line items
  ledger.Store:          Payment transactions
  backend.Payments:      Payment methods, intents, a simulated processor
  backend.Vouchers:      Store credit vouchers
  backend.Guides:        Guide assignments

NEVER DELETED:
  payment_transactions has no DELETE path. Records are created and then only
  status-transitioned (UpdatePaymentTransaction), and metadata is merged.

KEY TABLES:
  payment_transactions: Charges and refunds per reservation
  processor_refunds:    What the simulated processor has refunded
  tier_policies:        Tier pricing policies as JSON (see factory)
  reservations, tours, addons, reservation_addons, custom_line_items,
  payment_methods, payment_intent_charges, vouchers, guides,
  reservation_guides

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The allocator's sequential calls are
  each atomic; a whole allocation run is not.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/tours.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := booking.NewService(store, ...)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - backend/types.go: Contracts implemented here
  - backend/client.go: Remote implementation
  - ledger/memory: In-memory transaction store for unit tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/factory"
)

// Store implements backend.Backend using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	policies *factory.PolicyFactory

	// Now stamps created records.
	Now func() time.Time
}

var _ backend.Backend = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, policies: factory.NewPolicyFactory(), Now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Catalog
	CREATE TABLE IF NOT EXISTS tours (
		id TEXT PRIMARY KEY,
		tenant_id TEXT,
		name TEXT NOT NULL,
		base_price TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tier_policies (
		id TEXT PRIMARY KEY,
		tour_id TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tier_policies_tour
		ON tier_policies(tour_id);

	CREATE TABLE IF NOT EXISTS addons (
		id TEXT PRIMARY KEY,
		tour_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		price TEXT NOT NULL,
		position INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_addons_tour
		ON addons(tour_id, position);

	-- Reservations
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		tour_id TEXT NOT NULL,
		tenant_id TEXT,
		guest_quantity INTEGER NOT NULL,
		total_price TEXT NOT NULL,
		payment_method_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reservation_addons (
		reservation_id TEXT NOT NULL,
		addon_id TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (reservation_id, addon_id)
	);

	CREATE TABLE IF NOT EXISTS custom_line_items (
		id TEXT PRIMARY KEY,
		reservation_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_custom_line_items_reservation
		ON custom_line_items(reservation_id, created_at);

	-- Payment transactions (never deleted)
	CREATE TABLE IF NOT EXISTS payment_transactions (
		id TEXT PRIMARY KEY,
		reservation_id TEXT NOT NULL,
		tenant_id TEXT,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method_id TEXT,
		parent_transaction_id TEXT,
		charge_id TEXT,
		payment_intent_id TEXT,
		available_refund_amount TEXT,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: ledger for one reservation in creation order
	CREATE INDEX IF NOT EXISTS idx_payment_transactions_reservation
		ON payment_transactions(reservation_id, created_at);

	CREATE INDEX IF NOT EXISTS idx_payment_transactions_parent
		ON payment_transactions(parent_transaction_id) WHERE parent_transaction_id IS NOT NULL;

	-- Processor side
	CREATE TABLE IF NOT EXISTS payment_methods (
		id TEXT PRIMARY KEY,
		brand TEXT NOT NULL,
		last4 TEXT NOT NULL,
		payment_date TEXT,
		decline_refunds INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS payment_intent_charges (
		intent_id TEXT NOT NULL,
		charge_id TEXT NOT NULL,
		position INTEGER DEFAULT 0,
		PRIMARY KEY (intent_id, charge_id)
	);

	CREATE TABLE IF NOT EXISTS processor_refunds (
		id TEXT PRIMARY KEY,
		original_transaction_id TEXT NOT NULL,
		charge_id TEXT,
		payment_intent_id TEXT,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_processor_refunds_original
		ON processor_refunds(original_transaction_id);

	CREATE TABLE IF NOT EXISTS vouchers (
		code TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		origin_reservation_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Guides
	CREATE TABLE IF NOT EXISTS guides (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT
	);

	CREATE TABLE IF NOT EXISTS reservation_guides (
		reservation_id TEXT NOT NULL,
		guide_id TEXT NOT NULL,
		PRIMARY KEY (reservation_id, guide_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"payment_transactions", "processor_refunds", "vouchers",
		"reservation_guides", "guides", "custom_line_items", "reservation_addons",
		"reservations", "payment_intent_charges", "payment_methods",
		"addons", "tier_policies", "tours",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// WithTx executes fn within a database transaction. fn receives a Store
// view bound to the transaction; it must not call back into s.
func (s *Store) WithTx(ctx context.Context, fn func(tx *TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&TxStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// TxStore is the write side of Store inside WithTx.
type TxStore struct {
	tx     *sql.Tx
	parent *Store
}

// Helper functions

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) now() string {
	return formatTime(s.Now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	return core.MustParseDecimal(s)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
