/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.UnitOfWork (accounts, ledger transactions, items,
  invoices, purchases, payments, sequence counters) plus the plain CRUD
  records the API needs (users, companies, banks, contacts, expenses).

INTERFACES IMPLEMENTED:
  ledger.Store:      Everything the engine reads and writes
  ledger.UnitOfWork: WithTx for atomic multi-document units

KEY TABLES:
  accounts:            Customers and suppliers (kind column) with cached balance
  ledger_transactions: Ledger entries, seq gives insertion order
  items:               Inventory, quantity CHECK >= 0
  invoices:            UNIQUE(company_id, user_id, invoice_number)
  purchases:           Purchase invoices, lines stored as JSON
  payments:            Payments against invoices
  sequence_counters:   One row per (user_id, company_id)

INDEXES:
  - idx_ledger_account_seq: latest entry and statements (hot path)
  - idx_ledger_document: document entry lookups on delete/update
  - idx_ledger_one_reversal: at most one reversal row per original

CONCURRENCY:
  The pool is capped at one connection. Writers are serialized by SQLite
  anyway, and a single connection keeps ":memory:" databases shared. Every
  call made on the Store handed to WithTx goes through the *sql.Tx, so a
  unit never waits on itself.

FORMATS:
  Money is stored as decimal TEXT. Timestamps are UTC TEXT in a fixed
  microsecond layout so lexical order equals time order.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
  - records.go: CRUD for the supporting entities
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/billing-engine/ledger"
)

// timeLayout sorts lexically in time order when every value is UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every read and write. Store runs them on the pool, WithTx
// runs them on a transaction.
type queries struct {
	q querier
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	queries
	db *sql.DB
}

var _ ledger.UnitOfWork = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{queries: queries{q: db}, db: db}
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

// Ping checks the connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip TEXT NOT NULL DEFAULT '',
		contact_number TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		gst_number TEXT NOT NULL DEFAULT '',
		logo_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_companies_user ON companies(user_id);

	CREATE TABLE IF NOT EXISTS banks (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		account_name TEXT NOT NULL,
		account_number TEXT NOT NULL UNIQUE,
		ifsc_code TEXT NOT NULL,
		bank_name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_banks_company ON banks(company_id);

	-- Customers and suppliers share one table; ids are unique per kind
	CREATE TABLE IF NOT EXISTS accounts (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip TEXT NOT NULL DEFAULT '',
		gst TEXT NOT NULL DEFAULT '',
		opening_balance TEXT NOT NULL DEFAULT '0',
		current_balance TEXT NOT NULL DEFAULT '0',
		balance_type TEXT NOT NULL DEFAULT 'credit',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_company ON accounts(kind, company_id);

	CREATE TABLE IF NOT EXISTS ledger_transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		account_kind TEXT NOT NULL,
		account_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		invoice_ref TEXT,
		document INTEGER NOT NULL DEFAULT 0,
		tx_date TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reversed INTEGER NOT NULL DEFAULT 0,
		reversal_txn_id TEXT,
		original_txn_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Latest entry per account and statements (hot path)
	CREATE INDEX IF NOT EXISTS idx_ledger_account_seq
		ON ledger_transactions(account_kind, account_id, company_id, seq);

	CREATE INDEX IF NOT EXISTS idx_ledger_document
		ON ledger_transactions(account_kind, invoice_ref, tx_type)
		WHERE invoice_ref IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_ledger_company_type
		ON ledger_transactions(company_id, tx_type, created_at);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_one_reversal
		ON ledger_transactions(original_txn_id)
		WHERE original_txn_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		hsn_code TEXT NOT NULL DEFAULT '',
		barcode TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		selling_price TEXT NOT NULL DEFAULT '0',
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		purchase_quantity INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_company ON items(company_id, name);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		invoice_number INTEGER NOT NULL,
		invoice_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		order_number TEXT NOT NULL DEFAULT '',
		salesperson TEXT NOT NULL DEFAULT '',
		lines_json TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		discount TEXT NOT NULL,
		cgst TEXT NOT NULL,
		sgst TEXT NOT NULL,
		tax TEXT NOT NULL,
		total TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		payment_details TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (company_id, user_id, invoice_number)
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_company_status
		ON invoices(company_id, status, due_date);
	CREATE INDEX IF NOT EXISTS idx_invoices_customer
		ON invoices(customer_id);

	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		supplier_id TEXT NOT NULL,
		supplier_name TEXT NOT NULL DEFAULT '',
		invoice_number TEXT NOT NULL DEFAULT '',
		purchase_order_number TEXT NOT NULL DEFAULT '',
		purchase_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		lines_json TEXT NOT NULL,
		status TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_company ON purchases(company_id, purchase_date);
	CREATE INDEX IF NOT EXISTS idx_purchases_supplier ON purchases(supplier_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		transaction_ref TEXT NOT NULL DEFAULT '',
		ledger_txn_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id);

	CREATE TABLE IF NOT EXISTS sequence_counters (
		user_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		sequence_value INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, company_id)
	);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		expense_date TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_company ON expenses(company_id, expense_date);

	CREATE TABLE IF NOT EXISTS expense_categories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (user_id, name)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.UnitOfWork interface)
// =============================================================================

// WithTx executes fn within a database transaction. The Store passed to fn
// must be used for every read and write of the unit.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset removes all data. Used by the demo seed.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"ledger_transactions", "payments", "invoices", "purchases", "items",
		"accounts", "sequence_counters", "expenses", "expense_categories",
		"banks", "companies", "users",
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range tables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	// AUTOINCREMENT keeps its counter in sqlite_sequence.
	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'ledger_transactions'"); err != nil {
		return fmt.Errorf("failed to reset ledger sequence: %w", err)
	}
	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// affected returns ledger.ErrNotFound when an UPDATE or DELETE matched no row.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
