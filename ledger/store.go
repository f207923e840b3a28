/*
store.go - Persistence ports for the ledger engine

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never talks to SQL directly; it asks a UnitOfWork for a transactional
  Store and performs every read and write of an operation through it.

KEY INTERFACES:
  AccountStore:     Customer/supplier ledger view + cached balance writes
  TransactionStore: Ledger entries (append, reversal links, delete on undo)
  InventoryStore:   Item stock reads and writes
  DocumentStore:    Invoices, purchase invoices, payments
  SequenceStore:    Per-(user, company) invoice number counters
  UnitOfWork:       Store + WithTx for atomic multi-document units

LOOKUPS:
  Get* methods return (nil, nil) when the document does not exist. The
  engine turns that into a NotFoundError with context.

ATOMICITY:
  WithTx runs fn against a Store bound to one database transaction. If fn
  returns an error nothing it wrote is visible afterwards. Implementations
  must route every call made on the inner Store through that transaction.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - ledger/store/memory.go: In-memory for testing
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTERS
// =============================================================================

// TransactionFilter selects ledger entries. Zero values mean "any".
// Results are ordered by insertion (Seq) ascending.
type TransactionFilter struct {
	AccountKind AccountKind
	AccountID   string
	CompanyID   string
	UserID      string
	Types       []TransactionType
	From        time.Time // CreatedAt >= From
	To          time.Time // CreatedAt < To
	Offset      int
	Limit       int
}

// InvoiceFilter selects invoices. Results are ordered by due date, then
// invoice number, unless NewestFirst is set (creation time descending).
type InvoiceFilter struct {
	CompanyID     string
	UserID        string
	CustomerID    string
	Statuses      []InvoiceStatus
	DueBefore     time.Time
	CreatedFrom   time.Time
	CreatedTo     time.Time
	InvoiceNumber int64
	NewestFirst   bool
	Offset        int
	Limit         int
}

// =============================================================================
// STORE PORTS
// =============================================================================

type AccountStore interface {
	GetAccount(ctx context.Context, kind AccountKind, id string) (*Account, error)
	ListAccounts(ctx context.Context, kind AccountKind, companyID string) ([]Account, error)
	SetAccountBalance(ctx context.Context, kind AccountKind, id string, balance decimal.Decimal, bt BalanceType) error
	SetOpeningBalance(ctx context.Context, kind AccountKind, id string, opening decimal.Decimal) error
}

type TransactionStore interface {
	AppendTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// LatestTransaction returns the entry with the highest Seq for the account.
	LatestTransaction(ctx context.Context, kind AccountKind, accountID, companyID string) (*Transaction, error)

	// FindDocumentTransaction returns the most recent entry of type txType
	// whose InvoiceRef is ref.
	FindDocumentTransaction(ctx context.Context, kind AccountKind, ref string, txType TransactionType) (*Transaction, error)

	MarkReversed(ctx context.Context, id, reversalID TransactionID) error
	ClearReversal(ctx context.Context, id TransactionID) error
	DeleteTransaction(ctx context.Context, id TransactionID) error

	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
	CountTransactions(ctx context.Context, f TransactionFilter) (int, error)
}

type InventoryStore interface {
	GetItem(ctx context.Context, id string) (*Item, error)
	SetItemStock(ctx context.Context, id string, quantity, purchaseQuantity int64) error
}

type DocumentStore interface {
	CreateInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	DeleteInvoice(ctx context.Context, id string) error
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error)
	CountInvoices(ctx context.Context, f InvoiceFilter) (int, error)

	CreatePurchase(ctx context.Context, p PurchaseInvoice) error
	GetPurchase(ctx context.Context, id string) (*PurchaseInvoice, error)
	UpdatePurchase(ctx context.Context, p PurchaseInvoice) error
	DeletePurchase(ctx context.Context, id string) error

	CreatePayment(ctx context.Context, p Payment) error
}

type SequenceStore interface {
	// NextSequence atomically increments and returns the counter, creating it
	// at 1 on first use.
	NextSequence(ctx context.Context, userID, companyID string) (int64, error)

	// CurrentSequence returns the last issued value, 0 if none.
	CurrentSequence(ctx context.Context, userID, companyID string) (int64, error)
}

// Store is everything the engine reads and writes.
type Store interface {
	AccountStore
	TransactionStore
	InventoryStore
	DocumentStore
	SequenceStore
}

// UnitOfWork is a Store that can open atomic units.
type UnitOfWork interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// LOCKER - Optional cross-process serialization per account
// =============================================================================

// Locker serializes mutations of one account across processes. The database
// transaction already guarantees atomicity; the lock keeps replicas from
// computing running balances from the same stale latest entry.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NopLocker never blocks.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

func accountLockKey(kind AccountKind, id string) string {
	return "ledger:" + string(kind) + ":" + id
}
