/*
types.go - Core types for the billing ledger engine

PURPOSE:
  Defines the documents the engine mutates: accounts (customers and
  suppliers), ledger transactions, inventory items, invoices, purchase
  invoices and payments. Money is always decimal.Decimal.

KEY CONCEPTS:
  Account:       A customer or supplier with an opening balance and a cached
                 running balance (CurrentBalance).
  Transaction:   One signed entry in an account's ledger. Signs are derived
                 from the type, never from the stored amount.
  BalanceAfter:  Snapshot of the running balance right after the entry.
  Reversal:      A reversal_<type> entry that cancels an original entry.

SIGN CONVENTION:
  invoice, opening_balance    +amount  (the account owes more)
  payment, credit_note        -amount
  reversal_<type>             -signed(<type>)

SEE ALSO:
  - ledger.go: Record / Reverse / UndoReversal
  - balance.go: Replay and balance helpers
*/
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountKind distinguishes customer ledgers from supplier (vendor) ledgers.
type AccountKind string

const (
	AccountCustomer AccountKind = "customer"
	AccountSupplier AccountKind = "supplier"
)

func (k AccountKind) Valid() bool {
	return k == AccountCustomer || k == AccountSupplier
}

// BalanceType is the sign of an account's running balance.
type BalanceType string

const (
	BalanceCredit BalanceType = "credit"
	BalanceDebit  BalanceType = "debit"
)

// Account is the ledger view of a customer or supplier.
type Account struct {
	ID        string
	Kind      AccountKind
	CompanyID string
	UserID    string

	Name  string
	Email string
	Phone string
	City  string

	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	BalanceType    BalanceType
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionID string

type TransactionType string

const (
	TxInvoice        TransactionType = "invoice"
	TxPayment        TransactionType = "payment"
	TxCreditNote     TransactionType = "credit_note"
	TxOpeningBalance TransactionType = "opening_balance"

	TxReversalPayment        TransactionType = "reversal_payment"
	TxReversalInvoice        TransactionType = "reversal_invoice"
	TxReversalCreditNote     TransactionType = "reversal_credit_note"
	TxReversalOpeningBalance TransactionType = "reversal_opening_balance"
)

const reversalPrefix = "reversal_"

// IsReversal reports whether the type is a reversal_<type> entry.
func (t TransactionType) IsReversal() bool {
	return strings.HasPrefix(string(t), reversalPrefix)
}

// Base returns the type a reversal cancels, or t itself.
func (t TransactionType) Base() TransactionType {
	return TransactionType(strings.TrimPrefix(string(t), reversalPrefix))
}

// ReversalType returns the reversal_<type> counterpart.
func (t TransactionType) ReversalType() TransactionType {
	return TransactionType(reversalPrefix + string(t))
}

// Recordable reports whether the type may be appended directly.
// Reversal entries are only produced by ReverseTransaction.
func (t TransactionType) Recordable() bool {
	switch t {
	case TxInvoice, TxPayment, TxCreditNote, TxOpeningBalance:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t.Recordable() || (t.IsReversal() && t.Base().Recordable())
}

// PaymentMode is how a payment was settled.
type PaymentMode string

const (
	ModeCash   PaymentMode = "cash"
	ModeCheque PaymentMode = "cheque"
	ModeRTGS   PaymentMode = "rtgs"
	ModeNEFT   PaymentMode = "neft"
	ModeUPI    PaymentMode = "upi"
	ModeOther  PaymentMode = "other"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case ModeCash, ModeCheque, ModeRTGS, ModeNEFT, ModeUPI, ModeOther:
		return true
	}
	return false
}

// Transaction is one ledger entry.
type Transaction struct {
	ID          TransactionID
	Seq         int64
	AccountKind AccountKind
	AccountID   string
	CompanyID   string
	UserID      string

	Type       TransactionType
	Amount     decimal.Decimal
	Mode       PaymentMode
	Reference  string
	InvoiceRef string
	Date       time.Time

	// Document marks an entry posted by an invoice, purchase or invoice
	// payment. InvoiceRef is then that document's id.
	Document bool

	BalanceAfter decimal.Decimal

	Reversed      bool
	ReversalTxnID TransactionID
	OriginalTxnID TransactionID

	CreatedAt time.Time
}

// Active reports whether the entry still counts toward the balance on its own:
// it is neither a reversal nor reversed.
func (t Transaction) Active() bool {
	return !t.Reversed && !t.Type.IsReversal()
}

// =============================================================================
// INVENTORY
// =============================================================================

// Item is a stock-keeping unit scoped to a company.
type Item struct {
	ID          string
	CompanyID   string
	UserID      string
	Name        string
	Unit        string
	HSNCode     string
	Barcode     string
	Description string

	SellingPrice     decimal.Decimal
	Quantity         int64
	PurchaseQuantity int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
)

func (s InvoiceStatus) Valid() bool {
	return s == InvoiceUnpaid || s == InvoicePartial || s == InvoicePaid
}

type InvoiceLine struct {
	ItemID       string
	Quantity     int64
	SellingPrice decimal.Decimal
}

type Invoice struct {
	ID            string
	CompanyID     string
	UserID        string
	CustomerID    string
	InvoiceNumber int64

	InvoiceDate time.Time
	DueDate     time.Time
	OrderNumber string
	Salesperson string

	Lines    []InvoiceLine
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	CGST     decimal.Decimal
	SGST     decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	Status           InvoiceStatus
	PaidAmount       decimal.Decimal
	RemainingBalance decimal.Decimal
	PaymentMethod    string
	PaymentDetails   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment records money received against an invoice. LedgerTxnID points at
// the payment entry appended to the customer's ledger.
type Payment struct {
	ID             string
	InvoiceID      string
	CustomerID     string
	CompanyID      string
	UserID         string
	Amount         decimal.Decimal
	Method         string
	PaymentDate    time.Time
	TransactionRef string
	LedgerTxnID    TransactionID
	CreatedAt      time.Time
}

// =============================================================================
// PURCHASES
// =============================================================================

type PurchaseStatus string

const (
	PurchasePaid          PurchaseStatus = "paid"
	PurchaseNotPaid       PurchaseStatus = "not paid"
	PurchasePending       PurchaseStatus = "pending"
	PurchasePartiallyPaid PurchaseStatus = "partially paid"
	PurchaseCanceled      PurchaseStatus = "canceled"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchasePaid, PurchaseNotPaid, PurchasePending, PurchasePartiallyPaid, PurchaseCanceled:
		return true
	}
	return false
}

type PurchaseLine struct {
	ProductID  string
	Quantity   int64
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

type PurchaseInvoice struct {
	ID                  string
	CompanyID           string
	UserID              string
	SupplierID          string
	SupplierName        string
	InvoiceNumber       string
	PurchaseOrderNumber string

	PurchaseDate time.Time
	DueDate      time.Time
	Lines        []PurchaseLine
	Status       PurchaseStatus
	TotalAmount  decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}
