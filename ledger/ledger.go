/*
ledger.go - Running-balance ledger per customer and supplier

PURPOSE:
  The Ledger appends signed entries to an account and keeps the account's
  cached balance equal to the ledger. Every write happens inside one unit
  of work: the entry and the balance land together or not at all.

CRITICAL INVARIANTS:
  1. currentBalance == openingBalance + Σ signed(active entries)
  2. An entry is reversed at most once; original.reversalTxnId and
     reversal.originalTxnId always point at each other
  3. A reversal entry cannot itself be reversed

RUNNING BALANCE:
  previous = balanceAfter of the account's latest entry, or the opening
  balance when the account has no entries yet. A latest balance of zero is
  a real balance.

STATE MACHINE (per original entry):
  Active --ReverseTransaction--> Reversed --UndoReversal--> Active

UNDO:
  UndoReversal deletes the reversal row. It is only allowed while the
  reversal is still the account's latest entry, so the restored balance
  is always the balance the ledger replays to. An invoice entry whose
  document was deleted or amended stays reversed. Reversing or restoring a
  payment entry tied to an invoice moves the invoice's paid amount with it.

EXAMPLE FLOW:
  opening 0
  invoice 500            balanceAfter 500
  payment 200            balanceAfter 300
  reversal_payment 200   balanceAfter 500   (payment.reversed = true)
  undo                   balance 300        (reversal row deleted)

SEE ALSO:
  - balance.go: Sign convention and replay
  - stock.go: Invoice creation appends through record()
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store  UnitOfWork
	Locker Locker
	Clock  Clock
}

func NewLedger(store UnitOfWork) *Ledger {
	return &Ledger{Store: store, Locker: NopLocker{}, Clock: SystemClock{}}
}

// RecordInput describes one entry to append.
type RecordInput struct {
	AccountKind AccountKind
	AccountID   string
	CompanyID   string
	UserID      string
	Type        TransactionType
	Amount      decimal.Decimal
	Mode        PaymentMode
	Reference   string
	InvoiceRef  string
	Date        time.Time

	document bool
}

func (in RecordInput) validate() error {
	if !in.AccountKind.Valid() {
		return invalid("accountKind", "must be customer or supplier")
	}
	if in.AccountID == "" {
		return invalid("accountId", "is required")
	}
	if in.CompanyID == "" {
		return invalid("selectedCompanyId", "is required")
	}
	if in.Type.IsReversal() {
		return invalid("type", "reversal entries are created by reversing a transaction")
	}
	if !in.Type.Recordable() {
		return invalid("type", "unsupported transaction type %q", in.Type)
	}
	if in.Type == TxOpeningBalance {
		if in.Amount.IsNegative() {
			return invalid("amount", "must not be negative")
		}
	} else if !in.Amount.IsPositive() {
		return invalid("amount", "must be greater than 0")
	}
	if in.Type == TxPayment && in.Mode == "" {
		return invalid("mode", "is required for payments")
	}
	if in.Mode != "" && !in.Mode.Valid() {
		return invalid("mode", "unsupported payment mode %q", in.Mode)
	}
	return nil
}

// RecordTransaction appends an entry and updates the account balance.
func (l *Ledger) RecordTransaction(ctx context.Context, in RecordInput) (*Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	unlock, err := l.lock(ctx, accountLockKey(in.AccountKind, in.AccountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *Transaction
	err = l.Store.WithTx(ctx, func(s Store) error {
		tx, err := l.record(ctx, s, in)
		out = tx
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// record appends inside an open unit. Input must already be validated.
func (l *Ledger) record(ctx context.Context, s Store, in RecordInput) (*Transaction, error) {
	acct, err := s.GetAccount(ctx, in.AccountKind, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", in.AccountKind, err)
	}
	if acct == nil {
		return nil, notFound(string(in.AccountKind), in.AccountID)
	}
	if acct.CompanyID != in.CompanyID {
		return nil, fmt.Errorf("%w: %s %s does not belong to company %s",
			ErrUnauthorized, in.AccountKind, in.AccountID, in.CompanyID)
	}

	previous, err := runningBalance(ctx, s, acct)
	if err != nil {
		return nil, err
	}
	balance := previous.Add(SignedAmount(in.Type, in.Amount))

	now := l.Clock.Now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	userID := in.UserID
	if userID == "" {
		userID = acct.UserID
	}

	tx, err := s.AppendTransaction(ctx, Transaction{
		ID:           TransactionID(newID()),
		AccountKind:  acct.Kind,
		AccountID:    acct.ID,
		CompanyID:    acct.CompanyID,
		UserID:       userID,
		Type:         in.Type,
		Amount:       in.Amount,
		Mode:         in.Mode,
		Reference:    in.Reference,
		InvoiceRef:   in.InvoiceRef,
		Date:         date,
		Document:     in.document,
		BalanceAfter: balance,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}
	if err := s.SetAccountBalance(ctx, acct.Kind, acct.ID, balance, BalanceTypeFor(balance)); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	return &tx, nil
}

// =============================================================================
// REVERSAL
// =============================================================================

type ReverseInput struct {
	TransactionID TransactionID
	CompanyID     string
	UserID        string
	Reference     string
}

// ReverseTransaction appends a reversal_<type> entry cancelling the original.
func (l *Ledger) ReverseTransaction(ctx context.Context, in ReverseInput) (*Transaction, error) {
	if in.TransactionID == "" {
		return nil, invalid("transactionId", "is required")
	}
	if in.CompanyID == "" {
		return nil, invalid("selectedCompanyId", "is required")
	}

	orig, err := l.Store.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if orig == nil {
		return nil, notFound("transaction", string(in.TransactionID))
	}

	unlock, err := l.lock(ctx, accountLockKey(orig.AccountKind, orig.AccountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *Transaction
	err = l.Store.WithTx(ctx, func(s Store) error {
		rev, err := l.reverse(ctx, s, in)
		out = rev
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) reverse(ctx context.Context, s Store, in ReverseInput) (*Transaction, error) {
	orig, err := s.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if orig == nil {
		return nil, notFound("transaction", string(in.TransactionID))
	}
	if orig.CompanyID != in.CompanyID {
		return nil, conflict("transaction %s belongs to another company", orig.ID)
	}
	if orig.Type.IsReversal() {
		return nil, conflict("transaction %s is a reversal and cannot be reversed", orig.ID)
	}
	if orig.Reversed {
		return nil, conflict("transaction %s is already reversed", orig.ID)
	}

	acct, err := s.GetAccount(ctx, orig.AccountKind, orig.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", orig.AccountKind, err)
	}
	if acct == nil {
		return nil, notFound(string(orig.AccountKind), orig.AccountID)
	}

	previous, err := runningBalance(ctx, s, acct)
	if err != nil {
		return nil, err
	}
	revType := orig.Type.ReversalType()
	balance := previous.Add(SignedAmount(revType, orig.Amount))

	reference := in.Reference
	if reference == "" {
		reference = "Reversal of " + describe(orig)
	}
	userID := in.UserID
	if userID == "" {
		userID = orig.UserID
	}
	now := l.Clock.Now()

	rev, err := s.AppendTransaction(ctx, Transaction{
		ID:            TransactionID(newID()),
		AccountKind:   orig.AccountKind,
		AccountID:     orig.AccountID,
		CompanyID:     orig.CompanyID,
		UserID:        userID,
		Type:          revType,
		Amount:        orig.Amount,
		Mode:          orig.Mode,
		Reference:     reference,
		InvoiceRef:    orig.InvoiceRef,
		Date:          now,
		Document:      orig.Document,
		BalanceAfter:  balance,
		OriginalTxnID: orig.ID,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("append reversal: %w", err)
	}
	if err := s.MarkReversed(ctx, orig.ID, rev.ID); err != nil {
		return nil, fmt.Errorf("mark reversed: %w", err)
	}
	if err := settleInvoicePayment(ctx, s, orig, orig.Amount.Neg(), now); err != nil {
		return nil, err
	}
	if err := s.SetAccountBalance(ctx, acct.Kind, acct.ID, balance, BalanceTypeFor(balance)); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	return &rev, nil
}

// =============================================================================
// UNDO REVERSAL
// =============================================================================

type UndoInput struct {
	ReversalTxnID TransactionID
	CompanyID     string
}

type UndoResult struct {
	AccountKind   AccountKind
	AccountID     string
	OriginalTxnID TransactionID
	Balance       decimal.Decimal
	BalanceType   BalanceType
}

// UndoReversal deletes a reversal entry and reactivates its original.
func (l *Ledger) UndoReversal(ctx context.Context, in UndoInput) (*UndoResult, error) {
	if in.ReversalTxnID == "" {
		return nil, invalid("id", "is required")
	}
	if in.CompanyID == "" {
		return nil, invalid("selectedCompanyId", "is required")
	}

	rev, err := l.Store.GetTransaction(ctx, in.ReversalTxnID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if rev == nil {
		return nil, notFound("transaction", string(in.ReversalTxnID))
	}

	unlock, err := l.lock(ctx, accountLockKey(rev.AccountKind, rev.AccountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *UndoResult
	err = l.Store.WithTx(ctx, func(s Store) error {
		res, err := l.undo(ctx, s, in)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) undo(ctx context.Context, s Store, in UndoInput) (*UndoResult, error) {
	rev, err := s.GetTransaction(ctx, in.ReversalTxnID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if rev == nil {
		return nil, notFound("transaction", string(in.ReversalTxnID))
	}
	if !rev.Type.IsReversal() {
		return nil, invalid("id", "transaction %s is not a reversal", rev.ID)
	}
	if rev.CompanyID != in.CompanyID {
		return nil, conflict("transaction %s belongs to another company", rev.ID)
	}

	orig, err := s.GetTransaction(ctx, rev.OriginalTxnID)
	if err != nil {
		return nil, fmt.Errorf("load original transaction: %w", err)
	}
	if orig == nil {
		return nil, notFound("transaction", string(rev.OriginalTxnID))
	}

	acct, err := s.GetAccount(ctx, rev.AccountKind, rev.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rev.AccountKind, err)
	}
	if acct == nil {
		return nil, notFound(string(rev.AccountKind), rev.AccountID)
	}

	latest, err := s.LatestTransaction(ctx, acct.Kind, acct.ID, acct.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load latest transaction: %w", err)
	}
	if latest == nil || latest.ID != rev.ID {
		return nil, conflict("transactions were recorded after reversal %s; reverse them first", rev.ID)
	}
	if err := checkDocumentEntry(ctx, s, orig); err != nil {
		return nil, err
	}

	balance := rev.BalanceAfter.Sub(SignedAmount(rev.Type, rev.Amount))

	if err := s.DeleteTransaction(ctx, rev.ID); err != nil {
		return nil, fmt.Errorf("delete reversal: %w", err)
	}
	if err := s.ClearReversal(ctx, orig.ID); err != nil {
		return nil, fmt.Errorf("restore original: %w", err)
	}
	if err := settleInvoicePayment(ctx, s, orig, orig.Amount, l.Clock.Now()); err != nil {
		return nil, err
	}
	if err := s.SetAccountBalance(ctx, acct.Kind, acct.ID, balance, BalanceTypeFor(balance)); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	return &UndoResult{
		AccountKind:   acct.Kind,
		AccountID:     acct.ID,
		OriginalTxnID: orig.ID,
		Balance:       balance,
		BalanceType:   BalanceTypeFor(balance),
	}, nil
}

// =============================================================================
// OPENING BALANCE & READS
// =============================================================================

// SetOpeningBalance changes an account's opening balance. Once entries
// exist their balanceAfter snapshots depend on it, so it is frozen.
func (l *Ledger) SetOpeningBalance(ctx context.Context, kind AccountKind, accountID, companyID string, opening decimal.Decimal) error {
	unlock, err := l.lock(ctx, accountLockKey(kind, accountID))
	if err != nil {
		return err
	}
	defer unlock()

	return l.Store.WithTx(ctx, func(s Store) error {
		acct, err := s.GetAccount(ctx, kind, accountID)
		if err != nil {
			return fmt.Errorf("load %s: %w", kind, err)
		}
		if acct == nil || acct.CompanyID != companyID {
			return notFound(string(kind), accountID)
		}
		if acct.OpeningBalance.Equal(opening) {
			return nil
		}
		latest, err := s.LatestTransaction(ctx, kind, accountID, companyID)
		if err != nil {
			return fmt.Errorf("load latest transaction: %w", err)
		}
		if latest != nil {
			return conflict("opening balance cannot change once transactions exist")
		}
		if err := s.SetOpeningBalance(ctx, kind, accountID, opening); err != nil {
			return fmt.Errorf("update opening balance: %w", err)
		}
		return s.SetAccountBalance(ctx, kind, accountID, opening, BalanceTypeFor(opening))
	})
}

// Transactions returns one page of entries plus the unpaged total.
func (l *Ledger) Transactions(ctx context.Context, f TransactionFilter) ([]Transaction, int, error) {
	total, err := l.Store.CountTransactions(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	txs, err := l.Store.ListTransactions(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return txs, total, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// checkDocumentEntry refuses to reactivate an invoice entry whose document
// was deleted or now posts a different amount or to a different account.
func checkDocumentEntry(ctx context.Context, s Store, tx *Transaction) error {
	if !tx.Document || tx.Type != TxInvoice {
		return nil
	}
	switch tx.AccountKind {
	case AccountCustomer:
		inv, err := s.GetInvoice(ctx, tx.InvoiceRef)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if inv == nil || inv.CompanyID != tx.CompanyID {
			return conflict("invoice %s no longer exists; its entry cannot be restored", tx.InvoiceRef)
		}
		if inv.CustomerID != tx.AccountID || !inv.Total.Equal(tx.Amount) {
			return conflict("invoice %s has changed since entry %s was reversed", tx.InvoiceRef, tx.ID)
		}
	case AccountSupplier:
		p, err := s.GetPurchase(ctx, tx.InvoiceRef)
		if err != nil {
			return fmt.Errorf("load purchase invoice: %w", err)
		}
		if p == nil || p.CompanyID != tx.CompanyID {
			return conflict("purchase invoice %s no longer exists; its entry cannot be restored", tx.InvoiceRef)
		}
		if p.SupplierID != tx.AccountID || !p.TotalAmount.Equal(tx.Amount) {
			return conflict("purchase invoice %s has changed since entry %s was reversed", tx.InvoiceRef, tx.ID)
		}
	}
	return nil
}

// settleInvoicePayment moves delta into or out of the paid amount of the
// invoice a customer payment entry settles. Entries without an invoice, or
// whose invoice is gone, leave nothing to update.
func settleInvoicePayment(ctx context.Context, s Store, tx *Transaction, delta decimal.Decimal, now time.Time) error {
	if !tx.Document || tx.AccountKind != AccountCustomer || tx.Type != TxPayment {
		return nil
	}
	inv, err := s.GetInvoice(ctx, tx.InvoiceRef)
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}
	if inv == nil || inv.CompanyID != tx.CompanyID {
		return nil
	}
	applyPaid(inv, inv.PaidAmount.Add(delta))
	inv.UpdatedAt = now
	if err := s.UpdateInvoice(ctx, *inv); err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

// applyPaid sets the paid amount, clamped to [0, total], and derives the
// remaining balance and status from it.
func applyPaid(inv *Invoice, paid decimal.Decimal) {
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	if paid.GreaterThan(inv.Total) {
		paid = inv.Total
	}
	inv.PaidAmount = paid
	inv.RemainingBalance = inv.Total.Sub(paid)
	switch {
	case paid.IsZero():
		inv.Status = InvoiceUnpaid
	case inv.RemainingBalance.IsPositive():
		inv.Status = InvoicePartial
	default:
		inv.Status = InvoicePaid
	}
}

func runningBalance(ctx context.Context, s Store, acct *Account) (decimal.Decimal, error) {
	latest, err := s.LatestTransaction(ctx, acct.Kind, acct.ID, acct.CompanyID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load latest transaction: %w", err)
	}
	if latest == nil {
		return acct.OpeningBalance, nil
	}
	return latest.BalanceAfter, nil
}

// lock obtains every key in sorted order and returns a release func.
func (l *Ledger) lock(ctx context.Context, keys ...string) (func(), error) {
	locker := l.Locker
	if locker == nil {
		locker = NopLocker{}
	}
	keys = uniqueSorted(keys)

	var releases []func()
	release := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		unlock, err := locker.Lock(ctx, key)
		if err != nil {
			release()
			return nil, fmt.Errorf("%w: %s is busy, retry shortly (%v)", ErrConflict, key, err)
		}
		releases = append(releases, unlock)
	}
	return release, nil
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func describe(tx *Transaction) string {
	if tx.Reference != "" {
		return tx.Reference
	}
	return fmt.Sprintf("%s %s", tx.Type, tx.ID)
}
