package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

const (
	company = "company-1"
	user    = "user-1"
)

var now = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newLedger(s *sqlite.Store) *ledger.Ledger {
	l := ledger.NewLedger(s)
	l.Clock = ledger.FixedClock{T: now}
	return l
}

func seedCustomer(t *testing.T, s *sqlite.Store, id, opening string) {
	t.Helper()
	require.NoError(t, s.CreateContact(context.Background(), sqlite.Contact{
		ID:             id,
		Kind:           ledger.AccountCustomer,
		CompanyID:      company,
		UserID:         user,
		Name:           "Customer " + id,
		OpeningBalance: d(opening),
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
}

func seedItem(t *testing.T, s *sqlite.Store, id string, qty int64) {
	t.Helper()
	require.NoError(t, s.SaveItem(context.Background(), ledger.Item{
		ID:           id,
		CompanyID:    company,
		UserID:       user,
		Name:         "Item " + id,
		Unit:         "pcs",
		SellingPrice: d("10"),
		Quantity:     qty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func stockOf(t *testing.T, s *sqlite.Store, id string) int64 {
	t.Helper()
	item, err := s.GetItem(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item.Quantity
}

func invoiceInput(customerID, total string, lines ...ledger.InvoiceLine) ledger.CreateInvoiceInput {
	return ledger.CreateInvoiceInput{
		UserID:      user,
		CompanyID:   company,
		CustomerID:  customerID,
		InvoiceDate: now,
		DueDate:     now.AddDate(0, 0, 15),
		Lines:       lines,
		Subtotal:    d(total),
		Total:       d(total),
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_RecordReverseUndo(t *testing.T) {
	// GIVEN: a customer with an opening balance of 500
	s := newStore(t)
	ctx := context.Background()
	l := newLedger(s)
	seedCustomer(t, s, "c1", "500")

	// WHEN: a payment of 200 is recorded, reversed, and the reversal undone
	pay, err := l.RecordTransaction(ctx, ledger.RecordInput{
		AccountKind: ledger.AccountCustomer,
		AccountID:   "c1",
		CompanyID:   company,
		Type:        ledger.TxPayment,
		Amount:      d("200"),
		Mode:        ledger.ModeUPI,
	})
	require.NoError(t, err)
	assert.Equal(t, "300", pay.BalanceAfter.String())
	assert.Positive(t, pay.Seq)

	rev, err := l.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: pay.ID, CompanyID: company})
	require.NoError(t, err)
	assert.Equal(t, ledger.TxReversalPayment, rev.Type)
	assert.Equal(t, "500", rev.BalanceAfter.String())

	original, err := s.GetTransaction(ctx, pay.ID)
	require.NoError(t, err)
	assert.True(t, original.Reversed)
	assert.Equal(t, rev.ID, original.ReversalTxnID)

	undo, err := l.UndoReversal(ctx, ledger.UndoInput{ReversalTxnID: rev.ID, CompanyID: company})
	require.NoError(t, err)

	// THEN: 500 -> 300 -> 500 -> 300 with the links restored
	assert.Equal(t, "300", undo.Balance.String())
	acct, err := s.GetAccount(ctx, ledger.AccountCustomer, "c1")
	require.NoError(t, err)
	assert.Equal(t, "300", acct.CurrentBalance.String())
	assert.Equal(t, ledger.BalanceCredit, acct.BalanceType)

	original, err = s.GetTransaction(ctx, pay.ID)
	require.NoError(t, err)
	assert.False(t, original.Reversed)
	assert.Empty(t, original.ReversalTxnID)

	gone, err := s.GetTransaction(ctx, rev.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestLedger_SecondReversalRejected(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	l := newLedger(s)
	seedCustomer(t, s, "c1", "0")

	inv, err := l.RecordTransaction(ctx, ledger.RecordInput{
		AccountKind: ledger.AccountCustomer, AccountID: "c1", CompanyID: company,
		Type: ledger.TxInvoice, Amount: d("75.50"),
	})
	require.NoError(t, err)
	_, err = l.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: inv.ID, CompanyID: company})
	require.NoError(t, err)

	_, err = l.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: inv.ID, CompanyID: company})

	assert.ErrorIs(t, err, ledger.ErrConflict)
	n, err := s.CountTransactions(ctx, ledger.TransactionFilter{AccountID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTransactions_FilterAndPaginate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	l := newLedger(s)
	seedCustomer(t, s, "c1", "0")

	for i, amount := range []string{"10", "20", "30"} {
		l.Clock = ledger.FixedClock{T: now.Add(time.Duration(i) * time.Hour)}
		_, err := l.RecordTransaction(ctx, ledger.RecordInput{
			AccountKind: ledger.AccountCustomer, AccountID: "c1", CompanyID: company,
			Type: ledger.TxInvoice, Amount: d(amount),
		})
		require.NoError(t, err)
	}

	txs, total, err := l.Transactions(ctx, ledger.TransactionFilter{AccountID: "c1", Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, txs, 1)
	assert.Equal(t, "30", txs[0].BalanceAfter.String())

	later, err := s.ListTransactions(ctx, ledger.TransactionFilter{From: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, later, 2)
}

// =============================================================================
// UNITS OF WORK
// =============================================================================

func TestCreateInvoice_InsufficientStockRollsBackEverything(t *testing.T) {
	// GIVEN: i1 has 10 units, i2 only 1
	s := newStore(t)
	ctx := context.Background()
	coord := ledger.NewStockCoordinator(newLedger(s))
	seedCustomer(t, s, "c1", "0")
	seedItem(t, s, "i1", 10)
	seedItem(t, s, "i2", 1)

	// WHEN: the second line asks for more than is on hand
	_, err := coord.CreateInvoice(ctx, invoiceInput("c1", "100",
		ledger.InvoiceLine{ItemID: "i1", Quantity: 4, SellingPrice: d("10")},
		ledger.InvoiceLine{ItemID: "i2", Quantity: 3, SellingPrice: d("20")},
	))

	// THEN: nothing from the unit survives
	var stockErr *ledger.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "i2", stockErr.ItemID)
	assert.Equal(t, int64(10), stockOf(t, s, "i1"))
	assert.Equal(t, int64(1), stockOf(t, s, "i2"))

	n, err := s.CountInvoices(ctx, ledger.InvoiceFilter{CompanyID: company})
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountTransactions(ctx, ledger.TransactionFilter{CompanyID: company})
	require.NoError(t, err)
	assert.Zero(t, n)
	seq, err := s.CurrentSequence(ctx, user, company)
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestCreateAndDeleteInvoice_RestoresStock(t *testing.T) {
	// GIVEN: 10 units on hand
	s := newStore(t)
	ctx := context.Background()
	coord := ledger.NewStockCoordinator(newLedger(s))
	seedCustomer(t, s, "c1", "0")
	seedItem(t, s, "i1", 10)

	// WHEN: an invoice takes 4, then is deleted
	inv, err := coord.CreateInvoice(ctx, invoiceInput("c1", "40",
		ledger.InvoiceLine{ItemID: "i1", Quantity: 4, SellingPrice: d("10")}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), inv.InvoiceNumber)
	assert.Equal(t, int64(6), stockOf(t, s, "i1"))

	stored, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "10", stored.Lines[0].SellingPrice.String())
	assert.Equal(t, ledger.InvoiceUnpaid, stored.Status)

	res, err := coord.DeleteInvoice(ctx, ledger.DeleteInvoiceInput{InvoiceID: inv.ID, CompanyID: company})

	// THEN: 10 -> 6 -> 10, and the ledger entry is compensated
	require.NoError(t, err)
	assert.Equal(t, int64(10), stockOf(t, s, "i1"))
	require.NotNil(t, res.Reversal)
	acct, err := s.GetAccount(ctx, ledger.AccountCustomer, "c1")
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.IsZero())
}

func TestDeleteInvoice_ReversalCannotBeUndone(t *testing.T) {
	// GIVEN: an invoice whose deletion reversed its ledger entry
	s := newStore(t)
	ctx := context.Background()
	l := newLedger(s)
	coord := ledger.NewStockCoordinator(l)
	seedCustomer(t, s, "c1", "0")
	seedItem(t, s, "i1", 10)
	inv, err := coord.CreateInvoice(ctx, invoiceInput("c1", "40",
		ledger.InvoiceLine{ItemID: "i1", Quantity: 4, SellingPrice: d("10")}))
	require.NoError(t, err)
	entry, err := s.FindDocumentTransaction(ctx, ledger.AccountCustomer, inv.ID, ledger.TxInvoice)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Document)
	res, err := coord.DeleteInvoice(ctx, ledger.DeleteInvoiceInput{InvoiceID: inv.ID, CompanyID: company})
	require.NoError(t, err)

	// WHEN: the reversal is undone
	_, err = l.UndoReversal(ctx, ledger.UndoInput{ReversalTxnID: res.Reversal.ID, CompanyID: company})

	// THEN: the deleted invoice's amount stays off the account
	assert.ErrorIs(t, err, ledger.ErrConflict)
	acct, err := s.GetAccount(ctx, ledger.AccountCustomer, "c1")
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.IsZero())
	assert.Equal(t, int64(10), stockOf(t, s, "i1"))
}

func TestCreateInvoice_DuplicateNumberIsConflict(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	inv := ledger.Invoice{
		ID: "inv-1", CompanyID: company, UserID: user, CustomerID: "c1", InvoiceNumber: 7,
		InvoiceDate: now, DueDate: now, Status: ledger.InvoiceUnpaid, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateInvoice(ctx, inv))

	inv.ID = "inv-2"
	err := s.CreateInvoice(ctx, inv)

	assert.ErrorIs(t, err, ledger.ErrConflict)
}

// =============================================================================
// SEQUENCES
// =============================================================================

func TestNextSequence_ConcurrentCallsNeverCollide(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const workers = 25
	results := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.NextSequence(ctx, user, company)
			assert.NoError(t, err)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for n := range results {
		assert.False(t, seen[n], "duplicate number %d", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)

	current, err := s.CurrentSequence(ctx, user, company)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), current)

	other, err := s.NextSequence(ctx, user, "company-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

// =============================================================================
// RECORDS
// =============================================================================

func TestUsers_LookupByExternalID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, sqlite.User{
		ID: "u1", ExternalID: "user_2abc", Email: "owner@example.com", FullName: "Owner", CreatedAt: now,
	}))

	u, err := s.FindUserByExternalID(ctx, "user_2abc")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)

	missing, err := s.FindUserByExternalID(ctx, "user_unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = s.CreateUser(ctx, sqlite.User{ID: "u2", ExternalID: "user_2abc", Email: "x@example.com", CreatedAt: now})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestContacts_ActivityGuard(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	l := newLedger(s)
	seedCustomer(t, s, "c1", "120")

	c, err := s.GetContact(ctx, ledger.AccountCustomer, "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "120", c.CurrentBalance.String())

	busy, err := s.ContactHasActivity(ctx, ledger.AccountCustomer, "c1")
	require.NoError(t, err)
	assert.False(t, busy)

	_, err = l.RecordTransaction(ctx, ledger.RecordInput{
		AccountKind: ledger.AccountCustomer, AccountID: "c1", CompanyID: company,
		Type: ledger.TxCreditNote, Amount: d("20"),
	})
	require.NoError(t, err)

	busy, err = s.ContactHasActivity(ctx, ledger.AccountCustomer, "c1")
	require.NoError(t, err)
	assert.True(t, busy)

	c.Name = "Renamed"
	c.UpdatedAt = now
	require.NoError(t, s.UpdateContactDetails(ctx, *c))
	c, err = s.GetContact(ctx, ledger.AccountCustomer, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", c.Name)
	assert.Equal(t, "100", c.CurrentBalance.String())
}

func TestItems_SearchByName(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedItem(t, s, "a", 1)
	seedItem(t, s, "b", 1)
	require.NoError(t, s.SaveItem(ctx, ledger.Item{
		ID: "c", CompanyID: company, UserID: user, Name: "Steel 50% rod",
		SellingPrice: d("1"), CreatedAt: now, UpdatedAt: now,
	}))

	all, err := s.ListItems(ctx, company, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	hits, err := s.ListItems(ctx, company, "item B")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	hits, err = s.ListItems(ctx, company, "50%")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].ID)
}

func TestReset_ClearsEverything(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedCustomer(t, s, "c1", "0")
	seedItem(t, s, "i1", 3)
	_, err := s.NextSequence(ctx, user, company)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	c, err := s.GetContact(ctx, ledger.AccountCustomer, "c1")
	require.NoError(t, err)
	assert.Nil(t, c)
	seq, err := s.CurrentSequence(ctx, user, company)
	require.NoError(t, err)
	assert.Zero(t, seq)
}
