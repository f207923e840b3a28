package ledger_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/ledger/store"
)

const (
	companyA = "company-a"
	companyB = "company-b"
	userA    = "user-a"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store      *store.Memory
	ledger     *ledger.Ledger
	stock      *ledger.StockCoordinator
	projection *ledger.Projection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	l := ledger.NewLedger(mem)
	l.Clock = ledger.FixedClock{T: testNow}
	p := ledger.NewProjection(mem)
	p.Clock = ledger.FixedClock{T: testNow}
	return &fixture{store: mem, ledger: l, stock: ledger.NewStockCoordinator(l), projection: p}
}

func (f *fixture) customer(id, opening string) {
	f.store.SaveAccount(ledger.Account{
		ID:             id,
		Kind:           ledger.AccountCustomer,
		CompanyID:      companyA,
		UserID:         userA,
		Name:           "Customer " + id,
		OpeningBalance: d(opening),
		CurrentBalance: d(opening),
	})
}

func (f *fixture) account(t *testing.T, kind ledger.AccountKind, id string) ledger.Account {
	t.Helper()
	acct, err := f.store.GetAccount(context.Background(), kind, id)
	require.NoError(t, err)
	require.NotNil(t, acct)
	return *acct
}

func (f *fixture) txn(t *testing.T, id ledger.TransactionID) ledger.Transaction {
	t.Helper()
	tx, err := f.store.GetTransaction(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, tx)
	return *tx
}

func (f *fixture) record(t *testing.T, accountID string, typ ledger.TransactionType, amount string) *ledger.Transaction {
	t.Helper()
	in := ledger.RecordInput{
		AccountKind: ledger.AccountCustomer,
		AccountID:   accountID,
		CompanyID:   companyA,
		UserID:      userA,
		Type:        typ,
		Amount:      d(amount),
	}
	if typ == ledger.TxPayment {
		in.Mode = ledger.ModeUPI
	}
	tx, err := f.ledger.RecordTransaction(context.Background(), in)
	require.NoError(t, err)
	return tx
}

// =============================================================================
// RECORD
// =============================================================================

func TestRecord_InvoiceThenPayment(t *testing.T) {
	f := newFixture(t)
	f.customer("c1", "0")

	inv := f.record(t, "c1", ledger.TxInvoice, "500")
	assert.Equal(t, "500", inv.BalanceAfter.String())

	pay := f.record(t, "c1", ledger.TxPayment, "200")
	assert.Equal(t, "300", pay.BalanceAfter.String())
	assert.Equal(t, ledger.ModeUPI, pay.Mode)
	assert.Greater(t, pay.Seq, inv.Seq)

	acct := f.account(t, ledger.AccountCustomer, "c1")
	assert.Equal(t, "300", acct.CurrentBalance.String())
	assert.Equal(t, ledger.BalanceCredit, acct.BalanceType)
}

func TestRecord_FallsBackToOpeningBalance(t *testing.T) {
	f := newFixture(t)
	f.customer("c1", "150")

	tx := f.record(t, "c1", ledger.TxInvoice, "50")

	assert.Equal(t, "200", tx.BalanceAfter.String())
}

func TestRecord_ZeroLatestBalanceIsKept(t *testing.T) {
	// GIVEN: opening 100, then a payment bringing the balance to exactly 0
	f := newFixture(t)
	f.customer("c1", "100")
	f.record(t, "c1", ledger.TxPayment, "100")

	// WHEN: another invoice is recorded
	tx := f.record(t, "c1", ledger.TxInvoice, "40")

	// THEN: it builds on 0, not on the opening balance
	assert.Equal(t, "40", tx.BalanceAfter.String())
}

func TestRecord_NegativeBalanceIsDebit(t *testing.T) {
	f := newFixture(t)
	f.customer("c1", "0")

	f.record(t, "c1", ledger.TxPayment, "75.50")

	acct := f.account(t, ledger.AccountCustomer, "c1")
	assert.Equal(t, "-75.5", acct.CurrentBalance.String())
	assert.Equal(t, ledger.BalanceDebit, acct.BalanceType)
}

func TestRecord_CreditNoteReducesBalance(t *testing.T) {
	f := newFixture(t)
	f.customer("c1", "0")
	f.record(t, "c1", ledger.TxInvoice, "100")

	tx := f.record(t, "c1", ledger.TxCreditNote, "30")

	assert.Equal(t, "70", tx.BalanceAfter.String())
}

func TestRecord_Validation(t *testing.T) {
	f := newFixture(t)
	f.customer("c1", "0")
	ctx := context.Background()

	tests := []struct {
		name string
		in   ledger.RecordInput
	}{
		{"zero invoice", ledger.RecordInput{Type: ledger.TxInvoice, Amount: d("0")}},
		{"negative payment", ledger.RecordInput{Type: ledger.TxPayment, Amount: d("-5"), Mode: ledger.ModeCash}},
		{"payment without mode", ledger.RecordInput{Type: ledger.TxPayment, Amount: d("10")}},
		{"unknown mode", ledger.RecordInput{Type: ledger.TxPayment, Amount: d("10"), Mode: "barter"}},
		{"reversal type", ledger.RecordInput{Type: ledger.TxReversalPayment, Amount: d("10")}},
		{"unknown type", ledger.RecordInput{Type: "refund", Amount: d("10")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.AccountKind = ledger.AccountCustomer
			in.AccountID = "c1"
			in.CompanyID = companyA
			_, err := f.ledger.RecordTransaction(ctx, in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ledger.ErrValidation), "got %v", err)
		})
	}

	acct := f.account(t, ledger.AccountCustomer, "c1")
	assert.True(t, acct.CurrentBalance.IsZero())
}

func TestRecord_AccountFromOtherCompany(t *testing.T) {
	f := newFixture(t)
	f.customer("c1", "0")

	_, err := f.ledger.RecordTransaction(context.Background(), ledger.RecordInput{
		AccountKind: ledger.AccountCustomer,
		AccountID:   "c1",
		CompanyID:   companyB,
		Type:        ledger.TxInvoice,
		Amount:      d("10"),
	})

	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestRecord_MissingAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.RecordTransaction(context.Background(), ledger.RecordInput{
		AccountKind: ledger.AccountSupplier,
		AccountID:   "nobody",
		CompanyID:   companyA,
		Type:        ledger.TxInvoice,
		Amount:      d("10"),
	})

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// REVERSE / UNDO
// =============================================================================

func TestScenario_InvoicePaymentReverseUndo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "0")

	f.record(t, "c1", ledger.TxInvoice, "500")
	assert.Equal(t, "500", f.account(t, ledger.AccountCustomer, "c1").CurrentBalance.String())

	pay := f.record(t, "c1", ledger.TxPayment, "200")
	assert.Equal(t, "300", f.account(t, ledger.AccountCustomer, "c1").CurrentBalance.String())

	rev, err := f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: pay.ID, CompanyID: companyA})
	require.NoError(t, err)
	assert.Equal(t, ledger.TxReversalPayment, rev.Type)
	assert.Equal(t, "200", rev.Amount.String())
	assert.Equal(t, "500", rev.BalanceAfter.String())
	assert.Equal(t, pay.ID, rev.OriginalTxnID)
	assert.Equal(t, "500", f.account(t, ledger.AccountCustomer, "c1").CurrentBalance.String())

	orig := f.txn(t, pay.ID)
	assert.True(t, orig.Reversed)
	assert.Equal(t, rev.ID, orig.ReversalTxnID)

	res, err := f.ledger.UndoReversal(ctx, ledger.UndoInput{ReversalTxnID: rev.ID, CompanyID: companyA})
	require.NoError(t, err)
	assert.Equal(t, "300", res.Balance.String())
	assert.Equal(t, pay.ID, res.OriginalTxnID)
	assert.Equal(t, "300", f.account(t, ledger.AccountCustomer, "c1").CurrentBalance.String())

	orig = f.txn(t, pay.ID)
	assert.False(t, orig.Reversed)
	assert.Empty(t, orig.ReversalTxnID)

	gone, err := f.store.GetTransaction(ctx, rev.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestReverse_InvoiceSubtracts(t *testing.T) {
	f := newFixture(t)
	f.customer("c1", "0")
	inv := f.record(t, "c1", ledger.TxInvoice, "120")

	rev, err := f.ledger.ReverseTransaction(context.Background(), ledger.ReverseInput{TransactionID: inv.ID, CompanyID: companyA})

	require.NoError(t, err)
	assert.Equal(t, ledger.TxReversalInvoice, rev.Type)
	assert.True(t, rev.BalanceAfter.IsZero())
}

func TestReverse_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "0")
	pay := f.record(t, "c1", ledger.TxPayment, "10")

	_, err := f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: "missing", CompanyID: companyA})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: pay.ID, CompanyID: companyB})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	rev, err := f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: pay.ID, CompanyID: companyA})
	require.NoError(t, err)

	_, err = f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: pay.ID, CompanyID: companyA})
	assert.ErrorIs(t, err, ledger.ErrConflict, "already reversed")

	_, err = f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: rev.ID, CompanyID: companyA})
	assert.ErrorIs(t, err, ledger.ErrConflict, "reversal of a reversal")
}

func TestUndo_RejectsNonReversal(t *testing.T) {
	f := newFixture(t)
	f.customer("c1", "0")
	inv := f.record(t, "c1", ledger.TxInvoice, "10")

	_, err := f.ledger.UndoReversal(context.Background(), ledger.UndoInput{ReversalTxnID: inv.ID, CompanyID: companyA})

	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestUndo_RejectedAfterNewerEntries(t *testing.T) {
	// GIVEN: a reversed payment followed by another invoice
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "0")
	f.record(t, "c1", ledger.TxInvoice, "500")
	pay := f.record(t, "c1", ledger.TxPayment, "200")
	rev, err := f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: pay.ID, CompanyID: companyA})
	require.NoError(t, err)
	f.record(t, "c1", ledger.TxInvoice, "50")

	// WHEN: undoing the reversal
	_, err = f.ledger.UndoReversal(ctx, ledger.UndoInput{ReversalTxnID: rev.ID, CompanyID: companyA})

	// THEN: it is refused and nothing moves
	assert.ErrorIs(t, err, ledger.ErrConflict)
	assert.Equal(t, "550", f.account(t, ledger.AccountCustomer, "c1").CurrentBalance.String())
	assert.True(t, f.txn(t, pay.ID).Reversed)
}

func TestUndo_OtherCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "0")
	pay := f.record(t, "c1", ledger.TxPayment, "10")
	rev, err := f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: pay.ID, CompanyID: companyA})
	require.NoError(t, err)

	_, err = f.ledger.UndoReversal(ctx, ledger.UndoInput{ReversalTxnID: rev.ID, CompanyID: companyB})

	assert.ErrorIs(t, err, ledger.ErrConflict)
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestInvariant_BalanceEqualsReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "25")
	rng := rand.New(rand.NewSource(42))

	var recorded []ledger.TransactionID
	var lastReversal ledger.TransactionID

	for i := 0; i < 200; i++ {
		switch op := rng.Intn(10); {
		case op < 4:
			tx := f.record(t, "c1", ledger.TxInvoice, decimal.NewFromInt(int64(rng.Intn(900)+1)).String())
			recorded = append(recorded, tx.ID)
			lastReversal = ""
		case op < 7:
			tx := f.record(t, "c1", ledger.TxPayment, decimal.NewFromInt(int64(rng.Intn(500)+1)).String())
			recorded = append(recorded, tx.ID)
			lastReversal = ""
		case op < 8:
			tx := f.record(t, "c1", ledger.TxCreditNote, "3.25")
			recorded = append(recorded, tx.ID)
			lastReversal = ""
		case op < 9 && len(recorded) > 0:
			target := recorded[rng.Intn(len(recorded))]
			rev, err := f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: target, CompanyID: companyA})
			if err != nil {
				require.ErrorIs(t, err, ledger.ErrConflict)
				continue
			}
			lastReversal = rev.ID
		default:
			if lastReversal == "" {
				continue
			}
			_, err := f.ledger.UndoReversal(ctx, ledger.UndoInput{ReversalTxnID: lastReversal, CompanyID: companyA})
			require.NoError(t, err)
			lastReversal = ""
		}

		acct := f.account(t, ledger.AccountCustomer, "c1")
		txs, err := f.store.ListTransactions(ctx, ledger.TransactionFilter{AccountID: "c1"})
		require.NoError(t, err)
		require.True(t, acct.CurrentBalance.Equal(ledger.Replay(acct.OpeningBalance, txs)),
			"step %d: cached %s replay %s", i, acct.CurrentBalance, ledger.Replay(acct.OpeningBalance, txs))
		require.True(t, acct.CurrentBalance.Equal(ledger.ActiveBalance(acct.OpeningBalance, txs)),
			"step %d: cached %s active %s", i, acct.CurrentBalance, ledger.ActiveBalance(acct.OpeningBalance, txs))
		if len(txs) > 0 {
			require.True(t, acct.CurrentBalance.Equal(txs[len(txs)-1].BalanceAfter))
		}
	}

	drifts, err := f.projection.VerifyBalances(ctx, companyA)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestReversalLinks_AreMutual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "0")
	inv := f.record(t, "c1", ledger.TxInvoice, "80")

	rev, err := f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: inv.ID, CompanyID: companyA})
	require.NoError(t, err)

	orig := f.txn(t, inv.ID)
	back := f.txn(t, orig.ReversalTxnID)
	assert.Equal(t, rev.ID, back.ID)
	assert.Equal(t, orig.ID, back.OriginalTxnID)
}

// =============================================================================
// OPENING BALANCE
// =============================================================================

func TestSetOpeningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "0")

	require.NoError(t, f.ledger.SetOpeningBalance(ctx, ledger.AccountCustomer, "c1", companyA, d("-40")))
	acct := f.account(t, ledger.AccountCustomer, "c1")
	assert.Equal(t, "-40", acct.CurrentBalance.String())
	assert.Equal(t, ledger.BalanceDebit, acct.BalanceType)

	f.record(t, "c1", ledger.TxInvoice, "40")
	err := f.ledger.SetOpeningBalance(ctx, ledger.AccountCustomer, "c1", companyA, d("10"))
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

// =============================================================================
// LOCKER
// =============================================================================

type recordingLocker struct {
	keys     []string
	released int
	fail     bool
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	if l.fail {
		return nil, errors.New("lock held elsewhere")
	}
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}

func TestLocker_WrapsMutations(t *testing.T) {
	f := newFixture(t)
	locker := &recordingLocker{}
	f.ledger.Locker = locker
	f.customer("c1", "0")

	f.record(t, "c1", ledger.TxInvoice, "10")

	assert.Equal(t, []string{"ledger:customer:c1"}, locker.keys)
	assert.Equal(t, 1, locker.released)

	locker.fail = true
	_, err := f.ledger.RecordTransaction(context.Background(), ledger.RecordInput{
		AccountKind: ledger.AccountCustomer, AccountID: "c1", CompanyID: companyA,
		Type: ledger.TxInvoice, Amount: d("5"),
	})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestBalanceDisplay(t *testing.T) {
	assert.Equal(t, "300.00 Cr", ledger.BalanceDisplay(d("300")))
	assert.Equal(t, "0.00 Cr", ledger.BalanceDisplay(d("0")))
	assert.Equal(t, "12.50 Dr", ledger.BalanceDisplay(d("-12.5")))
}
