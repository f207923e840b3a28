package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/ledger"
)

func (f *fixture) at(t time.Time) {
	f.ledger.Clock = ledger.FixedClock{T: t}
}

func (f *fixture) overdueInvoice(t *testing.T, customerID, total string, daysLate int) *ledger.Invoice {
	t.Helper()
	in := invoiceInput(customerID, total, line("i1", 1))
	in.InvoiceDate = testNow.AddDate(0, 0, -daysLate-30)
	in.DueDate = testNow.AddDate(0, 0, -daysLate)
	inv, err := f.stock.CreateInvoice(context.Background(), in)
	require.NoError(t, err)
	return inv
}

func TestOverdueCustomers(t *testing.T) {
	// GIVEN: c1 partially paid and 10 days late, c2 not yet due,
	//        c3 late but deleted since
	f := newFixture(t)
	ctx := context.Background()
	f.item("i1", 100)
	f.customer("c1", "0")
	f.customer("c2", "0")
	f.customer("c3", "0")

	late := f.overdueInvoice(t, "c1", "100", 10)
	_, err := f.stock.RecordInvoicePayment(ctx, ledger.InvoicePaymentInput{
		InvoiceID: late.ID, CompanyID: companyA, Amount: d("30"), Method: "cash",
	})
	require.NoError(t, err)
	f.overdueInvoice(t, "c1", "40", 2)

	_, err = f.stock.CreateInvoice(ctx, invoiceInput("c2", "60", line("i1", 1)))
	require.NoError(t, err)

	f.overdueInvoice(t, "c3", "25", 5)
	f.store.DeleteAccount(ledger.AccountCustomer, "c3")

	// WHEN
	overdue, err := f.projection.OverdueCustomers(ctx, companyA)

	// THEN: only c1, with both invoices, nearest first
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	c1 := overdue[0]
	assert.Equal(t, "c1", c1.CustomerID)
	assert.Equal(t, "110", c1.TotalDue.String())
	require.Len(t, c1.Invoices, 2)
	assert.Equal(t, 2, c1.Invoices[0].DaysOverdue)
	assert.Equal(t, "40", c1.Invoices[0].DueAmount.String())
	assert.Equal(t, 10, c1.Invoices[1].DaysOverdue)
	assert.Equal(t, "70", c1.Invoices[1].DueAmount.String())
}

func TestOverdueCustomers_SkipsSettledBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item("i1", 10)
	f.customer("c1", "0")
	f.overdueInvoice(t, "c1", "100", 3)

	// A payment on account, not against the invoice, clears the balance.
	f.record(t, "c1", ledger.TxPayment, "100")

	overdue, err := f.projection.OverdueCustomers(ctx, companyA)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestQuickInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item("i1", 100)
	f.customer("c1", "0")

	// Three days ago: invoice 50, 20 collected.
	f.at(testNow.AddDate(0, 0, -3))
	old, err := f.stock.CreateInvoice(ctx, invoiceInput("c1", "50", line("i1", 1)))
	require.NoError(t, err)
	_, err = f.stock.RecordInvoicePayment(ctx, ledger.InvoicePaymentInput{
		InvoiceID: old.ID, CompanyID: companyA, UserID: userA, Amount: d("20"), Method: "upi",
	})
	require.NoError(t, err)

	// Today: invoice 30 left unpaid, 10 more collected on the old one.
	f.at(testNow)
	_, err = f.stock.CreateInvoice(ctx, invoiceInput("c1", "30", line("i1", 1)))
	require.NoError(t, err)
	_, err = f.stock.RecordInvoicePayment(ctx, ledger.InvoicePaymentInput{
		InvoiceID: old.ID, CompanyID: companyA, UserID: userA, Amount: d("10"), Method: "cash",
	})
	require.NoError(t, err)

	today, err := f.projection.QuickInfo(ctx, ledger.QuickInfoInput{UserID: userA, CompanyID: companyA, Range: ledger.RangeToday})
	require.NoError(t, err)
	assert.Equal(t, 1, today.InvoiceCount)
	assert.Equal(t, "30", today.InvoiceTotal.String())
	assert.Equal(t, "10", today.PaymentsCollected.String())
	assert.Equal(t, 1, today.PendingInvoices)
	require.Len(t, today.Last7DaysCollected, 2)
	assert.Equal(t, "2025-03-07", today.Last7DaysCollected[0].Date)
	assert.Equal(t, "20", today.Last7DaysCollected[0].Amount.String())
	assert.Equal(t, "2025-03-10", today.Last7DaysCollected[1].Date)

	week, err := f.projection.QuickInfo(ctx, ledger.QuickInfoInput{UserID: userA, CompanyID: companyA, Range: ledger.RangeLast7Days})
	require.NoError(t, err)
	assert.Equal(t, 2, week.InvoiceCount)
	assert.Equal(t, "80", week.InvoiceTotal.String())
	assert.Equal(t, "30", week.PaymentsCollected.String())

	_, err = f.projection.QuickInfo(ctx, ledger.QuickInfoInput{CompanyID: companyA, Range: "yesterday"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestQuickInfo_IgnoresReversedPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "0")
	pay := f.record(t, "c1", ledger.TxPayment, "45")
	_, err := f.ledger.ReverseTransaction(ctx, ledger.ReverseInput{TransactionID: pay.ID, CompanyID: companyA})
	require.NoError(t, err)

	info, err := f.projection.QuickInfo(ctx, ledger.QuickInfoInput{CompanyID: companyA})

	require.NoError(t, err)
	assert.True(t, info.PaymentsCollected.IsZero())
	assert.Empty(t, info.Last7DaysCollected)
}

func TestStatement_PaginatesWithDisplayBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item("i1", 10)
	f.customer("c1", "0")
	inv, err := f.stock.CreateInvoice(ctx, invoiceInput("c1", "90", line("i1", 1)))
	require.NoError(t, err)
	f.record(t, "c1", ledger.TxPayment, "100")
	f.record(t, "c1", ledger.TxInvoice, "5")

	st, err := f.projection.Statement(ctx, ledger.StatementInput{
		AccountKind: ledger.AccountCustomer, AccountID: "c1", CompanyID: companyA, Page: 1, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.TotalPages)
	require.Len(t, st.Lines, 2)
	assert.Equal(t, "90.00 Cr", st.Lines[0].BalanceDisplay)
	require.NotNil(t, st.Lines[0].Document)
	assert.Equal(t, inv.ID, st.Lines[0].Document.ID)
	assert.Equal(t, "10.00 Dr", st.Lines[1].BalanceDisplay)
	assert.Nil(t, st.Lines[1].Document)
	assert.Equal(t, "5.00 Dr", st.BalanceDisplay)

	page2, err := f.projection.Statement(ctx, ledger.StatementInput{
		AccountKind: ledger.AccountCustomer, AccountID: "c1", CompanyID: companyA, Page: 2, Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, page2.Lines, 1)

	_, err = f.projection.Statement(ctx, ledger.StatementInput{
		AccountKind: ledger.AccountCustomer, AccountID: "c1", CompanyID: companyB,
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestVerifyBalances_ReportsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer("c1", "0")
	f.customer("c2", "0")
	f.record(t, "c1", ledger.TxInvoice, "100")
	f.record(t, "c2", ledger.TxInvoice, "50")

	acct := f.account(t, ledger.AccountCustomer, "c2")
	acct.CurrentBalance = d("75")
	f.store.SaveAccount(acct)

	drifts, err := f.projection.VerifyBalances(ctx, companyA)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "c2", drifts[0].AccountID)
	assert.Equal(t, "50", drifts[0].Replayed.String())
	assert.Equal(t, "25", drifts[0].Difference().String())
}

func TestRecentInvoices_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item("i1", 10)
	f.customer("c1", "0")
	for i := 0; i < 3; i++ {
		f.at(testNow.Add(time.Duration(i) * time.Hour))
		_, err := f.stock.CreateInvoice(ctx, invoiceInput("c1", "10", line("i1", 1)))
		require.NoError(t, err)
	}

	recent, err := f.projection.RecentInvoices(ctx, userA, companyA, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].InvoiceNumber)
	assert.Equal(t, int64(2), recent[1].InvoiceNumber)
}
