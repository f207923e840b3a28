/*
scenarios_test.go - Tests for the demo data loader and balance verifier

PURPOSE:
	Checks that SeedDemo leaves the engine in the state its header promises:
	- Balances reflect invoices, payments and the reversed entry
	- Stock reflects sales and the restock purchase
	- Every cached balance agrees with a replay of its ledger

These double as integration tests across the ledger, stock and sqlite layers.
*/
package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/ledger"
)

func TestScenario_DemoBalances(t *testing.T) {
	// GIVEN: The demo company
	// WHEN: Loading the seed
	// THEN: Each account carries the expected running balance
	env := setupTestHandler(t)
	seed := env.seed()
	ctx := context.Background()
	store := env.handler.Store

	tests := []struct {
		name string
		kind ledger.AccountKind
		id   string
		want int64
	}{
		// opening 500 + invoice 200 - payment 100 + payment 300 - reversal 300
		{"asha", ledger.AccountCustomer, seed.CustomerIDs[0], 600},
		{"bharat", ledger.AccountCustomer, seed.CustomerIDs[1], 295},
		{"kiran", ledger.AccountSupplier, seed.SupplierID, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := store.GetContact(ctx, tt.kind, tt.id)
			require.NoError(t, err)
			require.NotNil(t, c)
			assert.True(t, decimal.NewFromInt(tt.want).Equal(c.CurrentBalance), "balance = %s", c.CurrentBalance)
		})
	}
}

func TestScenario_DemoStock(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()
	ctx := context.Background()

	want := map[string]int64{
		"Notebook": 10 - 4 + 20,
		"Pen":      100 - 10,
		"Stapler":  5 - 1,
	}
	for name, qty := range want {
		item, err := env.handler.Store.GetItem(ctx, seed.ItemIDs[name])
		require.NoError(t, err)
		require.NotNil(t, item, name)
		assert.Equal(t, qty, item.Quantity, name)
	}
}

func TestScenario_DemoInvoices(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()
	ctx := context.Background()

	first, err := env.handler.Store.GetInvoice(ctx, seed.InvoiceIDs[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.InvoiceNumber)
	assert.Equal(t, ledger.InvoicePartial, first.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(first.RemainingBalance))

	second, err := env.handler.Store.GetInvoice(ctx, seed.InvoiceIDs[1])
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.InvoiceNumber)
	assert.Equal(t, ledger.InvoiceUnpaid, second.Status)

	// The reversal is the latest entry on Asha's account and can be undone.
	rev, err := env.handler.Store.GetTransaction(ctx, seed.ReversalID)
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, ledger.TxReversalPayment, rev.Type)
}

func TestScenario_SeedTwiceResets(t *testing.T) {
	env := setupTestHandler(t)
	env.seed()
	seed := env.seed()

	companies, err := env.handler.Store.ListCompanies(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, seed.CompanyID, companies[0].ID)
}

// =============================================================================
// BALANCE VERIFIER
// =============================================================================

func TestBalanceVerifier_NoDriftAfterSeed(t *testing.T) {
	env := setupTestHandler(t)
	env.seed()

	v := NewBalanceVerifier(env.handler.Store, env.handler.Projection, time.Hour)

	assert.Empty(t, v.Check(context.Background()))
}

func TestBalanceVerifier_ReportsTamperedBalance(t *testing.T) {
	// GIVEN: A cached balance changed behind the ledger's back
	env := setupTestHandler(t)
	seed := env.seed()
	ctx := context.Background()
	err := env.handler.Store.SetAccountBalance(ctx, ledger.AccountCustomer, seed.CustomerIDs[1], decimal.NewFromInt(1), ledger.BalanceCredit)
	require.NoError(t, err)

	// WHEN: The verifier runs
	v := NewBalanceVerifier(env.handler.Store, env.handler.Projection, time.Hour)
	drift := v.Check(ctx)

	// THEN: Exactly that account is reported with the replayed figure
	require.Len(t, drift, 1)
	assert.Equal(t, seed.CustomerIDs[1], drift[0].AccountID)
	assert.True(t, decimal.NewFromInt(295).Equal(drift[0].Replayed))
	assert.True(t, decimal.NewFromInt(1).Equal(drift[0].Cached))
}

func TestBalanceVerifier_DisabledInterval(t *testing.T) {
	env := setupTestHandler(t)
	v := NewBalanceVerifier(env.handler.Store, env.handler.Projection, 0)

	v.Start()
	defer v.Stop()

	assert.Nil(t, v.ticker)
}
