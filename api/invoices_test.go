package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemQuantity(t *testing.T, env *testEnv, seed *DemoSeed, name string) float64 {
	t.Helper()
	rec := env.do(http.MethodGet, path(seed, "/api/item", "id", seed.ItemIDs[name]), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return object(t, decode(t, rec), "item")["quantity"].(float64)
}

func notebookInvoice(seed *DemoSeed, qty int) map[string]any {
	return withIdentity(seed, map[string]any{
		"customerId": seed.CustomerIDs[1],
		"dueDate":    "2026-03-20",
		"items": []map[string]any{
			{"itemId": seed.ItemIDs["Notebook"], "quantity": qty, "sellingPrice": 50},
		},
		"subtotal": 50 * qty,
		"total":    50 * qty,
	})
}

func TestCreateInvoice_TakesStockAndNumbers(t *testing.T) {
	// GIVEN: 26 notebooks and two invoices already issued
	env := setupTestHandler(t)
	seed := env.seed()

	// WHEN: A third invoice sells 6 notebooks
	rec := env.do(http.MethodPost, "/api/invoice", notebookInvoice(seed, 6))

	// THEN: It gets the next number and stock drops by 6
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := object(t, decode(t, rec), "invoice")
	assert.Equal(t, 3.0, inv["invoiceNumber"])
	assert.Equal(t, "unpaid", inv["status"])
	assert.Equal(t, 300.0, inv["remainingBalance"])
	assert.Equal(t, 20.0, itemQuantity(t, env, seed, "Notebook"))

	rec = env.do(http.MethodGet, path(seed, "/api/invoice-no"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, decode(t, rec)["invoiceNumber"])
}

func TestCreateInvoice_InsufficientStockChangesNothing(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodPost, "/api/invoice", notebookInvoice(seed, 27))

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec)["error"], "insufficient stock")
	assert.Equal(t, 26.0, itemQuantity(t, env, seed, "Notebook"))

	// The failed attempt does not consume a number.
	rec = env.do(http.MethodGet, path(seed, "/api/invoice-no"), nil)
	assert.Equal(t, 3.0, decode(t, rec)["invoiceNumber"])
}

func TestCreateInvoice_Validation(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"no items", withIdentity(seed, map[string]any{"customerId": seed.CustomerIDs[0], "items": []any{}}), "items"},
		{"zero quantity", withIdentity(seed, map[string]any{
			"customerId": seed.CustomerIDs[0],
			"items":      []map[string]any{{"itemId": seed.ItemIDs["Pen"], "quantity": 0}},
		}), "items[0].quantity"},
		{"bad date", withIdentity(seed, map[string]any{
			"customerId":  seed.CustomerIDs[0],
			"invoiceDate": "yesterday",
			"items":       []map[string]any{{"itemId": seed.ItemIDs["Pen"], "quantity": 1}},
		}), "invoiceDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/invoice", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode(t, rec)["error"], tt.field)
		})
	}
}

func TestDeleteInvoice_RestoresStockAndReverses(t *testing.T) {
	// GIVEN: Invoice #2 to Bharat (10 pens, 1 stapler, total 295)
	env := setupTestHandler(t)
	seed := env.seed()

	// WHEN: It is deleted
	rec := env.do(http.MethodDelete, path(seed, "/api/invoice", "id", seed.InvoiceIDs[1]), nil)

	// THEN: Stock returns and Bharat's balance is compensated
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Len(t, body["restored"], 2)
	assert.Empty(t, body["skipped"])
	reversal := object(t, body, "reversal")
	assert.Equal(t, "reversal_invoice", reversal["type"])
	assert.Equal(t, 0.0, reversal["balanceAfter"])

	assert.Equal(t, 100.0, itemQuantity(t, env, seed, "Pen"))
	assert.Equal(t, 5.0, itemQuantity(t, env, seed, "Stapler"))

	rec = env.do(http.MethodGet, path(seed, "/api/invoice", "id", seed.InvoiceIDs[1]), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPayInvoice_SettlesAndPostsLedgerEntry(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodPatch, "/api/invoice", withIdentity(seed, map[string]any{
		"_id":           seed.InvoiceIDs[0],
		"paidAmount":    100,
		"paymentMethod": "bank_transfer",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	inv := object(t, body, "invoice")
	assert.Equal(t, "paid", inv["status"])
	assert.Equal(t, 0.0, inv["remainingBalance"])
	tx := object(t, body, "transaction")
	assert.Equal(t, "payment", tx["type"])
	assert.Equal(t, "neft", tx["mode"])
	assert.Equal(t, 500.0, tx["balanceAfter"])

	rec = env.do(http.MethodGet, path(seed, "/api/payment", "invoiceId", seed.InvoiceIDs[0]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["payments"], 2)
}

func TestCreatePayment_RejectsUnknownMethod(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodPost, "/api/payment", withIdentity(seed, map[string]any{
		"invoiceId":     seed.InvoiceIDs[0],
		"amountPaid":    10,
		"paymentMethod": "barter",
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "paymentMethod must be one of")
}

func TestListInvoices_FilterAndPaginate(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodGet, path(seed, "/api/invoice", "status", "partial"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Len(t, body["invoices"], 1)
	assert.Equal(t, 1.0, object(t, body, "pagination")["total"])

	rec = env.do(http.MethodGet, path(seed, "/api/invoice", "limit", "1", "page", "2"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Len(t, body["invoices"], 1)
	assert.Equal(t, 2.0, object(t, body, "pagination")["totalPages"])

	rec = env.do(http.MethodGet, path(seed, "/api/invoice", "status", "lost"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchase_DeleteTakesBackRestock(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodDelete, path(seed, "/api/purchase-invoice", "id", seed.PurchaseID), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 6.0, itemQuantity(t, env, seed, "Notebook"))

	rec = env.do(http.MethodGet, path(seed, "/api/supplier", "id", seed.SupplierID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, object(t, decode(t, rec), "supplier")["currentBalance"])
}
