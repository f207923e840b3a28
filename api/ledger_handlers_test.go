/*
ledger_handlers_test.go - HTTP tests for ledger entries and reports

Tests for:
- Recording, reversing and undoing customer entries
- Statement pagination
- Quick info and overdue reports, including cache invalidation
- Statement export and ledger verification
*/
package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCustomer(t *testing.T, env *testEnv, seed *DemoSeed, name string, opening float64) string {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/customer", withIdentity(seed, map[string]any{
		"fullName":       name,
		"openingBalance": opening,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return object(t, decode(t, rec), "customer")["_id"].(string)
}

func TestLedger_RecordReverseUndo(t *testing.T) {
	// GIVEN: A customer opening at 500
	env := setupTestHandler(t)
	seed := env.seed()
	id := createCustomer(t, env, seed, "Chetan Agencies", 500)

	// WHEN: A payment of 200 is recorded
	rec := env.do(http.MethodPost, "/api/customer-transcation?id="+id, withIdentity(seed, map[string]any{
		"amount": 200,
		"mode":   "cash",
	}))

	// THEN: The balance drops to 300
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := object(t, decode(t, rec), "transaction")
	assert.Equal(t, "payment", payment["type"])
	assert.Equal(t, 300.0, payment["balanceAfter"])
	assert.Equal(t, "300.00 Cr", payment["balanceDisplay"])
	assert.Equal(t, id, payment["customerId"])

	// WHEN: It is reversed
	rec = env.do(http.MethodPost, "/api/customer-tranreverse", withIdentity(seed, map[string]any{
		"transactionId": payment["_id"],
	}))

	// THEN: The balance is back at 500 and the reversal points at the payment
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reversal := object(t, decode(t, rec), "reversal")
	assert.Equal(t, "reversal_payment", reversal["type"])
	assert.Equal(t, 500.0, reversal["balanceAfter"])
	assert.Equal(t, payment["_id"], reversal["originalTxnId"])

	// AND: Reversing again conflicts
	rec = env.do(http.MethodPost, "/api/customer-tranreverse", withIdentity(seed, map[string]any{
		"transactionId": payment["_id"],
	}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// WHEN: The reversal is undone
	rec = env.do(http.MethodPost, "/api/undo-reverse?id="+reversal["_id"].(string), identity(seed))

	// THEN: The payment is active again at 300
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, 300.0, body["currentBalance"])
	assert.Equal(t, payment["_id"], body["originalTxnId"])

	rec = env.do(http.MethodGet, path(seed, "/api/customer-transcation", "id", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	require.Len(t, body["transactions"], 1)
	assert.Equal(t, false, body["transactions"].([]any)[0].(map[string]any)["reversed"])
	assert.Equal(t, 300.0, body["currentBalance"])
}

func TestLedger_UndoAfterNewerEntryConflicts(t *testing.T) {
	// GIVEN: Asha's reversed manual payment
	env := setupTestHandler(t)
	seed := env.seed()

	// WHEN: Another entry lands after the reversal
	rec := env.do(http.MethodPost, "/api/customer-transcation?id="+seed.CustomerIDs[0], withIdentity(seed, map[string]any{
		"amount": 50,
		"mode":   "upi",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The reversal can no longer be undone
	rec = env.do(http.MethodPost, "/api/undo-reverse?id="+string(seed.ReversalID), identity(seed))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestLedger_RecordRejectsBadInput(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	tests := []struct {
		name   string
		target string
		body   map[string]any
		status int
	}{
		{"zero amount", "/api/customer-transcation?id=" + seed.CustomerIDs[0], map[string]any{"amount": 0}, http.StatusBadRequest},
		{"bad mode", "/api/customer-transcation?id=" + seed.CustomerIDs[0], map[string]any{"amount": 10, "mode": "gold"}, http.StatusBadRequest},
		{"missing id", "/api/customer-transcation", map[string]any{"amount": 10}, http.StatusBadRequest},
		{"unknown account", "/api/customer-transcation?id=nobody", map[string]any{"amount": 10, "mode": "cash"}, http.StatusNotFound},
		{"payment without mode", "/api/customer-transcation?id=" + seed.CustomerIDs[0], map[string]any{"amount": 10}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, tt.target, withIdentity(seed, tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestLedger_StatementPagination(t *testing.T) {
	// GIVEN: Asha has four entries (invoice, invoice payment, payment, reversal)
	env := setupTestHandler(t)
	seed := env.seed()

	// WHEN: Reading pages of two
	rec := env.do(http.MethodGet, path(seed, "/api/customer-transcation", "id", seed.CustomerIDs[0], "limit", "2", "page", "2"), nil)

	// THEN: The second page holds the last two entries
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Len(t, body["transactions"], 2)
	assert.Equal(t, 600.0, body["currentBalance"])
	assert.Equal(t, "600.00 Cr", body["balanceDisplay"])
	pagination := object(t, body, "pagination")
	assert.Equal(t, 4.0, pagination["total"])
	assert.Equal(t, 2.0, pagination["totalPages"])
	assert.Equal(t, 2.0, pagination["page"])
}

func TestLedger_SupplierEntries(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodPost, "/api/vendor-transcation?id="+seed.SupplierID, withIdentity(seed, map[string]any{
		"amount": 250,
		"mode":   "neft",
	}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := object(t, decode(t, rec), "transaction")
	assert.Equal(t, seed.SupplierID, tx["vendor"])
	assert.Equal(t, 350.0, tx["balanceAfter"])

	// A customer route never reaches a supplier account.
	rec = env.do(http.MethodGet, path(seed, "/api/customer-transcation", "id", seed.SupplierID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestQuickInfo_InvalidatedByNewInvoice(t *testing.T) {
	// GIVEN: Two invoices and one invoice payment created today
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodGet, path(seed, "/api/quick-info"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "today", body["filter"])
	assert.Equal(t, 2.0, body["numInvoices"])
	assert.Equal(t, 495.0, body["totalInvoiceAmount"])
	assert.Equal(t, 100.0, body["totalPaymentsCollected"])
	assert.Equal(t, 1.0, body["numPendingInvoices"])

	// WHEN: Another invoice is created
	rec = env.do(http.MethodPost, "/api/invoice", notebookInvoice(seed, 1))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The cached figures are replaced
	rec = env.do(http.MethodGet, path(seed, "/api/quick-info"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, 3.0, body["numInvoices"])
	assert.Equal(t, 2.0, body["numPendingInvoices"])
}

func TestQuickInfo_RejectsUnknownFilter(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodGet, path(seed, "/api/quick-info", "filter", "lastyear"), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverdueCustomers(t *testing.T) {
	// GIVEN: Asha's invoice #1 was due three days ago, Bharat's is not due
	env := setupTestHandler(t)
	seed := env.seed()

	// WHEN: Listing overdue customers
	rec := env.do(http.MethodGet, path(seed, "/api/customers-overdue"), nil)

	// THEN: Only Asha is listed, owing her full balance
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	customers := decode(t, rec)["customers"].([]any)
	require.Len(t, customers, 1)
	asha := customers[0].(map[string]any)
	assert.Equal(t, seed.CustomerIDs[0], asha["customerId"])
	assert.Equal(t, 600.0, asha["totalDue"])
	invoices := asha["invoices"].([]any)
	require.Len(t, invoices, 1)
	inv := invoices[0].(map[string]any)
	assert.Equal(t, 100.0, inv["dueAmount"])
	assert.Equal(t, 3.0, inv["daysOverdue"])
}

func TestStatementExport(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodGet, path(seed, "/api/customer-statement", "id", seed.CustomerIDs[0]), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "statement-"+seed.CustomerIDs[0]+".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestVerifyLedger(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodGet, path(seed, "/api/ledger-verify"), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["consistent"])
	assert.Empty(t, body["drift"])
}
