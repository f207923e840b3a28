package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/warp/billing-engine/internal/cache"
	"github.com/warp/billing-engine/internal/document"
	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// RecordEntry appends an entry to the account named by ?id=. The type
// defaults to payment, the only entry the client records by hand.
func (h *Handler) RecordEntry(kind ledger.AccountKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := requireID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		var req LedgerEntryRequest
		if err := h.bind(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		date, err := parseDate("date", req.Date)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ctx := r.Context()
		user, company, err := h.scope(ctx, req.Identity)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		txType := ledger.TransactionType(req.Type)
		if txType == "" {
			txType = ledger.TxPayment
		}
		tx, err := h.Ledger.RecordTransaction(ctx, ledger.RecordInput{
			AccountKind: kind,
			AccountID:   accountID,
			CompanyID:   company.ID,
			UserID:      user.ID,
			Type:        txType,
			Amount:      req.Amount,
			Mode:        ledger.PaymentMode(req.Mode),
			Reference:   req.Reference,
			InvoiceRef:  req.InvoiceRef,
			Date:        date,
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.invalidate(ctx, company.ID)
		writeOK(w, http.StatusCreated, map[string]any{"transaction": toTransactionDTO(*tx)})
	}
}

// ListEntries returns one statement page: ?id=&page=&limit=.
func (h *Handler) ListEntries(kind ledger.AccountKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := requireID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ctx := r.Context()
		_, company, err := h.scope(ctx, identityFromQuery(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		st, err := h.Projection.Statement(ctx, ledger.StatementInput{
			AccountKind: kind,
			AccountID:   accountID,
			CompanyID:   company.ID,
			Page:        queryInt(r, "page", ledger.DefaultPage),
			Limit:       queryInt(r, "limit", ledger.DefaultLimit),
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{
			"transactions":   toStatementDTOs(st),
			"currentBalance": st.Account.CurrentBalance,
			"balanceType":    string(st.Account.BalanceType),
			"balanceDisplay": st.BalanceDisplay,
			"pagination": PaginationDTO{
				Page:       st.Page,
				Limit:      st.Limit,
				Total:      st.Total,
				TotalPages: st.TotalPages,
			},
		})
	}
}

// ReverseEntry appends the reversal of a customer or supplier entry.
func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	var req ReverseRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	user, company, err := h.scope(ctx, req.Identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rev, err := h.Ledger.ReverseTransaction(ctx, ledger.ReverseInput{
		TransactionID: ledger.TransactionID(req.TransactionID),
		CompanyID:     company.ID,
		UserID:        user.ID,
		Reference:     req.Reference,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusCreated, map[string]any{"reversal": toTransactionDTO(*rev)})
}

// UndoReverse removes the reversal named by ?id= and reactivates its
// original. Only the account's latest entry can be undone.
func (h *Handler) UndoReverse(w http.ResponseWriter, r *http.Request) {
	reversalID, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req Identity
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	_, company, err := h.scope(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Ledger.UndoReversal(ctx, ledger.UndoInput{
		ReversalTxnID: ledger.TransactionID(reversalID),
		CompanyID:     company.ID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{
		"message":        "reversal undone",
		"accountKind":    string(res.AccountKind),
		"accountId":      res.AccountID,
		"originalTxnId":  string(res.OriginalTxnID),
		"currentBalance": res.Balance,
		"balanceType":    string(res.BalanceType),
		"balanceDisplay": ledger.BalanceDisplay(res.Balance),
	})
}

// =============================================================================
// REPORTS
// =============================================================================

// OverdueCustomers lists customers with unpaid invoices past due.
func (h *Handler) OverdueCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	key := cache.Key(company.ID, "overdue")
	customers, err := cachedReport(ctx, h, company.ID, key, func() ([]OverdueCustomerDTO, error) {
		overdue, err := h.Projection.OverdueCustomers(ctx, company.ID)
		if err != nil {
			return nil, err
		}
		return toOverdueDTOs(overdue), nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"customers": customers})
}

type quickInfoResponse struct {
	Success bool `json:"success"`
	QuickInfoDTO
}

// QuickInfo returns dashboard figures for ?filter=today (default) or
// ?filter=last7days.
func (h *Handler) QuickInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rng := ledger.QuickInfoRange(strings.ToLower(r.URL.Query().Get("filter")))
	switch rng {
	case "":
		rng = ledger.RangeToday
	case ledger.RangeToday, ledger.RangeLast7Days:
	default:
		h.fail(w, r, &ledger.ValidationError{Field: "filter", Message: "must be today or last7days"})
		return
	}

	key := cache.Key(company.ID, "quick-info", user.ID, string(rng))
	info, err := cachedReport(ctx, h, company.ID, key, func() (QuickInfoDTO, error) {
		q, err := h.Projection.QuickInfo(ctx, ledger.QuickInfoInput{
			UserID:    user.ID,
			CompanyID: company.ID,
			Range:     rng,
		})
		if err != nil {
			return QuickInfoDTO{}, err
		}
		return toQuickInfoDTO(q), nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quickInfoResponse{Success: true, QuickInfoDTO: info})
}

// statementPageSize bounds each read while exporting a full statement.
const statementPageSize = 500

// StatementExport streams the whole ledger of ?id= as an .xlsx workbook.
// ?kind=supplier exports a supplier ledger.
func (h *Handler) StatementExport(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	kind := ledger.AccountCustomer
	switch r.URL.Query().Get("kind") {
	case "supplier", "vendor":
		kind = ledger.AccountSupplier
	}
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var full *ledger.Statement
	for page := 1; full == nil || page <= full.TotalPages; page++ {
		st, err := h.Projection.Statement(ctx, ledger.StatementInput{
			AccountKind: kind,
			AccountID:   accountID,
			CompanyID:   company.ID,
			Page:        page,
			Limit:       statementPageSize,
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if full == nil {
			full = st
			continue
		}
		full.Lines = append(full.Lines, st.Lines...)
	}

	data, err := document.StatementXLSX(full)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "statement-"+accountID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// VerifyLedger compares every cached balance of the company with a replay
// of its ledger.
func (h *Handler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	drift, err := h.Projection.VerifyBalances(ctx, company.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"consistent": len(drift) == 0,
		"drift":      toDriftDTOs(drift),
	})
}
