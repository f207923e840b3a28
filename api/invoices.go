package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// INVOICES
// =============================================================================

// ListInvoices returns one page of the company's invoices, newest first, or
// a single invoice with ?id=. Filters: ?status=unpaid,partial ?customerId=.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		inv, err := h.ownedInvoice(r, id, company.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{"invoice": toInvoiceDTO(*inv)})
		return
	}

	filter := ledger.InvoiceFilter{
		CompanyID:   company.ID,
		CustomerID:  q.Get("customerId"),
		NewestFirst: true,
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := ledger.InvoiceStatus(strings.TrimSpace(s))
			if !status.Valid() {
				h.fail(w, r, &ledger.ValidationError{Field: "status", Message: "must be unpaid, partial or paid"})
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	total, err := h.Store.CountInvoices(ctx, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := queryInt(r, "page", ledger.DefaultPage)
	limit := queryInt(r, "limit", ledger.DefaultLimit)
	filter.Offset = (page - 1) * limit
	filter.Limit = limit
	invoices, err := h.Store.ListInvoices(ctx, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, map[string]any{
		"invoices":   toInvoiceDTOs(invoices),
		"pagination": PaginationDTO{Page: page, Limit: limit, Total: total, TotalPages: totalPages(total, limit)},
	})
}

// CreateInvoice numbers the invoice, takes stock and posts it to the
// customer's ledger.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	invoiceDate, err := parseDate("invoiceDate", req.InvoiceDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dueDate, err := parseDate("dueDate", req.DueDate)
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

	lines := make([]ledger.InvoiceLine, len(req.Items))
	for i, l := range req.Items {
		lines[i] = ledger.InvoiceLine{ItemID: l.ItemID, Quantity: l.Quantity, SellingPrice: l.SellingPrice}
	}
	inv, err := h.Stock.CreateInvoice(ctx, ledger.CreateInvoiceInput{
		UserID:         user.ID,
		CompanyID:      company.ID,
		CustomerID:     req.CustomerID,
		InvoiceDate:    invoiceDate,
		DueDate:        dueDate,
		OrderNumber:    req.OrderNumber,
		Salesperson:    req.Salesperson,
		Lines:          lines,
		Subtotal:       req.Subtotal,
		Discount:       req.Discount,
		CGST:           req.CGST,
		SGST:           req.SGST,
		Tax:            req.Tax,
		Total:          req.Total,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusCreated, map[string]any{"invoice": toInvoiceDTO(*inv)})
}

// UpdateInvoice edits header fields. Lines and totals never change after
// creation.
func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req UpdateInvoiceRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	invoiceDate, err := parseOptionalDate("invoiceDate", req.InvoiceDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dueDate, err := parseOptionalDate("dueDate", req.DueDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	_, company, err := h.scope(ctx, req.Identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.Stock.UpdateInvoiceDetails(ctx, ledger.UpdateInvoiceInput{
		InvoiceID:      req.ID,
		CompanyID:      company.ID,
		InvoiceDate:    invoiceDate,
		DueDate:        dueDate,
		OrderNumber:    req.OrderNumber,
		Salesperson:    req.Salesperson,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{"invoice": toInvoiceDTO(*inv)})
}

// PayInvoice is the PATCH /invoice form of recording a payment.
func (h *Handler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoicePaymentRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.recordPayment(w, r, req.Identity, req.ID, paymentFields{
		amount:  req.PaidAmount,
		method:  req.PaymentMethod,
		date:    req.PaymentDate,
		details: req.PaymentDetails,
	})
}

// DeleteInvoice returns stock and reverses the invoice's ledger entry.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Stock.DeleteInvoice(ctx, ledger.DeleteInvoiceInput{
		InvoiceID: id,
		CompanyID: company.ID,
		UserID:    user.ID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{
		"message":  "invoice deleted",
		"invoice":  toInvoiceDTO(res.Invoice),
		"restored": toStockChangeDTOs(res.Restored),
		"skipped":  nonNil(res.Skipped),
		"reversal": optionalTransactionDTO(res.Reversal),
	})
}

// NextInvoiceNumber previews the number the next invoice will get.
func (h *Handler) NextInvoiceNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.Sequence.PeekNumber(ctx, user.ID, company.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"invoiceNumber": n})
}

func (h *Handler) RecentInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	invoices, err := h.Projection.RecentInvoices(ctx, user.ID, company.ID, queryInt(r, "limit", 5))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"invoices": toInvoiceDTOs(invoices)})
}

func (h *Handler) ownedInvoice(r *http.Request, id, companyID string) (*ledger.Invoice, error) {
	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.CompanyID != companyID {
		return nil, &ledger.NotFoundError{Entity: "invoice", ID: id}
	}
	return inv, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payments, err := h.Store.ListPayments(ctx, company.ID, r.URL.Query().Get("invoiceId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeOK(w, http.StatusOK, map[string]any{"payments": dtos})
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.recordPayment(w, r, req.Identity, req.InvoiceID, paymentFields{
		amount:  req.AmountPaid,
		method:  req.PaymentMethod,
		date:    req.PaymentDate,
		details: req.TransactionID,
	})
}

type paymentFields struct {
	amount  decimal.Decimal
	method  string
	date    string
	details string
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request, id Identity, invoiceID string, f paymentFields) {
	paidOn, err := parseDate("paymentDate", f.date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	user, company, err := h.scope(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Stock.RecordInvoicePayment(ctx, ledger.InvoicePaymentInput{
		InvoiceID:      invoiceID,
		CompanyID:      company.ID,
		UserID:         user.ID,
		Amount:         f.amount,
		Method:         f.method,
		PaymentDate:    paidOn,
		TransactionRef: f.details,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{
		"invoice":     toInvoiceDTO(res.Invoice),
		"payment":     toPaymentDTO(res.Payment),
		"transaction": toTransactionDTO(res.Transaction),
	})
}

// =============================================================================
// PURCHASE INVOICES
// =============================================================================

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		p, err := h.Store.GetPurchase(ctx, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if p == nil || p.CompanyID != company.ID {
			h.fail(w, r, &ledger.NotFoundError{Entity: "purchase", ID: id})
			return
		}
		writeOK(w, http.StatusOK, map[string]any{"purchase": toPurchaseDTO(*p)})
		return
	}

	purchases, err := h.Store.ListPurchases(ctx, company.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toPurchaseDTO(p)
	}
	writeOK(w, http.StatusOK, map[string]any{"purchases": dtos})
}

// CreatePurchase adds purchased stock and posts the supplier invoice.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	purchaseDate, err := parseDate("purchaseDate", req.PurchaseDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dueDate, err := parseDate("dueDate", req.DueDate)
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
	p, err := h.Stock.CreatePurchase(ctx, ledger.CreatePurchaseInput{
		UserID:              user.ID,
		CompanyID:           company.ID,
		SupplierID:          req.SupplierID,
		SupplierName:        req.SupplierName,
		InvoiceNumber:       req.InvoiceNumber,
		PurchaseOrderNumber: req.PurchaseOrderNumber,
		PurchaseDate:        purchaseDate,
		DueDate:             dueDate,
		Lines:               toPurchaseLines(req.Products),
		Status:              ledger.PurchaseStatus(req.Status),
		TotalAmount:         req.TotalAmount,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusCreated, map[string]any{"purchase": toPurchaseDTO(*p)})
}

// UpdatePurchase applies stock deltas between the stored and the new lines.
// Omitting products keeps the stored lines.
func (h *Handler) UpdatePurchase(w http.ResponseWriter, r *http.Request) {
	var req UpdatePurchaseRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	purchaseDate, err := parseOptionalDate("purchaseDate", req.PurchaseDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dueDate, err := parseOptionalDate("dueDate", req.DueDate)
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
	in := ledger.UpdatePurchaseInput{
		PurchaseID:          req.ID,
		CompanyID:           company.ID,
		UserID:              user.ID,
		SupplierID:          req.SupplierID,
		SupplierName:        req.SupplierName,
		InvoiceNumber:       req.InvoiceNumber,
		PurchaseOrderNumber: req.PurchaseOrderNumber,
		PurchaseDate:        purchaseDate,
		DueDate:             dueDate,
		TotalAmount:         req.TotalAmount,
		Lines:               toPurchaseLines(req.Products),
	}
	if req.Status != nil {
		status := ledger.PurchaseStatus(*req.Status)
		in.Status = &status
	}
	res, err := h.Stock.UpdatePurchase(ctx, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{
		"purchase": toPurchaseDTO(res.Purchase),
		"changes":  toStockChangeDTOs(res.Changes),
		"skipped":  nonNil(res.Skipped),
	})
}

func (h *Handler) SetPurchaseStatus(w http.ResponseWriter, r *http.Request) {
	var req PurchaseStatusRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	_, company, err := h.scope(ctx, req.Identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.Stock.SetPurchaseStatus(ctx, req.ID, company.ID, ledger.PurchaseStatus(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"purchase": toPurchaseDTO(*p)})
}

// DeletePurchase takes the purchased stock back out and reverses the
// supplier entry.
func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Stock.DeletePurchase(ctx, ledger.DeletePurchaseInput{
		PurchaseID: id,
		CompanyID:  company.ID,
		UserID:     user.ID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{
		"message":  "purchase deleted",
		"purchase": toPurchaseDTO(res.Purchase),
		"changes":  toStockChangeDTOs(res.Changes),
		"skipped":  nonNil(res.Skipped),
		"reversal": optionalTransactionDTO(res.Reversal),
	})
}

func optionalTransactionDTO(tx *ledger.Transaction) *TransactionDTO {
	if tx == nil {
		return nil
	}
	dto := toTransactionDTO(*tx)
	return &dto
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
