package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/warp/billing-engine/internal/document"
	"github.com/warp/billing-engine/internal/mailer"
	"github.com/warp/billing-engine/internal/objectstore"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

const whatsappGreeting = "Hello, your invoice is ready. Download it here: "

// PresignUpload returns a signed URL the client PUTs a file to.
func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	signed, err := h.Objects.PresignUpload(r.Context(), req.FileName, req.FileType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"url":    signed.UploadURL,
		"key":    signed.ObjectKey,
		"upload": signed,
	})
}

// SendInvoiceEmail mails the invoice with its PDF attached. The recipient is
// the customer's email unless the body names one.
func (h *Handler) SendInvoiceEmail(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
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
	doc, err := h.invoiceDocument(ctx, company, req.InvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to := req.To
	if to == "" {
		to = doc.Customer.Email
	}
	if to == "" {
		h.fail(w, r, &ledger.ValidationError{Field: "to", Message: "customer has no email address"})
		return
	}

	pdf, err := h.Renderer.RenderInvoicePDF(doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := h.Renderer.RenderInvoiceEmail(doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	receipt, err := h.Mailer.Send(ctx, mailer.Message{
		To:      []string{to},
		Subject: document.EmailSubject(doc),
		HTML:    body,
		Attachments: []mailer.Attachment{{
			FileName:    doc.FileName(),
			ContentType: "application/pdf",
			Content:     pdf,
		}},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	zerolog.Ctx(ctx).Info().Str("invoice", doc.ID).Str("receipt", receipt.ID).Msg("invoice emailed")
	writeOK(w, http.StatusOK, map[string]any{"message": "email sent", "id": receipt.ID, "to": to})
}

// SendInvoiceWhatsApp uploads the invoice PDF and returns a wa.me share link
// pointing at it.
func (h *Handler) SendInvoiceWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
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
	doc, err := h.invoiceDocument(ctx, company, req.InvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pdf, err := h.Renderer.RenderInvoicePDF(doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	key := objectstore.ObjectKey(doc.FileName(), h.Clock.Now())
	pdfURL, err := h.Objects.Upload(ctx, key, "application/pdf", pdf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"whatsappUrl": whatsappLink(doc.Customer.Phone, pdfURL),
		"pdfUrl":      pdfURL,
	})
}

// whatsappLink addresses the customer when an E.164 phone is on file.
func whatsappLink(phone, pdfURL string) string {
	target := "https://wa.me/"
	if digits := strings.TrimPrefix(phone, "+"); digits != "" {
		target += digits
	}
	return target + "?text=" + url.QueryEscape(whatsappGreeting+pdfURL)
}

// invoiceDocument assembles the printable view of an invoice. Items deleted
// since the sale are printed by id.
func (h *Handler) invoiceDocument(ctx context.Context, company *sqlite.Company, invoiceID string) (document.InvoiceDocument, error) {
	inv, err := h.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return document.InvoiceDocument{}, err
	}
	if inv == nil || inv.CompanyID != company.ID {
		return document.InvoiceDocument{}, &ledger.NotFoundError{Entity: "invoice", ID: invoiceID}
	}

	doc := document.InvoiceDocument{
		ID:          inv.ID,
		Number:      inv.InvoiceNumber,
		InvoiceDate: inv.InvoiceDate,
		DueDate:     inv.DueDate,
		Company: document.CompanyView{
			Name:          company.Name,
			Address:       company.Address,
			City:          company.City,
			State:         company.State,
			Zip:           company.Zip,
			GSTNumber:     company.GSTNumber,
			Email:         company.Email,
			ContactNumber: company.ContactNumber,
		},
		Subtotal: inv.Subtotal,
		Discount: inv.Discount,
		CGST:     inv.CGST,
		SGST:     inv.SGST,
		Total:    inv.Total,
	}

	customer, err := h.Store.GetContact(ctx, ledger.AccountCustomer, inv.CustomerID)
	if err != nil {
		return doc, err
	}
	if customer != nil {
		doc.Customer = document.CustomerView{
			Name:    customer.Name,
			Email:   customer.Email,
			Phone:   customer.Phone,
			Address: customer.Address,
			City:    customer.City,
			State:   customer.State,
		}
	}

	banks, err := h.Store.ListBanks(ctx, company.ID)
	if err != nil {
		return doc, err
	}
	if len(banks) > 0 {
		b := banks[0]
		doc.Bank = &document.BankView{
			BankName:      b.BankName,
			AccountName:   b.AccountName,
			AccountNumber: b.AccountNumber,
			IFSCCode:      b.IFSCCode,
		}
	}

	for _, line := range inv.Lines {
		view := document.LineView{Name: line.ItemID, Price: line.SellingPrice, Quantity: line.Quantity}
		item, err := h.Store.GetItem(ctx, line.ItemID)
		if err != nil {
			return doc, err
		}
		if item != nil {
			view.Name = item.Name
			view.HSNCode = item.HSNCode
		}
		doc.Lines = append(doc.Lines, view)
	}
	return doc, nil
}
