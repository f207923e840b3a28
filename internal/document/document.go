/*
Package document renders invoices and statements for delivery.

OUTPUTS:
  - RenderInvoicePDF: A4 invoice PDF (fpdf), attached to emails and shared
    over WhatsApp
  - RenderInvoiceEmail: HTML email body (html/template)
  - StatementXLSX: customer/vendor ledger export (excelize)

All renderers take plain views so they never touch storage. The api
package assembles an InvoiceDocument from the invoice, its company, bank,
customer and items.
*/
package document

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompanyView is the issuer block.
type CompanyView struct {
	Name          string
	Address       string
	City          string
	State         string
	Zip           string
	GSTNumber     string
	Email         string
	ContactNumber string
}

type BankView struct {
	BankName      string
	AccountName   string
	AccountNumber string
	IFSCCode      string
}

// CustomerView is the "Bill To" block.
type CustomerView struct {
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	State   string
}

type LineView struct {
	Name     string
	HSNCode  string
	Price    decimal.Decimal
	Quantity int64
}

func (l LineView) Amount() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(l.Quantity))
}

type InvoiceDocument struct {
	ID          string
	Number      int64
	InvoiceDate time.Time
	DueDate     time.Time

	Company  CompanyView
	Bank     *BankView
	Customer CustomerView
	Lines    []LineView

	Subtotal decimal.Decimal
	Discount decimal.Decimal
	CGST     decimal.Decimal
	SGST     decimal.Decimal
	Total    decimal.Decimal

	// DownloadURL is linked from the email body when set.
	DownloadURL string
}

// FileName is the attachment name used for the PDF.
func (d InvoiceDocument) FileName() string {
	return "Invoice-" + decimal.NewFromInt(d.Number).String() + ".pdf"
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("02 Jan 2006")
}
