package document

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Column widths in mm for the line table (A4 with 15mm margins = 180mm).
var lineColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 10, "C"},
	{"Product Details", 70, "L"},
	{"HSN Code", 25, "L"},
	{"Price", 25, "R"},
	{"Qty.", 20, "R"},
	{"Amount", 30, "R"},
}

const (
	rowHeight = 7.0
	margin    = 15.0
)

// RenderInvoicePDF lays out an invoice on a single A4 page (more when the
// line table overflows).
func (r *Renderer) RenderInvoicePDF(doc InvoiceDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCreationDate(r.now())
	pdf.SetTitle(fmt.Sprintf("Invoice %d", doc.Number), true)
	pdf.SetAuthor(doc.Company.Name, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	// Header: company name on the left, invoice meta on the right.
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(79, 70, 229)
	pdf.CellFormat(110, 10, tr(doc.Company.Name), "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetTextColor(55, 65, 81)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(180, 5, "Date: "+formatDate(doc.InvoiceDate), "", 1, "R", false, 0, "")
	pdf.CellFormat(180, 5, "Invoice #: "+strconv.FormatInt(doc.Number, 10), "", 1, "R", false, 0, "")
	if !doc.DueDate.IsZero() {
		pdf.CellFormat(180, 5, "Due: "+formatDate(doc.DueDate), "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	// From / Bill To
	c := doc.Company
	from := []string{
		c.Name,
		joinNonEmpty(", ", c.Address, c.City, c.Zip),
		c.GSTNumber,
		c.Email,
		c.ContactNumber,
	}
	cu := doc.Customer
	billTo := []string{
		orNA(cu.Name),
		orNA(cu.Address),
		orNA(cu.City) + ", " + orNA(cu.State),
		"Phone: " + orNA(cu.Phone),
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 6, "From", "", 0, "L", false, 0, "")
	pdf.CellFormat(90, 6, "Bill To", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for i := 0; i < max(len(from), len(billTo)); i++ {
		pdf.CellFormat(90, 5, tr(at(from, i)), "", 0, "L", false, 0, "")
		pdf.CellFormat(90, 5, tr(at(billTo, i)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	// Lines
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(249, 250, 251)
	for _, col := range lineColumns {
		pdf.CellFormat(col.width, rowHeight, strings.ToUpper(col.title), "B", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for i, l := range doc.Lines {
		cells := []string{
			strconv.Itoa(i + 1),
			orNA(l.Name),
			orNA(l.HSNCode),
			"Rs. " + money(l.Price),
			strconv.FormatInt(l.Quantity, 10),
			"Rs. " + money(l.Amount()),
		}
		for j, col := range lineColumns {
			pdf.CellFormat(col.width, rowHeight, tr(cells[j]), "B", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	// Totals
	totals := [][2]string{{"Subtotal", money(doc.Subtotal)}}
	if doc.Discount.IsPositive() {
		totals = append(totals, [2]string{"Discount", "-" + money(doc.Discount)})
	}
	totals = append(totals,
		[2]string{"CGST", money(doc.CGST)},
		[2]string{"SGST", money(doc.SGST)},
	)
	for _, t := range totals {
		pdf.CellFormat(130, 6, t[0]+":", "", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, "Rs. "+t[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(79, 70, 229)
	pdf.CellFormat(130, 8, "Grand Total:", "T", 0, "R", false, 0, "")
	pdf.CellFormat(50, 8, "Rs. "+money(doc.Total), "T", 1, "R", false, 0, "")
	pdf.SetTextColor(55, 65, 81)
	pdf.Ln(10)

	if b := doc.Bank; b != nil {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(180, 6, "Bank Details", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range []string{
			"Bank: " + orNA(b.BankName),
			"Account Number: " + orNA(b.AccountNumber),
			"IFSC Code: " + orNA(b.IFSCCode),
			"Account Name: " + orNA(b.AccountName),
		} {
			pdf.CellFormat(180, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %d pdf: %w", doc.Number, err)
	}
	return buf.Bytes(), nil
}

func at(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
