package document

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

const invoiceEmailTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Invoice from {{.Company}}</title>
  <style>
    body { font-family: Arial, sans-serif; background-color: #f9f9f9; margin: 0; padding: 0; color: #333; }
    .container { max-width: 600px; margin: 20px auto; background: #ffffff; padding: 25px; border-radius: 10px; border: 1px solid #e0e0e0; }
    .header { text-align: center; padding-bottom: 20px; border-bottom: 2px solid #eeeeee; }
    .header h1 { font-size: 22px; margin: 10px 0; color: #222; }
    .content { padding: 20px; font-size: 16px; line-height: 1.6; }
    .invoice-details { background: #f4f4f4; padding: 15px; border-radius: 8px; margin: 20px 0; font-size: 15px; }
    .invoice-details p { margin: 6px 0; }
    .cta-button { display: block; text-align: center; background: #4f46e5; color: #ffffff; padding: 12px; text-decoration: none; font-weight: bold; border-radius: 6px; margin-top: 20px; }
    .footer { text-align: center; font-size: 12px; color: #777; margin-top: 30px; padding-top: 10px; border-top: 1px solid #eeeeee; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Invoice from {{.Company}}</h1>
    </div>
    <div class="content">
      <p>Dear <strong>{{.Customer}}</strong>,</p>
      <p>Your invoice details are below:</p>
      <div class="invoice-details">
        <p><strong>Invoice Number:</strong> {{.Number}}</p>
        <p><strong>Invoice Date:</strong> {{formatDate .Date}}</p>
        {{if not .DueDate.IsZero}}<p><strong>Due Date:</strong> {{formatDate .DueDate}}</p>{{end}}
        <p><strong>Amount:</strong> &#8377;{{money .Total}}</p>
      </div>
      <p>Your invoice is attached for reference. If you have any questions, feel free to reach out to us.</p>
      {{if .DownloadURL}}<a href="{{.DownloadURL}}" class="cta-button">Download Invoice</a>{{end}}
    </div>
    <div class="footer">
      <p>&copy; {{.Year}} {{.Company}} | All rights reserved.</p>
    </div>
  </div>
</body>
</html>`

type emailView struct {
	Company     string
	Customer    string
	Number      int64
	Date        time.Time
	DueDate     time.Time
	Total       decimal.Decimal
	DownloadURL string
	Year        int
}

// Renderer produces invoice PDFs and email bodies.
type Renderer struct {
	email *template.Template
	now   func() time.Time
}

func NewRenderer() *Renderer {
	funcs := template.FuncMap{
		"formatDate": formatDate,
		"money":      money,
	}
	return &Renderer{
		email: template.Must(template.New("invoice-email").Funcs(funcs).Parse(invoiceEmailTemplate)),
		now:   time.Now,
	}
}

// EmailSubject is the subject line for an invoice email.
func EmailSubject(doc InvoiceDocument) string {
	return fmt.Sprintf("Invoice #%d from %s", doc.Number, doc.Company.Name)
}

func (r *Renderer) RenderInvoiceEmail(doc InvoiceDocument) (string, error) {
	view := emailView{
		Company:     doc.Company.Name,
		Customer:    doc.Customer.Name,
		Number:      doc.Number,
		Date:        doc.InvoiceDate,
		DueDate:     doc.DueDate,
		Total:       doc.Total,
		DownloadURL: doc.DownloadURL,
		Year:        r.now().Year(),
	}
	if view.Company == "" {
		view.Company = "Your Company"
	}
	if view.Customer == "" {
		view.Customer = "Valued Customer"
	}

	var buf bytes.Buffer
	if err := r.email.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render invoice %d email: %w", doc.Number, err)
	}
	return buf.String(), nil
}
