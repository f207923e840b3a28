package api

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendInvoiceEmail_DefaultsToCustomer(t *testing.T) {
	// GIVEN: Invoice #1 to Asha, who has an email on file
	env := setupTestHandler(t)
	seed := env.seed()

	// WHEN: Sending it without naming a recipient
	rec := env.do(http.MethodPost, "/api/send-email", withIdentity(seed, map[string]any{
		"invoiceId": seed.InvoiceIDs[0],
	}))

	// THEN: Asha receives it with the PDF attached
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "asha@example.com", decode(t, rec)["to"])

	require.Len(t, env.mail.sent, 1)
	msg := env.mail.sent[0]
	assert.Equal(t, []string{"asha@example.com"}, msg.To)
	assert.Equal(t, "Invoice #1 from Demo Stationers", msg.Subject)
	assert.Contains(t, msg.HTML, "Asha Traders")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "Invoice-1.pdf", msg.Attachments[0].FileName)
	assert.True(t, bytes.HasPrefix(msg.Attachments[0].Content, []byte("%PDF")))
}

func TestSendInvoiceEmail_ExplicitRecipient(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodPost, "/api/send-email", withIdentity(seed, map[string]any{
		"invoiceId": seed.InvoiceIDs[1],
		"to":        "purchasing@bharat.example",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, []string{"purchasing@bharat.example"}, env.mail.sent[0].To)
}

func TestSendInvoiceEmail_UnknownInvoice(t *testing.T) {
	env := setupTestHandler(t)
	seed := env.seed()

	rec := env.do(http.MethodPost, "/api/send-email", withIdentity(seed, map[string]any{"invoiceId": "missing"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.mail.sent)
}

func TestSendInvoiceWhatsApp(t *testing.T) {
	// GIVEN: Invoice #1 to Asha, whose phone is +919812345678
	env := setupTestHandler(t)
	seed := env.seed()

	// WHEN: Sharing it on WhatsApp
	rec := env.do(http.MethodPost, "/api/send-whatsapp", withIdentity(seed, map[string]any{
		"invoiceId": seed.InvoiceIDs[0],
	}))

	// THEN: The PDF is uploaded and the link addresses Asha
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	pdfURL := body["pdfUrl"].(string)
	require.True(t, strings.HasPrefix(pdfURL, "memory://uploads/"), pdfURL)
	assert.True(t, strings.HasSuffix(pdfURL, "-Invoice-1.pdf"), pdfURL)

	stored, ok := env.objects.Get(strings.TrimPrefix(pdfURL, "memory://"))
	require.True(t, ok)
	assert.Equal(t, "application/pdf", stored.ContentType)

	link, err := url.Parse(body["whatsappUrl"].(string))
	require.NoError(t, err)
	assert.Equal(t, "wa.me", link.Host)
	assert.Equal(t, "/919812345678", link.Path)
	assert.Equal(t, whatsappGreeting+pdfURL, link.Query().Get("text"))
}

func TestWhatsappLink_WithoutPhone(t *testing.T) {
	got := whatsappLink("", "https://cdn.example/inv.pdf")

	assert.True(t, strings.HasPrefix(got, "https://wa.me/?text="), got)
}

func TestPresignUpload(t *testing.T) {
	env := setupTestHandler(t)

	rec := env.do(http.MethodPost, "/api/s3", map[string]any{"fileName": "logo.png", "fileType": "image/png"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.True(t, strings.HasPrefix(body["url"].(string), "memory://upload/uploads/"))
	assert.True(t, strings.HasSuffix(body["key"].(string), "-logo.png"))

	rec = env.do(http.MethodPost, "/api/s3", map[string]any{"fileName": "logo.png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
