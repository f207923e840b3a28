package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct {
	From        string   `json:"from"`
	To          []string `json:"to"`
	Subject     string   `json:"subject"`
	HTML        string   `json:"html"`
	Attachments []struct {
		Filename string          `json:"filename"`
		Content  json.RawMessage `json:"content"`
	} `json:"attachments"`
}

func TestHTTPSender_Send(t *testing.T) {
	// GIVEN: a mail API that accepts the message
	var got sentEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	s, err := NewHTTPSender(srv.URL, "re_test", "billing@example.com")
	require.NoError(t, err)

	// WHEN: an invoice email with a PDF is sent
	receipt, err := s.Send(context.Background(), Message{
		To:      []string{"ravi@example.com"},
		Subject: "Invoice #42",
		HTML:    "<p>hi</p>",
		Attachments: []Attachment{
			{FileName: "Invoice-42.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")},
		},
	})

	// THEN: the API receives the message and its id comes back
	require.NoError(t, err)
	assert.Equal(t, "msg_123", receipt.ID)
	assert.Equal(t, "billing@example.com", got.From)
	assert.Equal(t, []string{"ravi@example.com"}, got.To)
	assert.Equal(t, "Invoice #42", got.Subject)
	assert.Equal(t, "<p>hi</p>", got.HTML)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "Invoice-42.pdf", got.Attachments[0].Filename)
	assert.NotEmpty(t, got.Attachments[0].Content)
}

func TestHTTPSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"invalid from"}`))
	}))
	defer srv.Close()

	s, err := NewHTTPSender(srv.URL+"/", "k", "x")
	require.NoError(t, err)

	_, err = s.Send(context.Background(), Message{To: []string{"a@b.c"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid from")
}

func TestNewHTTPSender_BadURL(t *testing.T) {
	_, err := NewHTTPSender("http://[::1", "k", "x")

	assert.Error(t, err)
}

func TestSend_NoRecipient(t *testing.T) {
	s, err := NewHTTPSender("", "k", "x")
	require.NoError(t, err)

	_, err = s.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNoRecipient)

	_, err = LogSender{}.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestLogSender(t *testing.T) {
	r, err := LogSender{}.Send(context.Background(), Message{To: []string{"a@b.c"}, Subject: "s"})
	require.NoError(t, err)
	assert.Equal(t, "logged", r.ID)
}
