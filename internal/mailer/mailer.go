/*
Package mailer delivers invoice emails.

IMPLEMENTATIONS:
  - HTTPSender: sends through the Resend API with resend-go
  - LogSender: logs the message instead of sending it (no API key configured)
*/
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Receipt identifies an accepted message.
type Receipt struct {
	ID string `json:"id"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

var ErrNoRecipient = errors.New("mailer: message has no recipient")

// =============================================================================
// HTTP
// =============================================================================

type HTTPSender struct {
	client *resend.Client
	from   string
}

// NewHTTPSender returns a sender for the Resend API at baseURL, or the
// public endpoint resend-go defaults to when baseURL is empty.
func NewHTTPSender(baseURL, apiKey, from string) (*HTTPSender, error) {
	client := resend.NewCustomClient(&http.Client{Timeout: 30 * time.Second}, apiKey)
	if strings.TrimSpace(baseURL) != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse mail api url: %w", err)
		}
		client.BaseURL = u
	}
	return &HTTPSender{client: client, from: from}, nil
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipient
	}
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.FileName,
			Content:     a.Content,
			ContentType: a.ContentType,
		})
	}

	sent, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	return &Receipt{ID: sent.Id}, nil
}

// =============================================================================
// LOG
// =============================================================================

type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipient
	}
	files := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		files = append(files, a.FileName)
	}
	zerolog.Ctx(ctx).Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Strs("attachments", files).
		Msg("email not sent: no mail api key configured")
	return &Receipt{ID: "logged"}, nil
}
