package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

// Mailer sends transactional email through the Postmark API.
type Mailer struct {
	serverToken string
	fromEmail   string
	endpoint    string
	httpClient  *http.Client
}

type MailerOption func(*Mailer)

func WithHTTPClient(c *http.Client) MailerOption {
	return func(m *Mailer) {
		m.httpClient = c
	}
}

// WithEndpoint overrides the API endpoint, for tests.
func WithEndpoint(url string) MailerOption {
	return func(m *Mailer) {
		m.endpoint = url
	}
}

func NewMailer(serverToken, fromEmail string, opts ...MailerOption) *Mailer {
	m := &Mailer{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		endpoint:    postmarkURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured returns true if the server token is set.
func (m *Mailer) Configured() bool {
	return m.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody,omitempty"`
	TextBody string `json:"TextBody"`
}

// Send delivers one message. Failures are returned to the caller, who is
// expected to enqueue for retry rather than retry here.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.Configured() {
		return fmt.Errorf("mailer not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     m.fromEmail,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", m.serverToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
