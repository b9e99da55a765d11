package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultEndpoint = "https://api.resend.com/emails"

// Attachment is sent inline as base64 content.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Email is a single outbound message.
type Email struct {
	To          []string
	Bcc         []string
	ReplyTo     string
	Subject     string
	Text        string
	Attachments []Attachment
}

type sendRequest struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Bcc         []string     `json:"bcc,omitempty"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Client sends transactional email through the Resend HTTP API. Outbound
// calls share a token bucket so a burst of submissions cannot exhaust the
// provider quota.
type Client struct {
	apiKey   string
	from     string
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

func New(apiKey, from string) *Client {
	return &Client{
		apiKey:   apiKey,
		from:     from,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		// 2 rps with a small burst is far under the provider limit.
		limiter: rate.NewLimiter(rate.Limit(2), 5),
	}
}

// WithEndpoint points the client at a different API base, used in tests.
func (c *Client) WithEndpoint(url string) *Client {
	c.endpoint = url
	return c
}

// Configured reports whether sending can be attempted at all.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.from != ""
}

func (c *Client) Send(ctx context.Context, email Email) error {
	if !c.Configured() {
		return fmt.Errorf("mailer not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail throttle: %w", err)
	}

	payload, err := json.Marshal(sendRequest{
		From:        c.from,
		To:          email.To,
		Bcc:         email.Bcc,
		ReplyTo:     email.ReplyTo,
		Subject:     email.Subject,
		Text:        email.Text,
		Attachments: email.Attachments,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
