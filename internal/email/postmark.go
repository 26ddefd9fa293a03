package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

// Config holds the Postmark credentials and the public app URL used in links.
type Config struct {
	ServerToken string `yaml:"server_token"`
	FromEmail   string `yaml:"from_email"`
	AppURL      string `yaml:"app_url"`
}

type Client struct {
	serverToken string
	fromEmail   string
	appURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		serverToken: cfg.ServerToken,
		fromEmail:   cfg.FromEmail,
		appURL:      cfg.AppURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token and sender are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.fromEmail != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream,omitempty"`
}

// SendInvite e-mails a household invite code.
func (c *Client) SendInvite(ctx context.Context, to, inviterName, householdName, inviteCode string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	if inviterName == "" {
		inviterName = "Someone"
	}
	subject := fmt.Sprintf("%s invited you to %s on SmartCart", inviterName, householdName)

	textBody := fmt.Sprintf(
		"%s invited you to share the %s grocery list.\n\nYour invite code is: %s\n",
		inviterName, householdName, inviteCode,
	)
	htmlBody := fmt.Sprintf(
		`<p>%s invited you to share the <strong>%s</strong> grocery list.</p><p>Your invite code is: <strong>%s</strong></p>`,
		html.EscapeString(inviterName), html.EscapeString(householdName), inviteCode,
	)
	if c.appURL != "" {
		link := fmt.Sprintf("%s/join?code=%s", c.appURL, inviteCode)
		textBody += fmt.Sprintf("\nJoin here: %s\n", link)
		htmlBody += fmt.Sprintf(`<p><a href="%s">Join %s</a></p>`, link, html.EscapeString(householdName))
	}

	return c.send(ctx, postmarkEmail{
		From:          c.fromEmail,
		To:            to,
		Subject:       subject,
		HtmlBody:      htmlBody,
		TextBody:      textBody,
		MessageStream: "outbound",
	})
}

func (c *Client) send(ctx context.Context, msg postmarkEmail) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
