package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint, used in tests.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendAuthCode emails a 6-digit sign-in code.
func (c *Client) SendAuthCode(toEmail, code, purpose string) error {
	var subject, action string
	switch purpose {
	case "login":
		subject = "Sign in to Habitloop"
		action = "sign in"
	case "register":
		subject = "Welcome to Habitloop"
		action = "complete your registration"
	default:
		subject = "Your Habitloop code"
		action = "continue"
	}

	textBody := fmt.Sprintf("Use this code to %s:\n\n%s\n\nThe code expires in 15 minutes.", action, code)
	htmlBody := fmt.Sprintf(
		`<p>Use this code to %s:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>The code expires in 15 minutes.</p>`,
		action, code,
	)

	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

// SendInvite emails a group invitation link.
func (c *Client) SendInvite(toEmail, token, groupName, inviterName string) error {
	link := fmt.Sprintf("%s/invites/accept?token=%s", c.baseURL, token)
	subject := fmt.Sprintf("%s invited you to %s on Habitloop", inviterName, groupName)
	textBody := fmt.Sprintf("%s invited you to join %s.\n\nAccept the invitation:\n\n%s\n\nThe invitation expires in 7 days.",
		inviterName, groupName, link)
	htmlBody := fmt.Sprintf(
		`<p>%s invited you to join <strong>%s</strong>.</p><p><a href="%s">Accept the invitation</a></p><p>The invitation expires in 7 days.</p>`,
		inviterName, groupName, link,
	)

	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

func (c *Client) send(payload postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", c.apiURL, bytes.NewReader(body))
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
