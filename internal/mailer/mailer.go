// Package mailer sends transactional email through the configured
// provider's HTTP API. It satisfies the campaign dispatcher's Sender
// contract.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/opencivic/memberhub/internal/config"
	"github.com/opencivic/memberhub/internal/pkg/httpretry"
	"github.com/opencivic/memberhub/internal/pkg/logger"
	"github.com/opencivic/memberhub/internal/service/campaign"
)

// ProviderError is a non-2xx response from the mail provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mail provider error: status %d: %s", e.StatusCode, e.Message)
}

// Client sends messages through the provider's /send endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// New creates a mail client. A nil doer gets a retrying client with the
// configured timeout.
func New(cfg config.MailConfig, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, 3)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: doer,
	}
}

type sendRequest struct {
	From    address `json:"from"`
	To      address `json:"to"`
	ReplyTo string  `json:"reply_to,omitempty"`
	Subject string  `json:"subject"`
	HTML    string  `json:"html"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send delivers one message and returns the provider message ID.
// Implements campaign.Sender.
func (c *Client) Send(ctx context.Context, msg campaign.Message) (string, error) {
	payload := sendRequest{
		From:    address{Email: msg.FromEmail, Name: msg.FromName},
		To:      address{Email: msg.To, Name: msg.ToName},
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var parsed sendResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= 400 {
		message := parsed.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		logger.Warn("mail provider rejected message", "recipient", msg.To, "status", resp.StatusCode)
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: message}
	}

	return parsed.MessageID, nil
}

var _ campaign.Sender = (*Client)(nil)
