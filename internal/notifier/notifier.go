// Package notifier delivers best-effort order confirmations. Send is
// dispatched after the checkout transaction commits and its outcome never
// influences the order.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier sends a message to a recipient. Implementations report success
// with a bool; callers log failures and move on.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, content string) bool
}

// LogNotifier is the fallback used when no delivery backend is
// configured: it records what would have been sent.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Send(ctx context.Context, recipient, subject, content string) bool {
	n.Logger.Info("notification suppressed (no sender configured)",
		"recipient", recipient, "subject", subject)
	return false
}

// HTTPNotifier posts messages to a SendGrid-style mail API.
type HTTPNotifier struct {
	url    string
	apiKey string
	from   string
	http   *http.Client
	logger *slog.Logger
}

func NewHTTPNotifier(url, apiKey, from string, logger *slog.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		url:    url,
		apiKey: apiKey,
		from:   from,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type mailPayload struct {
	Personalizations []struct {
		To []map[string]string `json:"to"`
	} `json:"personalizations"`
	From    map[string]string `json:"from"`
	Subject string            `json:"subject"`
	Content []map[string]string `json:"content"`
}

func (n *HTTPNotifier) Send(ctx context.Context, recipient, subject, content string) bool {
	var p mailPayload
	p.Personalizations = append(p.Personalizations, struct {
		To []map[string]string `json:"to"`
	}{To: []map[string]string{{"email": recipient}}})
	p.From = map[string]string{"email": n.from}
	p.Subject = subject
	p.Content = []map[string]string{{"type": "text/plain", "value": content}}

	b, err := json.Marshal(p)
	if err != nil {
		n.logger.Error("notification marshal failed", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		n.logger.Error("notification request failed", "error", err)
		return false
	}

	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logger.Error("notification send failed", "recipient", recipient, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error("notification rejected",
			"recipient", recipient, "status", resp.StatusCode)
		return false
	}

	return true
}

// OrderConfirmation formats the confirmation message for a committed order.
func OrderConfirmation(orderID string, totalCents int64) (subject, content string) {
	subject = "Your order is confirmed"
	content = fmt.Sprintf(
		"Order %s is confirmed. Total: %d.%02d. Your tickets are available in your account.",
		orderID, totalCents/100, totalCents%100,
	)
	return subject, content
}
