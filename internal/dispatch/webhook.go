// Package dispatch posts formatted text to the notification endpoint.
package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatrelay/internal/domain"
)

const (
	// maxChars is the endpoint payload cap in runes. Discord-style webhooks
	// reject messages near 2000 characters, so oversized text is truncated
	// with a trailing marker instead of risking a hard rejection.
	maxChars = 1900

	ellipsis = "..."

	requestTimeout = 10 * time.Second

	// bodySnippet bounds how much of an error response lands in the log.
	bodySnippet = 300
)

// WebhookSender delivers messages with a single synchronous POST carrying
// the text as a JSON "content" field.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a sender for the endpoint URL.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: requestTimeout},
	}
}

// Send dispatches text. Empty text is a no-op. A 4xx/5xx response returns
// the outcome together with a wrapped ErrDeliveryFailed; the loop treats
// that as fatal so endpoint misconfiguration stays visible.
func (s *WebhookSender) Send(text string) (*domain.DeliveryOutcome, error) {
	if text == "" {
		return nil, nil
	}

	text, truncated := Truncate(text)
	outcome := &domain.DeliveryOutcome{Chars: len([]rune(text)), Truncated: truncated}

	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return outcome, fmt.Errorf("%w: encode payload: %v", domain.ErrDeliveryFailed, err)
	}

	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return outcome, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	outcome.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, bodySnippet))
	outcome.Body = string(body)

	if resp.StatusCode >= 400 {
		return outcome, fmt.Errorf("%w: status=%d %s", domain.ErrDeliveryFailed, resp.StatusCode, outcome.Body)
	}
	return outcome, nil
}

// Truncate enforces the payload cap, appending the ellipsis marker when the
// text was cut. Rune-based so multi-byte text is never split mid-character.
func Truncate(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text, false
	}
	return string(runes[:maxChars-len(ellipsis)]) + ellipsis, true
}

// Ensure WebhookSender implements domain.Sender.
var _ domain.Sender = (*WebhookSender)(nil)
