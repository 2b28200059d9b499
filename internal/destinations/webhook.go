package destinations

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"notifyrelay/internal/types"
)

// maxResponseBodyRead limits how much of a webhook response body is read
// for error messages.
const maxResponseBodyRead = 4096

// WebhookDestination delivers payloads via HTTP POST. Response handling:
//
//   - 2xx: success (the endpoint accepted the message)
//   - 429: transient (throttling; redelivery will retry)
//   - other 4xx: permanent (the request will never be accepted as-is)
//   - 5xx: transient
//   - network error / timeout: transient
type WebhookDestination struct {
	httpClient *http.Client
	userAgent  string
	logger     types.Logger
}

// NewWebhookDestination creates a webhook destination with a timeout-bounded
// HTTP client. A request that cannot complete within the timeout fails
// transient rather than hanging the batch.
func NewWebhookDestination(timeout time.Duration, userAgent string, logger types.Logger) *WebhookDestination {
	return &WebhookDestination{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// NewWebhookDestinationWithClient creates a webhook destination with a
// caller-supplied HTTP client. This constructor exists for testing.
func NewWebhookDestinationWithClient(client *http.Client, userAgent string, logger types.Logger) *WebhookDestination {
	return &WebhookDestination{
		httpClient: client,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Send POSTs the payload to the target URL with Content-Type
// application/json and the target's optional auth header.
func (d *WebhookDestination) Send(ctx context.Context, target types.WebhookTarget, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(payload))
	if err != nil {
		return types.Permanent("webhook.send", "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if target.AuthHeaderName != "" {
		req.Header.Set(target.AuthHeaderName, target.AuthHeaderValue.Unmask())
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// Timeouts and other network errors are retryable.
		return types.Transient("webhook.send", "network error", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		d.logger.Info("webhook delivered",
			"destination", target.URL,
			"status", resp.StatusCode,
			"payload_size", len(payload),
		)
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return types.Transient("webhook.send",
			fmt.Sprintf("rate limited (429): %s", truncateBody(body)), nil)

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return types.Permanent("webhook.send",
			fmt.Sprintf("client error %d: %s", resp.StatusCode, truncateBody(body)), nil)

	default: // 5xx and anything unexpected
		return types.Transient("webhook.send",
			fmt.Sprintf("server error %d: %s", resp.StatusCode, truncateBody(body)), nil)
	}
}

// truncateBody trims a response body for inclusion in error reasons.
func truncateBody(body []byte) string {
	const maxLen = 200
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
