// =============================================================================
// Usage Insights Reporter - Slack Notifier
// =============================================================================
//
// This module is the output boundary of the system: it posts the finished
// report text to a Slack incoming webhook. Sending is a single opaque
// operation; the core never retries and never inspects transport failures
// beyond surfacing them as a TransportError.
//
// =============================================================================

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TransportError reports a failed webhook delivery. The report was built
// correctly; only the send failed.
type TransportError struct {
	// StatusCode is the HTTP status returned by the webhook, or zero if the
	// request never completed.
	StatusCode int

	// Cause describes the failure.
	Cause string
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("notification transport failed with status %d: %s", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("notification transport failed: %s", e.Cause)
}

// SlackNotifier posts messages to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSlackNotifier creates a notifier for the given webhook URL.
func NewSlackNotifier(webhookURL string, timeout time.Duration, logger *zap.Logger) (*SlackNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("missing Slack webhook URL")
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Send posts the text to the webhook as a {"text": ...} payload.
// A non-2xx response or a transport failure yields a TransportError.
func (n *SlackNotifier) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &TransportError{Cause: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &TransportError{
			StatusCode: resp.StatusCode,
			Cause:      strings.TrimSpace(string(body)),
		}
	}

	n.logger.Info("report posted to Slack", zap.Int("bytes", len(text)))
	return nil
}
