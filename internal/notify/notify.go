// Package notify delivers the final session report to the external result
// consumer. Delivery is fire-and-forget from the engine's perspective:
// retries and success confirmation live here, and the HTTP response to the
// counterpart never waits on them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fraudguard/honeytrap/internal/domain"
)

// Report is the final-result payload sent once per finished session.
type Report struct {
	SessionID              string              `json:"sessionId"`
	ScamDetected           bool                `json:"scamDetected"`
	TotalMessagesExchanged int                 `json:"totalMessagesExchanged"`
	ExtractedIntelligence  domain.Intelligence `json:"extractedIntelligence"`
	AgentNotes             string              `json:"agentNotes"`
}

// Dispatcher sends a final report. Implementations own their retry policy.
type Dispatcher interface {
	Dispatch(report Report)
}

// Noop discards reports; used when no callback URL is configured.
type Noop struct{}

func (Noop) Dispatch(Report) {}

// HTTPDispatcher posts reports to a callback URL with a shared-secret
// header, retrying a fixed number of times.
type HTTPDispatcher struct {
	url      string
	apiKey   string
	client   *http.Client
	attempts int
	log      *slog.Logger
}

// NewHTTPDispatcher creates a dispatcher for the given callback URL.
func NewHTTPDispatcher(url, apiKey string, log *slog.Logger) *HTTPDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPDispatcher{
		url:      url,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 5 * time.Second},
		attempts: 3,
		log:      log,
	}
}

// Dispatch posts the report, retrying up to the attempt budget. It blocks
// until delivered or exhausted, so callers run it on its own goroutine.
func (d *HTTPDispatcher) Dispatch(report Report) {
	body, err := json.Marshal(report)
	if err != nil {
		d.log.Error("failed to encode final report", "session_id", report.SessionID, "error", err)
		return
	}

	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err := d.post(body); err != nil {
			d.log.Warn("final report delivery failed",
				"session_id", report.SessionID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		d.log.Info("final report delivered", "session_id", report.SessionID, "attempt", attempt)
		return
	}
	d.log.Error("final report delivery exhausted retries",
		"session_id", report.SessionID,
		"attempts", d.attempts,
	)
}

func (d *HTTPDispatcher) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("x-api-key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Dispatcher = (*HTTPDispatcher)(nil)
