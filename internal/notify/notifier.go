// Package notify - evaluation server callback with retry
// Delivers the deployment result to the evaluation URL supplied with
// the task. Only HTTP 200 counts as delivered.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/internal/metrics"
	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// Dispatcher posts evaluation notifications with delayed retries.
type Dispatcher struct {
	maxRetries  int
	retryDelays []time.Duration
	httpClient  *http.Client
}

// NewDispatcher creates a dispatcher. retryDelays is indexed by failed
// attempt; indices past the end reuse the last entry. Zero or negative
// maxRetries falls back to a single attempt.
func NewDispatcher(maxRetries int, retryDelays []time.Duration) *Dispatcher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if len(retryDelays) == 0 {
		retryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	}
	return &Dispatcher{
		maxRetries:  maxRetries,
		retryDelays: retryDelays,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Notify posts the notification JSON to evaluationURL, retrying failed
// attempts with the configured delays. It reports delivery as a bool
// and never panics; exhausting all attempts is logged, not raised.
func (d *Dispatcher) Notify(ctx context.Context, evaluationURL string, notification *models.EvaluationNotification) bool {
	payload, err := json.Marshal(notification)
	if err != nil {
		logging.L().Error("Could not encode notification", zap.Error(err))
		return false
	}

	for attempt := 0; attempt < d.maxRetries; attempt++ {
		logging.L().Info("Notifying evaluation server",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", d.maxRetries))
		metrics.Get().RecordNotifyAttempt()

		if d.post(ctx, evaluationURL, payload) {
			logging.L().Info("Evaluation server notified successfully")
			metrics.Get().RecordNotifyOutcome(true)
			return true
		}

		if attempt < d.maxRetries-1 {
			delay := d.delayFor(attempt)
			logging.L().Info("Retrying notification", zap.Duration("delay", delay))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				logging.L().Warn("Notification retries cancelled", zap.Error(ctx.Err()))
				metrics.Get().RecordNotifyOutcome(false)
				return false
			case <-timer.C:
			}
		}
	}

	logging.L().Error("Failed to notify evaluation server",
		zap.Int("attempts", d.maxRetries),
		zap.String("url", evaluationURL))
	metrics.Get().RecordNotifyOutcome(false)
	return false
}

// delayFor clamps the delay index to the last configured entry.
func (d *Dispatcher) delayFor(attempt int) time.Duration {
	if attempt >= len(d.retryDelays) {
		return d.retryDelays[len(d.retryDelays)-1]
	}
	return d.retryDelays[attempt]
}

func (d *Dispatcher) post(ctx context.Context, url string, payload []byte) bool {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		logging.L().Error("Error notifying evaluation server", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		logging.L().Error("Error notifying evaluation server", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	logging.L().Warn("Evaluation server rejected notification",
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(body)))
	return false
}
