package deploy

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/internal/metrics"
)

// Poller watches a Pages URL until it serves HTTP 200.
type Poller struct {
	timeout    time.Duration
	interval   time.Duration
	warmup     time.Duration
	httpClient *http.Client
}

// NewPoller creates a poller with the standard 10s probe interval and
// 15s rebuild warm-up. timeout bounds the whole wait.
func NewPoller(timeout time.Duration) *Poller {
	return &Poller{
		timeout:    timeout,
		interval:   10 * time.Second,
		warmup:     15 * time.Second,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Wait polls url until it answers 200 or the overall timeout lapses.
// Timing out is a warning, not a failure.
func (p *Poller) Wait(ctx context.Context, url string) bool {
	logging.L().Info("Waiting for Pages to be ready", zap.String("url", url))

	start := time.Now()
	deadline := start.Add(p.timeout)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.probe(ctx, url) {
			logging.L().Info("GitHub Pages is live", zap.String("url", url))
			metrics.Get().RecordPagesPoll(true, time.Since(start))
			return true
		}

		if !time.Now().Before(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			logging.L().Warn("Pages wait cancelled", zap.String("url", url), zap.Error(ctx.Err()))
			metrics.Get().RecordPagesPoll(false, time.Since(start))
			return false
		case <-ticker.C:
		}
	}

	logging.L().Warn("Timeout waiting for Pages, it may still be deploying",
		zap.Duration("waited", p.timeout), zap.String("url", url))
	metrics.Get().RecordPagesPoll(false, time.Since(start))
	return false
}

// WaitWithWarmup pauses for the rebuild warm-up before polling. Used on
// the update path where Pages needs time to notice the new commit.
func (p *Poller) WaitWithWarmup(ctx context.Context, url string) bool {
	timer := time.NewTimer(p.warmup)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	return p.Wait(ctx, url)
}

// probe reports whether url currently serves HTTP 200. Transport errors
// count as not ready.
func (p *Poller) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logging.L().Debug("Pages not ready yet", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
