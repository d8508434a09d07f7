// Package observability pushes operator-facing alerts out of the batch
// cycles. Alerts go to a webhook when configured; structured logs are the
// fallback channel either way.
package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mkovtun/contentpulse-backend/internal/platform/envutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

// DriftAlertMetric is one drifted dimension reported to operators.
type DriftAlertMetric struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Meta      any     `json:"meta,omitempty"`
}

var driftAlerts struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// ReportStrategyDrift emits a drift alert for one tenant's monthly analysis.
// Rate-limited per key so a flapping metric cannot spam the webhook.
func ReportStrategyDrift(ctx context.Context, log *logger.Logger, metrics []DriftAlertMetric, meta map[string]any) {
	if len(metrics) == 0 {
		return
	}
	if log != nil {
		log.Warn("strategy drift detected", "metrics", len(metrics), "meta", meta)
	}
	if !driftAlertsEnabled() {
		return
	}
	webhook := driftAlertWebhook()
	if webhook == "" {
		return
	}

	key := "strategy_drift"
	driftAlerts.mu.Lock()
	if driftAlerts.last == nil {
		driftAlerts.last = map[string]time.Time{}
	}
	last := driftAlerts.last[key]
	if !last.IsZero() && time.Since(last) < driftAlertMinInterval() {
		driftAlerts.mu.Unlock()
		return
	}
	driftAlerts.last[key] = time.Now()
	driftAlerts.mu.Unlock()

	payload := map[string]any{
		"title":     "Strategy drift detected",
		"metrics":   metrics,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("drift alert request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("drift alert post failed", "error", err)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("drift alert sent", "status", resp.StatusCode)
	}
}

func driftAlertsEnabled() bool {
	return envutil.Bool("STRATEGY_DRIFT_ALERTS_ENABLED", false)
}

func driftAlertWebhook() string {
	return strings.TrimSpace(os.Getenv("STRATEGY_DRIFT_ALERT_WEBHOOK_URL"))
}

func driftAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("STRATEGY_DRIFT_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 10 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}
