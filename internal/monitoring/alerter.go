package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/surgeo/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertMissingRate      AlertType = "missing_rate"
	AlertTableMissingRows AlertType = "table_missing_rows"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Share of estimated rows that came back MISSING.
	if a.cfg.MissingRateThreshold > 0 && snap.Rows >= a.cfg.MinRows && snap.Rows > 0 &&
		snap.MissingRate > a.cfg.MissingRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertMissingRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"MISSING rate %.1f%% exceeds threshold %.1f%% (%d of %d rows)",
				snap.MissingRate*100, a.cfg.MissingRateThreshold*100,
				snap.MissingRows, snap.Rows,
			),
			Details: map[string]any{
				"missing_rate": snap.MissingRate,
				"threshold":    a.cfg.MissingRateThreshold,
				"missing_rows": snap.MissingRows,
				"rows":         snap.Rows,
			},
			Timestamp: now,
		})
	}

	// Loaded tables with unusable rows.
	for _, ts := range snap.Tables {
		if ts.MissingRows == 0 {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertTableMissingRows,
			Severity: "low",
			Message:  fmt.Sprintf("table %s has %d of %d rows with empty cells", ts.Kind, ts.MissingRows, ts.Rows),
			Details: map[string]any{
				"kind":         ts.Kind,
				"rows":         ts.Rows,
				"missing_rows": ts.MissingRows,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	return len(a.deliver(ctx, alerts))
}

// deliver posts each alert and returns the ones the webhook accepted.
func (a *Alerter) deliver(ctx context.Context, alerts []Alert) []Alert {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return nil
	}

	var sent []Alert
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent = append(sent, alert)
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
