package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/surgeo/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MissingRateThreshold: 0.25, MinRows: 100})

	snap := &Snapshot{
		Tables:      []TableStat{{Kind: "race_given_surname", Rows: 9}},
		Rows:        1000,
		MissingRows: 100,
		MissingRate: 0.1,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_MissingRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MissingRateThreshold: 0.25, MinRows: 100})

	snap := &Snapshot{Rows: 200, MissingRows: 80, MissingRate: 0.4}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertMissingRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "80 of 200 rows")
}

func TestAlerter_Evaluate_MinimumRowsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MissingRateThreshold: 0.25, MinRows: 100})

	snap := &Snapshot{Rows: 10, MissingRows: 9, MissingRate: 0.9}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_ZeroThresholdDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &Snapshot{Rows: 1000, MissingRows: 1000, MissingRate: 1}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_TableMissingRows(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MissingRateThreshold: 0.25})

	snap := &Snapshot{
		Tables: []TableStat{
			{Kind: "race_given_surname", Rows: 9},
			{Kind: "race_given_tract", Rows: 3, MissingRows: 1},
		},
		Rows:        10,
		MissingRows: 5,
		MissingRate: 0.5,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertMissingRate, alerts[0].Type)
	assert.Equal(t, AlertTableMissingRows, alerts[1].Type)
	assert.Equal(t, "low", alerts[1].Severity)
	assert.Contains(t, alerts[1].Message, "race_given_tract has 1 of 3 rows")
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertMissingRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertTableMissingRows, Severity: "low", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertMissingRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})

	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertMissingRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}
