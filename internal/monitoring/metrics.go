// Package monitoring exposes Prometheus metrics for table loads, batch
// estimation and the HTTP surface, plus a health snapshot.
package monitoring

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/surgeo/internal/model"
)

var (
	batchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surgeo_batches_total",
		Help: "Estimation batches by model and origin",
	}, []string{"model", "origin"})

	batchRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surgeo_batch_rows_total",
		Help: "Rows estimated by model",
	}, []string{"model"})

	batchMissing = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surgeo_batch_missing_rows_total",
		Help: "Rows whose posterior was MISSING, by model",
	}, []string{"model"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surgeo_batch_duration_seconds",
		Help:    "Batch estimation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	}, []string{"model"})

	tableLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surgeo_table_load_duration_seconds",
		Help:    "Probability table load duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
	}, []string{"kind", "source"})

	tableRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "surgeo_table_rows",
		Help: "Rows in each loaded probability table",
	}, []string{"kind"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surgeo_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surgeo_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Counters mirrors the batch counters for the health snapshot.
type Counters struct {
	Batches     atomic.Int64
	Rows        atomic.Int64
	MissingRows atomic.Int64
}

// Default is the process-wide counter set updated by ObserveBatch.
var Default = &Counters{}

// ObserveBatch records one completed batch. origin is "cli" or "http".
func ObserveBatch(modelName, origin string, rs *model.ResultSet, d time.Duration) {
	rows := rs.Len()
	missing := rs.MissingCount()

	batchTotal.WithLabelValues(modelName, origin).Inc()
	batchRows.WithLabelValues(modelName).Add(float64(rows))
	batchMissing.WithLabelValues(modelName).Add(float64(missing))
	batchDuration.WithLabelValues(modelName).Observe(d.Seconds())

	Default.Batches.Add(1)
	Default.Rows.Add(int64(rows))
	Default.MissingRows.Add(int64(missing))
}

// ObserveTableLoad records one table load.
func ObserveTableLoad(kind, source string, rows int, d time.Duration) {
	tableLoadDuration.WithLabelValues(kind, source).Observe(d.Seconds())
	tableRows.WithLabelValues(kind).Set(float64(rows))
}

// ObserveHTTP records one HTTP response.
func ObserveHTTP(route string, code int, d time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
