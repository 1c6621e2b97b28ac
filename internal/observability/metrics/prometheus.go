// Package metrics provides Prometheus metrics for the analytics services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Aggregations        *prometheus.CounterVec
	AggregationDuration *prometheus.HistogramVec
	RecordsScanned      *prometheus.CounterVec
	DuplicatesDropped   prometheus.Counter
	IngestConsumed      prometheus.Counter
	IngestFailed        prometheus.Counter
	SnapshotsPublished  prometheus.Counter
	SnapshotsFailed     prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
	HTTPRequests        *prometheus.CounterVec
}

// New creates all metrics and registers them with reg, or with the default
// registry when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rxinsight_aggregations_total",
			Help: "Aggregation passes by operation and outcome",
		}, []string{"op", "outcome"}),
		AggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rxinsight_aggregation_duration_seconds",
			Help:    "Aggregation duration including storage reads",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op"}),
		RecordsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rxinsight_records_scanned_total",
			Help: "Prescription records scanned by aggregation passes",
		}, []string{"op"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rxinsight_duplicate_records_dropped_total",
			Help: "Records dropped because their id was already seen in the same pass",
		}),
		IngestConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rxinsight_ingest_records_total",
			Help: "Extracted prescriptions stored by the ingestor",
		}),
		IngestFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rxinsight_ingest_failures_total",
			Help: "Extracted prescriptions the ingestor could not store",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rxinsight_snapshots_published_total",
			Help: "Dashboard snapshots published",
		}),
		SnapshotsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rxinsight_snapshots_failed_total",
			Help: "Dashboard snapshots skipped after a failure",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rxinsight_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rxinsight_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		m.Aggregations,
		m.AggregationDuration,
		m.RecordsScanned,
		m.DuplicatesDropped,
		m.IngestConsumed,
		m.IngestFailed,
		m.SnapshotsPublished,
		m.SnapshotsFailed,
		m.CircuitBreakerState,
		m.HTTPRequests,
	)

	return m
}

// ObserveAggregation records one aggregation pass.
func (m *Metrics) ObserveAggregation(op string, d time.Duration, records int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Aggregations.WithLabelValues(op, outcome).Inc()
	m.AggregationDuration.WithLabelValues(op).Observe(d.Seconds())
	if records > 0 {
		m.RecordsScanned.WithLabelValues(op).Add(float64(records))
	}
}

// ObserveDuplicates records records dropped by deduplication.
func (m *Metrics) ObserveDuplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicatesDropped.Add(float64(n))
}

// ObserveIngest records one ingest attempt.
func (m *Metrics) ObserveIngest(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.IngestFailed.Inc()
		return
	}
	m.IngestConsumed.Inc()
}

// ObserveSnapshot records one snapshot attempt.
func (m *Metrics) ObserveSnapshot(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SnapshotsFailed.Inc()
		return
	}
	m.SnapshotsPublished.Inc()
}

// SetBreakerState exports a circuit breaker state code.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveHTTP records one HTTP response.
func (m *Metrics) ObserveHTTP(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics of a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
