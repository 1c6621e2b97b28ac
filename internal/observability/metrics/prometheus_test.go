package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAggregation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAggregation("dashboard", 20*time.Millisecond, 42, nil)
	m.ObserveAggregation("dashboard", time.Millisecond, 0, errors.New("boom"))

	if got := testutil.ToFloat64(m.Aggregations.WithLabelValues("dashboard", "ok")); got != 1 {
		t.Errorf("ok aggregations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Aggregations.WithLabelValues("dashboard", "error")); got != 1 {
		t.Errorf("error aggregations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RecordsScanned.WithLabelValues("dashboard")); got != 42 {
		t.Errorf("records scanned = %v, want 42", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAggregation("labs", time.Second, 10, nil)
	m.ObserveDuplicates(3)
	m.ObserveIngest(nil)
	m.ObserveSnapshot(errors.New("x"))
	m.SetBreakerState("store", 1)
	m.ObserveHTTP("GET", 200)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveDuplicates(2)
	m.ObserveDuplicates(0)
	m.ObserveIngest(nil)
	m.ObserveIngest(errors.New("sink down"))
	m.SetBreakerState("store", 2)

	if got := testutil.ToFloat64(m.DuplicatesDropped); got != 2 {
		t.Errorf("duplicates = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IngestConsumed); got != 1 {
		t.Errorf("ingested = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.IngestFailed); got != 1 {
		t.Errorf("ingest failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("store")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
}
