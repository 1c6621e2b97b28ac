package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/drfirst/rxinsight/internal/analytics"
	"github.com/drfirst/rxinsight/internal/domain/record"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
)

type panickingAnalytics struct{}

func (panickingAnalytics) Dashboard(context.Context) (*analytics.Dashboard, error) {
	panic("dashboard exploded")
}

func (panickingAnalytics) Summary(context.Context, *time.Time, *time.Time) (*analytics.Summary, error) {
	return &analytics.Summary{}, nil
}

func (panickingAnalytics) Medications(context.Context) (*analytics.MedicationStats, error) {
	return &analytics.MedicationStats{}, nil
}

func (panickingAnalytics) Labs(context.Context, []string) (*analytics.LabStats, error) {
	return &analytics.LabStats{}, nil
}

func (panickingAnalytics) PatientRecords(context.Context, string) ([]record.Raw, error) {
	return nil, nil
}

func (panickingAnalytics) PatientHistory(context.Context, string) (*analytics.PatientHistory, error) {
	return &analytics.PatientHistory{}, nil
}

func alwaysReady(context.Context) error { return nil }

func TestRouter_RecoveredPanicIsLoggedAndCounted(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())
	r := newRouter(panickingAnalytics{}, alwaysReady, nil, m, zap.New(core))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "500")); got != 1 {
		t.Errorf("http metric = %v, want 1", got)
	}

	access := logs.FilterMessage("http request").All()
	if len(access) != 1 {
		t.Fatalf("access log entries = %d, want 1", len(access))
	}
	if status := access[0].ContextMap()["status"]; status != int64(http.StatusInternalServerError) {
		t.Errorf("logged status = %v, want 500", status)
	}
	if logs.FilterMessage("handler panicked").Len() != 1 {
		t.Error("panic not logged")
	}
}

func TestRouter_ReadyReflectsStore(t *testing.T) {
	down := func(context.Context) error { return errors.New("store down") }
	r := newRouter(panickingAnalytics{}, down, nil, metrics.New(prometheus.NewRegistry()), zap.NewNop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
