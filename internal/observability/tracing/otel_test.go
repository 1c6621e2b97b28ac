package tracing

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitWithoutEndpoint(t *testing.T) {
	cfg := DefaultConfig("rxinsight-test")
	cfg.OTLPEndpoint = ""
	cfg.SampleRate = 1

	p, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("span not sampled at rate 1")
	}
}

func TestNewResourceDescribesService(t *testing.T) {
	cfg := DefaultConfig("record-ingestor")
	cfg.Environment = "staging"

	res, err := newResource(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}

	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"service.name":           "record-ingestor",
		"service.namespace":      Namespace,
		"deployment.environment": "staging",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if got["telemetry.sdk.name"] == "" {
		t.Error("telemetry.sdk attributes missing")
	}
}

func TestSamplerDescription(t *testing.T) {
	for rate, want := range map[float64]string{
		1:   "AlwaysOnSampler",
		0:   "AlwaysOffSampler",
		0.5: "TraceIDRatioBased",
	} {
		if got := Sampler(rate).Description(); !strings.Contains(got, want) {
			t.Errorf("Sampler(%v) = %s, want it to mention %s", rate, got, want)
		}
	}
}

func TestShutdownNilProvider(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
