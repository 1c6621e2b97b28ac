// Package ingest stores AI-extracted prescription documents consumed from the
// extraction topic.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/domain/record"
	"github.com/drfirst/rxinsight/pkg/circuitbreaker"
)

// ErrMalformedMessage marks payloads that can never be stored.
var ErrMalformedMessage = errors.New("malformed message")

// recordNamespace seeds ids derived from payload content.
var recordNamespace = uuid.MustParse("6f1c8a52-3d7e-4b0a-9c55-2e8f7d4a1b90")

// Sink is the write side of a record store.
type Sink interface {
	UpsertRecord(ctx context.Context, id string, doc record.Raw) error
}

// Processor turns one message into one stored record.
type Processor struct {
	sink    Sink
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithBreaker routes sink writes through b.
func WithBreaker(b *circuitbreaker.Breaker) ProcessorOption {
	return func(p *Processor) { p.breaker = b }
}

// WithClock overrides the clock used to stamp createdAt.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a processor writing to sink.
func NewProcessor(sink Sink, logger *zap.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Processor{
		sink:   sink,
		logger: logger,
		tracer: otel.Tracer("ingest"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process decodes payload and upserts it. The record id is taken from the
// document, then from key, then derived from the payload bytes. It returns
// the id used.
func (p *Processor) Process(ctx context.Context, key, payload []byte) (string, error) {
	ctx, span := p.tracer.Start(ctx, "ingest.process")
	defer span.End()

	doc, err := Decode(payload)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	id := record.RawID(doc)
	switch {
	case id != "":
	case len(key) > 0:
		id = string(key)
	default:
		id = uuid.NewSHA1(recordNamespace, payload).String()
	}
	if record.RawID(doc) == "" {
		doc["id"] = id
	}
	if _, ok := record.Lookup(doc, record.TimestampKeys...); !ok {
		doc["createdAt"] = p.now().UTC().Format(time.RFC3339)
	}
	span.SetAttributes(attribute.String("record.id", id))

	err = p.write(ctx, id, doc)
	if err != nil {
		span.RecordError(err)
		return id, fmt.Errorf("store record %s: %w", id, err)
	}

	p.logger.Debug("record stored", zap.String("id", id))
	return id, nil
}

func (p *Processor) write(ctx context.Context, id string, doc record.Raw) error {
	if p.breaker == nil {
		return p.sink.UpsertRecord(ctx, id, doc)
	}
	return p.breaker.Do(ctx, func(ctx context.Context) error {
		return p.sink.UpsertRecord(ctx, id, doc)
	})
}

// Decode parses a JSON object into a raw document.
func Decode(payload []byte) (record.Raw, error) {
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedMessage)
	}
	return record.Raw(m), nil
}
