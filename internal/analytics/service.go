package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/drfirst/rxinsight/internal/domain/record"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
	"github.com/drfirst/rxinsight/pkg/circuitbreaker"
)

var (
	// ErrAggregationFailed wraps every upstream failure of a Service call.
	ErrAggregationFailed = errors.New("aggregation failed")
	// ErrSubjectRequired is returned for an empty subject identifier.
	ErrSubjectRequired = errors.New("subject id is required")
)

// Subject fields queried for per-patient reads, in merge order.
const (
	FieldPatientID = "patientId"
	FieldUserID    = "userId"
)

// Source is the read side of a record store.
type Source interface {
	Records(ctx context.Context) ([]record.Raw, error)
	RecordsBySubject(ctx context.Context, field, subjectID string) ([]record.Raw, error)
	Users(ctx context.Context) ([]record.Raw, error)
}

// Service runs aggregations over records read from a Source.
type Service struct {
	source     Source
	aggregator *Aggregator
	breaker    *circuitbreaker.Breaker
	metrics    *metrics.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBreaker routes store reads through b.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

// WithMetrics records aggregation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used for time buckets.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service.
func NewService(source Source, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		source:     source,
		aggregator: NewAggregator(cfg),
		logger:     logger,
		tracer:     otel.Tracer("analytics-service"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregator returns the aggregator used by the service.
func (s *Service) Aggregator() *Aggregator { return s.aggregator }

// Dashboard reads every record and user and builds the dashboard.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	ctx, span := s.start(ctx, "dashboard")
	defer span.End()
	started := time.Now()

	var rawRecords, rawUsers []record.Raw
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawRecords, err = s.read(gctx, s.source.Records)
		if err != nil {
			return fmt.Errorf("read records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rawUsers, err = s.read(gctx, s.source.Users)
		if err != nil {
			return fmt.Errorf("read users: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail(span, "dashboard", started, err)
	}

	records := s.records(rawRecords)
	users := record.NormalizeUsers(s.dedup(rawUsers), s.aggregator.cfg.DefaultClinic)
	out := s.aggregator.Dashboard(records, users, s.now())
	s.done(span, "dashboard", started, len(records))
	return out, nil
}

// Summary builds the date-filtered summary; from and to are optional.
func (s *Service) Summary(ctx context.Context, from, to *time.Time) (*Summary, error) {
	ctx, span := s.start(ctx, "summary")
	defer span.End()
	started := time.Now()

	raws, err := s.read(ctx, s.source.Records)
	if err != nil {
		return nil, s.fail(span, "summary", started, fmt.Errorf("read records: %w", err))
	}
	records := s.records(raws)
	out := s.aggregator.Summary(records, from, to, s.now())
	s.done(span, "summary", started, len(records))
	return out, nil
}

// Medications ranks medications across every medication field.
func (s *Service) Medications(ctx context.Context) (*MedicationStats, error) {
	ctx, span := s.start(ctx, "medications")
	defer span.End()
	started := time.Now()

	raws, err := s.read(ctx, s.source.Records)
	if err != nil {
		return nil, s.fail(span, "medications", started, fmt.Errorf("read records: %w", err))
	}
	records := s.records(raws)
	out := s.aggregator.MedicationStats(records)
	s.done(span, "medications", started, len(records))
	return out, nil
}

// Labs summarizes lab values; nil labs selects the configured ones.
func (s *Service) Labs(ctx context.Context, labs []string) (*LabStats, error) {
	ctx, span := s.start(ctx, "labs")
	defer span.End()
	started := time.Now()

	raws, err := s.read(ctx, s.source.Records)
	if err != nil {
		return nil, s.fail(span, "labs", started, fmt.Errorf("read records: %w", err))
	}
	records := s.records(raws)
	out := s.aggregator.LabStats(records, labs)
	s.done(span, "labs", started, len(records))
	return out, nil
}

// PatientRecords returns the deduplicated raw records of one subject, matched
// by patientId or userId.
func (s *Service) PatientRecords(ctx context.Context, subjectID string) ([]record.Raw, error) {
	ctx, span := s.start(ctx, "patient_records")
	defer span.End()
	started := time.Now()

	raws, err := s.subjectRecords(ctx, subjectID)
	if err != nil {
		return nil, s.fail(span, "patient_records", started, err)
	}
	s.done(span, "patient_records", started, len(raws))
	return raws, nil
}

// PatientHistory builds the timeline of one subject.
func (s *Service) PatientHistory(ctx context.Context, subjectID string) (*PatientHistory, error) {
	ctx, span := s.start(ctx, "patient_history")
	defer span.End()
	started := time.Now()

	raws, err := s.subjectRecords(ctx, subjectID)
	if err != nil {
		return nil, s.fail(span, "patient_history", started, err)
	}
	records := record.NormalizeAll(raws)
	out := s.aggregator.PatientHistory(subjectID, records)
	s.done(span, "patient_history", started, len(records))
	return out, nil
}

// subjectRecords queries both subject fields concurrently and merges the
// results, patientId matches first.
func (s *Service) subjectRecords(ctx context.Context, subjectID string) ([]record.Raw, error) {
	if subjectID == "" {
		return nil, ErrSubjectRequired
	}
	fields := []string{FieldPatientID, FieldUserID}
	results := make([][]record.Raw, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	for i, field := range fields {
		g.Go(func() error {
			raws, err := s.read(gctx, func(ctx context.Context) ([]record.Raw, error) {
				return s.source.RecordsBySubject(ctx, field, subjectID)
			})
			if err != nil {
				return fmt.Errorf("read records by %s: %w", field, err)
			}
			results[i] = raws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := record.MergeRaw(results...)
	s.metrics.ObserveDuplicates(total - len(merged))
	return merged, nil
}

func (s *Service) read(ctx context.Context, fn func(context.Context) ([]record.Raw, error)) ([]record.Raw, error) {
	return circuitbreaker.Call(ctx, s.breaker, fn)
}

func (s *Service) records(raws []record.Raw) []record.Record {
	return record.NormalizeAll(s.dedup(raws))
}

func (s *Service) dedup(raws []record.Raw) []record.Raw {
	out := record.Dedup(raws, record.RawID)
	s.metrics.ObserveDuplicates(len(raws) - len(out))
	return out
}

func (s *Service) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "analytics."+op,
		trace.WithAttributes(attribute.String("analytics.op", op)))
}

func (s *Service) done(span trace.Span, op string, started time.Time, n int) {
	span.SetAttributes(attribute.Int("analytics.records", n))
	s.metrics.ObserveAggregation(op, time.Since(started), n, nil)
}

func (s *Service) fail(span trace.Span, op string, started time.Time, err error) error {
	if errors.Is(err, ErrSubjectRequired) {
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "aggregation failed")
	s.metrics.ObserveAggregation(op, time.Since(started), 0, err)
	s.logger.Error("aggregation failed",
		zap.String("op", op),
		zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrAggregationFailed, op, err)
}
