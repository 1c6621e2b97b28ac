// Package app holds the wiring shared by the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/analytics"
	"github.com/drfirst/rxinsight/internal/config"
	"github.com/drfirst/rxinsight/internal/domain/record"
	"github.com/drfirst/rxinsight/internal/infrastructure/mongodb"
	"github.com/drfirst/rxinsight/internal/infrastructure/postgres"
	"github.com/drfirst/rxinsight/internal/ingest"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
	"github.com/drfirst/rxinsight/internal/observability/tracing"
	"github.com/drfirst/rxinsight/pkg/circuitbreaker"
)

// Store is a record store usable by every binary.
type Store interface {
	analytics.Source
	ingest.Sink
	UpsertUser(ctx context.Context, id string, doc record.Raw) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	_ Store = (*mongodb.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// NewLogger returns a development logger for LOG_LEVEL=debug and a
// production logger otherwise.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// InitTracing installs the tracer provider for one binary.
func InitTracing(ctx context.Context, service string, cfg *config.Config) (*tracing.Provider, error) {
	tcfg := tracing.DefaultConfig(service)
	tcfg.Environment = cfg.Env
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.SampleRate = cfg.TraceSampleRate
	return tracing.Init(ctx, tcfg)
}

// OpenStore connects to the configured store and prepares its schema.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pcfg := postgres.DefaultPoolConfig()
		pcfg.DSN = cfg.DatabaseURL
		if cfg.DBMaxConns > 0 {
			pcfg.MaxConns = cfg.DBMaxConns
		}
		s, err := postgres.Connect(ctx, pcfg, logger)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		return s, nil

	case config.DriverMongo:
		mcfg := mongodb.DefaultConfig()
		mcfg.URI = cfg.MongoURI
		mcfg.Database = cfg.MongoDatabase
		s, err := mongodb.Connect(ctx, mcfg, logger)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			logger.Warn("could not create indexes", zap.Error(err))
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewBreaker creates a store breaker that exports its state on m.
func NewBreaker(name string, m *metrics.Metrics, logger *zap.Logger) (*circuitbreaker.Breaker, error) {
	b, err := circuitbreaker.New(circuitbreaker.DefaultConfig(name), logger,
		circuitbreaker.WithStateHook(func(name string, to circuitbreaker.State) {
			m.SetBreakerState(name, to.Code())
		}))
	if err != nil {
		return nil, err
	}
	m.SetBreakerState(name, circuitbreaker.StateClosed.Code())
	return b, nil
}

// NewAnalytics builds the analytics service over store.
func NewAnalytics(store analytics.Source, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*analytics.Service, error) {
	breaker, err := NewBreaker("store-read", m, logger)
	if err != nil {
		return nil, fmt.Errorf("create breaker: %w", err)
	}
	return analytics.NewService(store, cfg.Analytics(), logger,
		analytics.WithBreaker(breaker),
		analytics.WithMetrics(m),
	), nil
}
