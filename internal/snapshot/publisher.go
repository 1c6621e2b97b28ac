// Package snapshot periodically publishes the analytics dashboard.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/analytics"
	"github.com/drfirst/rxinsight/internal/infrastructure/redpanda"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
)

// Dashboards computes dashboards.
type Dashboards interface {
	Dashboard(ctx context.Context) (*analytics.Dashboard, error)
}

// Producer delivers one record to a topic.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// Config holds publisher settings
type Config struct {
	Topic    string
	Interval time.Duration
}

// Publisher computes a dashboard on a ticker and publishes it as JSON keyed
// by its UTC date.
type Publisher struct {
	source   Dashboards
	producer Producer
	config   Config
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(source Dashboards, producer Producer, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Publisher{
		source:   source,
		producer: producer,
		config:   cfg,
		metrics:  m,
		logger:   logger,
	}
}

// Run publishes immediately and then on every tick until ctx is done. Failed
// rounds are logged and skipped.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.logger.Info("snapshot publisher started",
		zap.String("topic", p.config.Topic),
		zap.Duration("interval", p.config.Interval))

	for {
		if err := p.PublishOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("snapshot skipped", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("snapshot publisher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PublishOnce computes and publishes one snapshot. Nothing is published when
// the dashboard cannot be computed.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	err := p.publish(ctx)
	p.metrics.ObserveSnapshot(err)
	return err
}

func (p *Publisher) publish(ctx context.Context) error {
	dash, err := p.source.Dashboard(ctx)
	if err != nil {
		return fmt.Errorf("compute dashboard: %w", err)
	}

	payload, err := json.Marshal(dash)
	if err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}

	key := dash.GeneratedAt.UTC().Format("2006-01-02")
	headers := map[string]string{
		redpanda.HeaderContentType:  "application/json",
		redpanda.HeaderSnapshotDate: key,
	}
	if err := p.producer.Publish(ctx, p.config.Topic, key, payload, headers); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	p.logger.Info("snapshot published",
		zap.String("key", key),
		zap.Int("prescriptions", dash.Overview.TotalPrescriptions))
	return nil
}
