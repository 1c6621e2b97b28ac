// Package main provides the snapshot publisher entry point.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/app"
	"github.com/drfirst/rxinsight/internal/config"
	"github.com/drfirst/rxinsight/internal/infrastructure/redpanda"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
	"github.com/drfirst/rxinsight/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := app.InitTracing(ctx, "snapshot-publisher", cfg)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store connection failed", zap.Error(err))
	}
	defer store.Close(context.Background())

	m := metrics.New(nil)
	svc, err := app.NewAnalytics(store, cfg, m, logger)
	if err != nil {
		logger.Fatal("analytics init failed", zap.Error(err))
	}

	if err := redpanda.HealthCheck(ctx, cfg.KafkaBrokers()); err != nil {
		logger.Fatal("broker unreachable", zap.Error(err))
	}

	pcfg := redpanda.DefaultProducerConfig()
	pcfg.Brokers = cfg.KafkaBrokers()
	producer, err := redpanda.NewProducer(pcfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	publisher := snapshot.NewPublisher(svc, producer, snapshot.Config{
		Topic:    cfg.SnapshotTopic,
		Interval: cfg.SnapshotInterval,
	}, m, logger)

	if err := publisher.Run(ctx); err != nil {
		logger.Error("publisher stopped", zap.Error(err))
	}
}
