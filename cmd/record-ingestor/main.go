// Package main provides the record ingestor entry point.
// Consumes AI-extracted prescriptions and stores them for analytics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/app"
	"github.com/drfirst/rxinsight/internal/config"
	"github.com/drfirst/rxinsight/internal/infrastructure/redpanda"
	"github.com/drfirst/rxinsight/internal/ingest"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
	"github.com/drfirst/rxinsight/pkg/workerpool"
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

	tp, err := app.InitTracing(ctx, "record-ingestor", cfg)
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
	breaker, err := app.NewBreaker("store-write", m, logger)
	if err != nil {
		logger.Fatal("breaker init failed", zap.Error(err))
	}
	processor := ingest.NewProcessor(store, logger, ingest.WithBreaker(breaker))

	poolCfg := workerpool.DefaultConfig()
	poolCfg.Workers = cfg.Workers
	poolCfg.Retryable = ingest.Retryable
	pool, err := workerpool.New(poolCfg, ingest.Worker(processor), logger)
	if err != nil {
		logger.Fatal("worker pool creation failed", zap.Error(err))
	}
	pool.Start()
	defer pool.Stop()

	pcfg := redpanda.DefaultProducerConfig()
	pcfg.Brokers = cfg.KafkaBrokers()
	deadLetter, err := redpanda.NewProducer(pcfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer deadLetter.Close()

	ccfg := redpanda.DefaultConsumerConfig()
	ccfg.Brokers = cfg.KafkaBrokers()
	ccfg.GroupID = cfg.IngestGroup
	ccfg.Topics = []string{cfg.IngestTopic}
	consumer, err := redpanda.NewConsumer(ccfg, logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}
	defer consumer.Close()

	ingestor := ingest.NewIngestor(pool, deadLetter, cfg.DeadLetterTopic, m, logger)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := consumer.Ping(r.Context()); err != nil {
			http.Error(w, "broker unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("record ingestor started",
		zap.String("topic", cfg.IngestTopic),
		zap.String("group", cfg.IngestGroup),
		zap.Int("workers", cfg.Workers))

	if err := consumer.Run(ctx, ingestor.HandleBatch); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
		return
	}
	logger.Info("record ingestor stopped")
}
