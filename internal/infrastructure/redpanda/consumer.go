// Package redpanda consumes extracted prescriptions and publishes analytics
// snapshots over the Kafka protocol with franz-go.
package redpanda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConsumerConfig holds configuration for the consumer
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	// SessionTimeout bounds how long the group waits for a silent member
	SessionTimeout time.Duration
	// MaxPollRecords caps the records handed to one batch
	MaxPollRecords int
	FetchMaxBytes  int32
	// StartOffset is "earliest" or "latest"
	StartOffset string
}

// DefaultConsumerConfig returns defaults for the record ingestor
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:        []string{"localhost:9092"},
		GroupID:        "rxinsight-ingestor",
		Topics:         []string{TopicExtractedPrescriptions},
		SessionTimeout: 30 * time.Second,
		MaxPollRecords: 500,
		FetchMaxBytes:  50 << 20,
		StartOffset:    "earliest",
	}
}

// Message is one consumed record
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	// Context carries the producer's trace context
	Context context.Context
}

// BatchHandler processes one polled batch. Offsets are committed only after
// it returns nil.
type BatchHandler func(ctx context.Context, batch []*Message) error

// Consumer reads batches from a consumer group and commits after each batch
// is handled.
type Consumer struct {
	client *kgo.Client
	config ConsumerConfig
	logger *zap.Logger
	tracer trace.Tracer
}

// NewConsumer creates a consumer
func NewConsumer(cfg ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = DefaultConsumerConfig().MaxPollRecords
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			logger.Info("partitions assigned", zap.Any("partitions", assigned))
		}),
		kgo.OnPartitionsRevoked(func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
			logger.Info("partitions revoked", zap.Any("partitions", revoked))
		}),
	}
	if cfg.SessionTimeout > 0 {
		opts = append(opts, kgo.SessionTimeout(cfg.SessionTimeout))
	}
	if cfg.FetchMaxBytes > 0 {
		opts = append(opts, kgo.FetchMaxBytes(cfg.FetchMaxBytes))
	}
	switch cfg.StartOffset {
	case "latest":
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	default:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Consumer{
		client: client,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("redpanda-consumer"),
	}, nil
}

// Run polls until ctx is done or handle fails. A handler error stops the
// loop without committing the batch, so it is redelivered after restart.
func (c *Consumer) Run(ctx context.Context, handle BatchHandler) error {
	for {
		fetches := c.client.PollRecords(ctx, c.config.MaxPollRecords)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err))
		})

		var records []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) { records = append(records, r) })
		if len(records) == 0 {
			continue
		}

		if err := c.handleBatch(ctx, records, handle); err != nil {
			return err
		}
	}
}

func (c *Consumer) handleBatch(ctx context.Context, records []*kgo.Record, handle BatchHandler) error {
	ctx, span := c.tracer.Start(ctx, "consume_batch",
		trace.WithAttributes(attribute.Int("batch_size", len(records))))
	defer span.End()

	batch := make([]*Message, len(records))
	for i, r := range records {
		batch[i] = toMessage(ctx, r)
	}

	if err := handle(ctx, batch); err != nil {
		span.RecordError(err)
		return fmt.Errorf("handle batch: %w", err)
	}

	if err := c.client.CommitRecords(ctx, records...); err != nil {
		span.RecordError(err)
		c.logger.Error("commit offsets failed", zap.Error(err))
	}
	return nil
}

// Ping checks broker connectivity.
func (c *Consumer) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
}

func toMessage(ctx context.Context, r *kgo.Record) *Message {
	msg := &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   make(map[string]string, len(r.Headers)),
		Timestamp: r.Timestamp,
		Context:   extractTrace(ctx, r),
	}
	for _, h := range r.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}
