package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/infrastructure/redpanda"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
	"github.com/drfirst/rxinsight/pkg/workerpool"
)

// Publisher sends rejected messages to the dead-letter topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// Retryable reports whether a processing error may succeed on retry.
func Retryable(err error) bool {
	return !errors.Is(err, ErrMalformedMessage)
}

// Ingestor runs consumed batches through a worker pool.
type Ingestor struct {
	pool       *workerpool.Pool
	deadLetter Publisher
	topic      string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewIngestor creates an ingestor. The pool's worker function must be
// Worker(processor).
func NewIngestor(pool *workerpool.Pool, deadLetter Publisher, topic string, m *metrics.Metrics, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topic == "" {
		topic = redpanda.TopicDeadLetter
	}
	return &Ingestor{
		pool:       pool,
		deadLetter: deadLetter,
		topic:      topic,
		metrics:    m,
		logger:     logger,
	}
}

// Worker adapts a processor to the worker pool. Task payloads are
// *redpanda.Message.
func Worker(p *Processor) workerpool.WorkerFunc {
	return func(ctx context.Context, task *workerpool.Task) error {
		msg, ok := task.Payload.(*redpanda.Message)
		if !ok {
			return fmt.Errorf("%w: unexpected task payload %T", ErrMalformedMessage, task.Payload)
		}
		_, err := p.Process(ctx, msg.Key, msg.Value)
		return err
	}
}

// HandleBatch processes a batch. Malformed messages are dead-lettered; any
// other failure fails the whole batch.
func (i *Ingestor) HandleBatch(ctx context.Context, batch []*redpanda.Message) error {
	tasks := make([]*workerpool.Task, len(batch))
	for n, msg := range batch {
		taskCtx := msg.Context
		if taskCtx == nil {
			taskCtx = ctx
		}
		tasks[n] = &workerpool.Task{
			ID:      fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
			Payload: msg,
			Context: taskCtx,
		}
	}

	results, err := i.pool.Run(ctx, tasks)
	if err != nil {
		return err
	}

	var failed error
	for n, res := range results {
		i.metrics.ObserveIngest(res.Err)
		if res.Err == nil {
			continue
		}
		if Retryable(res.Err) {
			if failed == nil {
				failed = fmt.Errorf("task %s: %w", res.TaskID, res.Err)
			}
			continue
		}
		if err := i.reject(ctx, batch[n], res.Err); err != nil {
			return err
		}
	}
	return failed
}

func (i *Ingestor) reject(ctx context.Context, msg *redpanda.Message, cause error) error {
	i.logger.Warn("dead-lettering message",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Error(cause))
	if i.deadLetter == nil {
		return nil
	}
	headers := map[string]string{
		redpanda.HeaderDeadLetterError:  cause.Error(),
		redpanda.HeaderDeadLetterSource: fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
	}
	if err := i.deadLetter.Publish(ctx, i.topic, string(msg.Key), msg.Value, headers); err != nil {
		return fmt.Errorf("dead-letter offset %d: %w", msg.Offset, err)
	}
	return nil
}
