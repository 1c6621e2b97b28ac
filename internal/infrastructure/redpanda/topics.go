package redpanda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Default topic names.
const (
	// TopicExtractedPrescriptions carries AI-extracted prescription documents.
	TopicExtractedPrescriptions = "prescriptions.extracted"
	// TopicSnapshots carries dashboard snapshots keyed by UTC date.
	TopicSnapshots = "analytics.snapshots"
	// TopicDeadLetter receives extracted documents the ingestor rejected.
	TopicDeadLetter = "prescriptions.deadletter"
)

// TopicNames names the topics used by the services.
type TopicNames struct {
	Ingest     string
	DeadLetter string
	Snapshots  string
}

// TopicConfig holds creation settings for one topic.
type TopicConfig struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// TopicLayout returns creation settings for the service topics. Blank names
// take the defaults.
func TopicLayout(names TopicNames) []TopicConfig {
	ptr := func(s string) *string { return &s }
	or := func(name, def string) string {
		if name == "" {
			return def
		}
		return name
	}

	return []TopicConfig{
		{
			Name:              or(names.Ingest, TopicExtractedPrescriptions),
			Partitions:        6,
			ReplicationFactor: 1,
			Configs: map[string]*string{
				"retention.ms":     ptr("604800000"), // 7 days
				"cleanup.policy":   ptr("delete"),
				"compression.type": ptr("lz4"),
			},
		},
		{
			Name:              or(names.DeadLetter, TopicDeadLetter),
			Partitions:        1,
			ReplicationFactor: 1,
			Configs: map[string]*string{
				"retention.ms":   ptr("2592000000"), // 30 days
				"cleanup.policy": ptr("delete"),
			},
		},
		{
			Name:              or(names.Snapshots, TopicSnapshots),
			Partitions:        1,
			ReplicationFactor: 1,
			Configs: map[string]*string{
				// keeps the latest snapshot per day
				"cleanup.policy":   ptr("compact"),
				"compression.type": ptr("lz4"),
			},
		},
	}
}

// PartitionLag is the lag of one consumed partition.
type PartitionLag struct {
	Topic     string
	Partition int32
	Lag       int64
}

// Admin creates topics and reports consumer lag.
type Admin struct {
	client *kadm.Client
	logger *zap.Logger
}

// NewAdmin creates an admin client.
func NewAdmin(brokers []string, logger *zap.Logger) (*Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Admin{client: kadm.NewClient(cl), logger: logger}, nil
}

// EnsureTopics creates the topics of configs that do not exist yet and
// returns the names it created. Existing topics are left untouched.
func (a *Admin) EnsureTopics(ctx context.Context, configs []TopicConfig) ([]string, error) {
	names := make([]string, len(configs))
	for i, c := range configs {
		names[i] = c.Name
	}
	existing, err := a.client.ListTopics(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	var created []string
	for _, c := range configs {
		if d, ok := existing[c.Name]; ok && d.Err == nil {
			a.logger.Debug("topic exists", zap.String("topic", c.Name))
			continue
		}
		resp, err := a.client.CreateTopic(ctx, c.Partitions, c.ReplicationFactor, c.Configs, c.Name)
		if errors.Is(err, kerr.TopicAlreadyExists) || errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			continue
		}
		if err == nil {
			err = resp.Err
		}
		if err != nil {
			return created, fmt.Errorf("create topic %s: %w", c.Name, err)
		}
		a.logger.Info("topic created",
			zap.String("topic", c.Name),
			zap.Int32("partitions", c.Partitions))
		created = append(created, c.Name)
	}
	return created, nil
}

// Lag returns the lag of every partition the group has committed, sorted by
// topic and partition.
func (a *Admin) Lag(ctx context.Context, group string) ([]PartitionLag, error) {
	described, err := a.client.Lag(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("describe lag of %s: %w", group, err)
	}

	var out []PartitionLag
	described.Each(func(l kadm.DescribedGroupLag) {
		for topic, partitions := range l.Lag {
			for partition, lag := range partitions {
				out = append(out, PartitionLag{Topic: topic, Partition: partition, Lag: lag.Lag})
			}
		}
	})
	sortLag(out)
	return out, nil
}

func sortLag(lags []PartitionLag) {
	sort.Slice(lags, func(i, j int) bool {
		if lags[i].Topic != lags[j].Topic {
			return lags[i].Topic < lags[j].Topic
		}
		return lags[i].Partition < lags[j].Partition
	})
}

// Close closes the admin client.
func (a *Admin) Close() {
	a.client.Close()
}

// HealthCheck verifies broker connectivity.
func HealthCheck(ctx context.Context, brokers []string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer cl.Close()

	if err := cl.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
