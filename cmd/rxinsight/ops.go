package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/app"
	"github.com/drfirst/rxinsight/internal/config"
	"github.com/drfirst/rxinsight/internal/domain/record"
	"github.com/drfirst/rxinsight/internal/infrastructure/redpanda"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
	"github.com/drfirst/rxinsight/internal/snapshot"
)

// Document kinds accepted by import.
const (
	KindRecords = "records"
	KindUsers   = "users"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert documents from a JSON file into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			kind, _ := cmd.Flags().GetString("kind")
			if kind != KindRecords && kind != KindUsers {
				return fmt.Errorf("unknown kind %q", kind)
			}

			docs, err := readDocuments(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := app.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			n, skipped, err := importDocuments(ctx, store, kind, docs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s (%d without id skipped).\n", n, kind, skipped)
			return nil
		},
	}
	cmd.Flags().String("file", "", "JSON array of documents")
	cmd.Flags().String("kind", KindRecords, "records or users")
	cmd.MarkFlagRequired("file")
	return cmd
}

type upserter interface {
	UpsertRecord(ctx context.Context, id string, doc record.Raw) error
	UpsertUser(ctx context.Context, id string, doc record.Raw) error
}

// importDocuments writes docs keyed by their id. Documents without an id are
// skipped since an upsert needs a key.
func importDocuments(ctx context.Context, store upserter, kind string, docs []record.Raw) (imported, skipped int, err error) {
	upsert := store.UpsertRecord
	if kind == KindUsers {
		upsert = store.UpsertUser
	}
	for _, doc := range docs {
		id := record.RawID(doc)
		if id == "" {
			skipped++
			continue
		}
		if err := upsert(ctx, id, doc); err != nil {
			return imported, skipped, fmt.Errorf("upsert %s %s: %w", kind, id, err)
		}
		imported++
	}
	return imported, skipped, nil
}

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage Redpanda topics",
	}

	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create the ingest, dead-letter and snapshot topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			admin, err := redpanda.NewAdmin(cfg.KafkaBrokers(), logger)
			if err != nil {
				return err
			}
			defer admin.Close()

			created, err := admin.EnsureTopics(cmd.Context(), redpanda.TopicLayout(redpanda.TopicNames{
				Ingest:     cfg.IngestTopic,
				DeadLetter: cfg.DeadLetterTopic,
				Snapshots:  cfg.SnapshotTopic,
			}))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d topic(s).\n", len(created))
			for _, name := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			return nil
		},
	}
	cmd.AddCommand(ensureCmd)

	lagCmd := &cobra.Command{
		Use:   "lag",
		Short: "Show the ingest consumer group lag",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			group, _ := cmd.Flags().GetString("group")
			if group == "" {
				group = cfg.IngestGroup
			}

			admin, err := redpanda.NewAdmin(cfg.KafkaBrokers(), logger)
			if err != nil {
				return err
			}
			defer admin.Close()

			lag, err := admin.Lag(cmd.Context(), group)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Lag for group: %s\n", group)
			fmt.Fprintf(out, "%-40s %-10s %s\n", "TOPIC", "PARTITION", "LAG")
			var total int64
			for _, l := range lag {
				fmt.Fprintf(out, "%-40s %-10d %d\n", l.Topic, l.Partition, l.Lag)
				total += l.Lag
			}
			fmt.Fprintf(out, "Total lag: %d\n", total)
			return nil
		},
	}
	lagCmd.Flags().String("group", "", "consumer group (defaults to INGEST_GROUP)")
	cmd.AddCommand(lagCmd)

	return cmd
}

func publishOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish-once",
		Short: "Compute and publish one dashboard snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			store, err := app.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			m := metrics.New(nil)
			svc, err := app.NewAnalytics(store, cfg, m, logger)
			if err != nil {
				return err
			}

			pcfg := redpanda.DefaultProducerConfig()
			pcfg.Brokers = cfg.KafkaBrokers()
			producer, err := redpanda.NewProducer(pcfg, logger)
			if err != nil {
				return err
			}
			defer producer.Close()

			publisher := snapshot.NewPublisher(svc, producer, snapshot.Config{
				Topic:    cfg.SnapshotTopic,
				Interval: cfg.SnapshotInterval,
			}, m, logger)
			if err := publisher.PublishOnce(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published snapshot to %s.\n", cfg.SnapshotTopic)
			return nil
		},
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
