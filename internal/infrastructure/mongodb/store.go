// Package mongodb stores prescription records and user profiles in MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

const (
	PrescriptionsCollection = "prescriptions"
	UsersCollection         = "users"
)

// Config holds connection settings
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// DefaultConfig returns local development settings
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "prescription_analyzer",
		ConnectTimeout: 10 * time.Second,
	}
}

// Store reads and writes the prescriptions and users collections.
type Store struct {
	client        *mongo.Client
	prescriptions *mongo.Collection
	users         *mongo.Collection
	logger        *zap.Logger
	tracer        trace.Tracer
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	logger.Info("connected to mongodb", zap.String("database", cfg.Database))

	return &Store{
		client:        client,
		prescriptions: db.Collection(PrescriptionsCollection),
		users:         db.Collection(UsersCollection),
		logger:        logger,
		tracer:        otel.Tracer("mongodb-store"),
	}, nil
}

// EnsureIndexes creates the indexes used by subject queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "patientId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := s.prescriptions.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create prescription indexes: %w", err)
	}
	return nil
}

// Records returns every prescription record.
func (s *Store) Records(ctx context.Context) ([]record.Raw, error) {
	ctx, span := s.tracer.Start(ctx, "mongodb.records")
	defer span.End()
	return s.find(ctx, s.prescriptions, bson.M{}, nil)
}

// RecordsBySubject returns the records whose field equals subjectID, newest
// first.
func (s *Store) RecordsBySubject(ctx context.Context, field, subjectID string) ([]record.Raw, error) {
	ctx, span := s.tracer.Start(ctx, "mongodb.records_by_subject",
		trace.WithAttributes(attribute.String("field", field)))
	defer span.End()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, s.prescriptions, bson.M{field: subjectID}, opts)
}

// Users returns every user profile.
func (s *Store) Users(ctx context.Context) ([]record.Raw, error) {
	ctx, span := s.tracer.Start(ctx, "mongodb.users")
	defer span.End()
	return s.find(ctx, s.users, bson.M{}, nil)
}

// UpsertRecord replaces the record stored under id, inserting it if absent.
func (s *Store) UpsertRecord(ctx context.Context, id string, doc record.Raw) error {
	ctx, span := s.tracer.Start(ctx, "mongodb.upsert_record")
	defer span.End()

	_, err := s.prescriptions.ReplaceOne(ctx, bson.M{"_id": id}, fromRaw(id, doc),
		options.Replace().SetUpsert(true))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upsert record %s: %w", id, err)
	}
	return nil
}

// UpsertUser replaces the user profile stored under id, inserting it if absent.
func (s *Store) UpsertUser(ctx context.Context, id string, doc record.Raw) error {
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": id}, fromRaw(id, doc),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", id, err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) find(ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]record.Raw, error) {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	cursor, err := coll.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}

	out := make([]record.Raw, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toRaw(doc))
	}
	s.logger.Debug("loaded documents",
		zap.String("collection", coll.Name()),
		zap.Int("count", len(out)))
	return out, nil
}
