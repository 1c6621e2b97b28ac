// Package postgres stores prescription records and user profiles as JSONB
// documents in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS prescriptions (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS prescriptions_patient_id_idx ON prescriptions ((doc->>'patientId'));
CREATE INDEX IF NOT EXISTS prescriptions_user_id_idx ON prescriptions ((doc->>'userId'));
CREATE INDEX IF NOT EXISTS prescriptions_created_at_idx ON prescriptions (created_at DESC);

CREATE TABLE IF NOT EXISTS users (
	id  TEXT PRIMARY KEY,
	doc JSONB NOT NULL
);
`

// subjectFields are the document fields a subject query may match on.
var subjectFields = map[string]struct{}{
	"patientId": {},
	"userId":    {},
}

// PoolConfig holds pool settings
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// DefaultPoolConfig returns local development settings
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		DSN:             "postgres://localhost:5432/rxinsight?sslmode=disable",
		MaxConns:        10,
		MaxConnLifetime: time.Hour,
	}
}

// Store reads and writes JSONB documents through a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// Connect opens a pool and pings the database.
func Connect(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(pool, logger), nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("postgres-store"),
	}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info("postgres schema ready")
	return nil
}

// Records returns every prescription document, oldest first.
func (s *Store) Records(ctx context.Context) ([]record.Raw, error) {
	ctx, span := s.tracer.Start(ctx, "postgres.records")
	defer span.End()
	return s.query(ctx, `SELECT doc FROM prescriptions ORDER BY created_at NULLS FIRST, id`)
}

// RecordsBySubject returns the documents whose field equals subjectID, newest
// first. Only patientId and userId may be queried.
func (s *Store) RecordsBySubject(ctx context.Context, field, subjectID string) ([]record.Raw, error) {
	ctx, span := s.tracer.Start(ctx, "postgres.records_by_subject",
		trace.WithAttributes(attribute.String("field", field)))
	defer span.End()

	if _, ok := subjectFields[field]; !ok {
		return nil, fmt.Errorf("unsupported subject field %q", field)
	}
	return s.query(ctx,
		`SELECT doc FROM prescriptions WHERE doc->>$1 = $2 ORDER BY created_at DESC NULLS LAST, id`,
		field, subjectID)
}

// Users returns every user profile document.
func (s *Store) Users(ctx context.Context) ([]record.Raw, error) {
	ctx, span := s.tracer.Start(ctx, "postgres.users")
	defer span.End()
	return s.query(ctx, `SELECT doc FROM users ORDER BY id`)
}

// UpsertRecord inserts or replaces the prescription stored under id.
func (s *Store) UpsertRecord(ctx context.Context, id string, doc record.Raw) error {
	ctx, span := s.tracer.Start(ctx, "postgres.upsert_record")
	defer span.End()

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO prescriptions (id, doc, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, created_at = EXCLUDED.created_at
	`, id, payload, createdAt(doc))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upsert record %s: %w", id, err)
	}
	return nil
}

// UpsertUser inserts or replaces the user profile stored under id.
func (s *Store) UpsertUser(ctx context.Context, id string, doc record.Raw) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", id, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, id, payload)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", id, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) query(ctx context.Context, sql string, args ...interface{}) ([]record.Raw, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Raw, error) {
		var payload []byte
		if err := row.Scan(&payload); err != nil {
			return nil, err
		}
		return decode(payload)
	})
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}

func decode(payload []byte) (record.Raw, error) {
	var doc record.Raw
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = record.Raw{}
	}
	return doc, nil
}

// createdAt is the indexed timestamp column of a document, nil when the
// document has none.
func createdAt(doc record.Raw) *time.Time {
	for _, key := range record.TimestampKeys {
		v, ok := record.Lookup(doc, key)
		if !ok {
			continue
		}
		if ts, ok := record.ParseTimestamp(v); ok {
			return &ts
		}
	}
	return nil
}
