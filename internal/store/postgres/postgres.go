// Package postgres is a store.Backend over a PostgreSQL entities table.
// Payloads are stored as JSONB; the statement set matches the sqlite backend.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jbweber/homelab/genrepo/internal/store"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS entities (
	seq BIGSERIAL PRIMARY KEY,
	entity_kind TEXT NOT NULL,
	entity_key TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (entity_kind, entity_key)
);
CREATE INDEX IF NOT EXISTS idx_entities_kind_seq ON entities (entity_kind, seq);
`

const (
	selectByKind = `SELECT entity_key, payload::text FROM entities WHERE entity_kind = $1 ORDER BY seq ASC`
	insertEntity = `INSERT INTO entities (entity_kind, entity_key, payload) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (entity_kind, entity_key) DO NOTHING`
	updateEntity = `UPDATE entities SET payload = $3::jsonb, updated_at = now()
		WHERE entity_kind = $1 AND entity_key = $2`
	deleteEntity = `DELETE FROM entities WHERE entity_kind = $1 AND entity_key = $2`
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Backend stores entities in PostgreSQL.
type Backend struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect creates a connection pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	logger.Info("connected to postgres",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.Int("port", int(poolCfg.ConnConfig.Port)),
		slog.String("database", poolCfg.ConnConfig.Database),
	)
	return pool, nil
}

// Open connects to dsn and ensures the entities table exists.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := Connect(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	b := New(pool, logger)
	if err := b.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// New wraps an existing pool. Close closes the pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{pool: pool, logger: logger.With(slog.String("backend", "postgres"))}
}

// EnsureSchema creates the entities table and its index if missing.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Load returns the records of kind in insertion order.
func (b *Backend) Load(ctx context.Context, kind string) ([]store.Record, error) {
	return load(ctx, b.pool, kind)
}

func load(ctx context.Context, db DBTX, kind string) ([]store.Record, error) {
	rows, err := db.Query(ctx, selectByKind, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var (
			rec     store.Record
			payload string
		)
		if err := rows.Scan(&rec.Key, &payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		rec.Data = []byte(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	return records, nil
}

// Apply writes changes in a single transaction.
func (b *Backend) Apply(ctx context.Context, changes []store.Change) (int, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			b.logger.Warn("rollback failed", slog.Any("error", rbErr))
		}
	}()

	total := 0
	for _, c := range changes {
		n, err := applyOne(ctx, tx, c)
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

func applyOne(ctx context.Context, db DBTX, c store.Change) (int, error) {
	var (
		tag      pgconn.CommandTag
		err      error
		notFound error
	)
	switch c.Op {
	case store.OpInsert:
		tag, err = db.Exec(ctx, insertEntity, c.Kind, c.Key, string(c.Data))
		notFound = store.ErrDuplicate
	case store.OpUpdate:
		tag, err = db.Exec(ctx, updateEntity, c.Kind, c.Key, string(c.Data))
		notFound = store.ErrConcurrency
	case store.OpDelete:
		tag, err = db.Exec(ctx, deleteEntity, c.Kind, c.Key)
		notFound = store.ErrConcurrency
	default:
		return 0, fmt.Errorf("unsupported change %s", c.Op)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s %s %s: %w", c.Op, c.Kind, c.Key, store.ErrDuplicate)
		}
		return 0, fmt.Errorf("%s %s %s: %w", c.Op, c.Kind, c.Key, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("%s %s %s: %w", c.Op, c.Kind, c.Key, notFound)
	}
	return int(tag.RowsAffected()), nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

// Close closes the pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

var _ store.Backend = (*Backend)(nil)
