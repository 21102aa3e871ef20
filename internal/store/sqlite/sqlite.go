// Package sqlite is a store.Backend over the entities table created by the
// migrations package. Entities are stored as JSON payloads; the statement
// set is fixed and independent of entity kind.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jbweber/homelab/genrepo/internal/store"
	_ "modernc.org/sqlite"
)

const (
	selectByKind = `SELECT entity_key, payload FROM entities WHERE entity_kind = ? ORDER BY seq ASC`
	insertEntity = `INSERT INTO entities (entity_kind, entity_key, payload) VALUES (?, ?, ?)
		ON CONFLICT (entity_kind, entity_key) DO NOTHING`
	updateEntity = `UPDATE entities SET payload = ?, updated_at = CURRENT_TIMESTAMP
		WHERE entity_kind = ? AND entity_key = ?`
	deleteEntity = `DELETE FROM entities WHERE entity_kind = ? AND entity_key = ?`
)

// Backend stores entities in a SQLite database.
type Backend struct {
	db     *sql.DB
	cache  *StatementCache
	logger *slog.Logger
	ownsDB bool
}

// New wraps an already migrated database. The caller keeps ownership of db.
func New(db *sql.DB, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		db:     db,
		cache:  NewStatementCache(db),
		logger: logger.With(slog.String("backend", "sqlite")),
	}
}

// Adopt is like New but Close also closes db.
func Adopt(db *sql.DB, logger *slog.Logger) *Backend {
	b := New(db, logger)
	b.ownsDB = true
	return b
}

// DB returns the underlying database handle.
func (b *Backend) DB() *sql.DB { return b.db }

// Load returns the records of kind in insertion order.
func (b *Backend) Load(ctx context.Context, kind string) ([]store.Record, error) {
	stmt, err := b.cache.Get(ctx, selectByKind)
	if err != nil {
		return nil, fmt.Errorf("prepare load: %w", err)
	}

	rows, err := stmt.QueryContext(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			b.logger.Warn("failed to close rows", slog.Any("error", err))
		}
	}()

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
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			b.logger.Warn("rollback failed", slog.Any("error", rbErr))
		}
	}()

	total := 0
	for _, c := range changes {
		n, err := b.applyOne(ctx, tx, c)
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

func (b *Backend) applyOne(ctx context.Context, tx *sql.Tx, c store.Change) (int, error) {
	var (
		query    string
		args     []any
		notFound error
	)
	switch c.Op {
	case store.OpInsert:
		query, args, notFound = insertEntity, []any{c.Kind, c.Key, string(c.Data)}, store.ErrDuplicate
	case store.OpUpdate:
		query, args, notFound = updateEntity, []any{string(c.Data), c.Kind, c.Key}, store.ErrConcurrency
	case store.OpDelete:
		query, args, notFound = deleteEntity, []any{c.Kind, c.Key}, store.ErrConcurrency
	default:
		return 0, fmt.Errorf("unsupported change %s", c.Op)
	}

	stmt, err := b.cache.Get(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare %s: %w", c.Op, err)
	}

	res, err := tx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("%s %s %s: %w", c.Op, c.Kind, c.Key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s %s %s: %w", c.Op, c.Kind, c.Key, err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%s %s %s: %w", c.Op, c.Kind, c.Key, notFound)
	}
	return int(affected), nil
}

// Close releases cached statements, and the database when adopted.
func (b *Backend) Close() error {
	err := b.cache.Close()
	if b.ownsDB {
		if dbErr := b.db.Close(); dbErr != nil {
			err = dbErr
		}
	}
	return err
}

var _ store.Backend = (*Backend)(nil)
