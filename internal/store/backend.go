package store

import (
	"context"
	"errors"
)

// Errors reported by backends. Other backend failures are returned as they
// are produced by the driver.
var (
	// ErrDuplicate is returned when inserting a key that already exists
	ErrDuplicate = errors.New("entity already exists")

	// ErrConcurrency is returned when an update or delete matched no row
	ErrConcurrency = errors.New("entity was modified or deleted concurrently")

	// ErrAlreadyTracked is returned when a different instance with the same
	// key is already tracked by the session
	ErrAlreadyTracked = errors.New("another instance with the same key is already tracked")

	// ErrKeyModified is returned by Persist when the key of a tracked
	// entity no longer matches the key it was tracked under
	ErrKeyModified = errors.New("key of a tracked entity was modified")

	// ErrInvalidEntity is returned for nil entities
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUnknownBackend is returned when configuration names no known backend
	ErrUnknownBackend = errors.New("unknown backend")
)

// Record is one stored entity.
type Record struct {
	Key  string
	Data []byte
}

// Op is the kind of a pending change.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is a single write produced by Session.Persist.
type Change struct {
	Op   Op
	Kind string
	Key  string
	Data []byte
}

// Backend is the persistence engine behind a session. Implementations must
// be safe for concurrent use by multiple sessions.
type Backend interface {
	// Load returns every record of kind in provider order.
	Load(ctx context.Context, kind string) ([]Record, error)
	// Apply writes all changes atomically and returns the rows affected.
	Apply(ctx context.Context, changes []Change) (int, error)
	Close() error
}

// Observer receives notifications about backend round trips.
type Observer interface {
	QueryExecuted(kind string, rows int, err error)
	ChangesPersisted(rows int, err error)
}

type nopObserver struct{}

func (nopObserver) QueryExecuted(string, int, error) {}
func (nopObserver) ChangesPersisted(int, error)      {}
