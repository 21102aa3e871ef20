package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// EntityState is the tracking state of an entity within a session.
type EntityState int

const (
	Detached EntityState = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case Detached:
		return "detached"
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// entry is a tracked entity. value holds the caller's pointer and key the
// key it was tracked under; currentKey reads the key from value again.
type entry struct {
	kind       string
	key        string
	state      EntityState
	value      any
	currentKey func() string
	encode     func() ([]byte, error)
	snapshot   []byte
}

// Session is a unit of work over a Backend: it owns the identity map and
// the change tracker and writes pending changes on Persist.
//
// A Session is not safe for concurrent use. Open one per request or task.
type Session struct {
	id       string
	backend  Backend
	logger   *slog.Logger
	observer Observer
	entries  map[string]map[string]*entry
	order    []*entry
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithObserver sets the observer notified of backend round trips.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// NewSession opens a unit of work on b.
func NewSession(b Backend, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		backend:  b,
		logger:   slog.Default(),
		observer: nopObserver{},
		entries:  make(map[string]map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("session", s.id))
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Tracked returns the number of tracked entities.
func (s *Session) Tracked() int { return len(s.order) }

// Detach stops tracking every entity. Pending changes are discarded.
func (s *Session) Detach() {
	s.entries = make(map[string]map[string]*entry)
	s.order = nil
}

func (s *Session) lookup(kind, key string) *entry {
	return s.entries[kind][key]
}

func (s *Session) attach(e *entry) {
	byKey, ok := s.entries[e.kind]
	if !ok {
		byKey = make(map[string]*entry)
		s.entries[e.kind] = byKey
	}
	byKey[e.key] = e
	s.order = append(s.order, e)
}

func (s *Session) forget(e *entry) {
	delete(s.entries[e.kind], e.key)
	for i, o := range s.order {
		if o == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Persist writes every pending change in one backend call and returns the
// number of rows affected. Unchanged entities are compared against their
// snapshot so in-place mutations of tracked entities are detected. Keys
// are immutable once tracked. On failure tracking state is left as it was.
func (s *Session) Persist(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var (
		changes []Change
		touched []*entry
		encoded [][]byte
	)
	for _, e := range s.order {
		var op Op
		switch e.state {
		case Added:
			op = OpInsert
		case Modified:
			op = OpUpdate
		case Deleted:
			op = OpDelete
		case Unchanged:
			op = OpUpdate
		default:
			continue
		}

		var data []byte
		if op != OpDelete {
			if k := e.currentKey(); k != e.key {
				return 0, fmt.Errorf("%s %s changed to %s: %w", e.kind, e.key, k, ErrKeyModified)
			}
			var err error
			if data, err = e.encode(); err != nil {
				return 0, fmt.Errorf("encode %s %s: %w", e.kind, e.key, err)
			}
			if e.state == Unchanged && bytes.Equal(data, e.snapshot) {
				continue
			}
		}
		changes = append(changes, Change{Op: op, Kind: e.kind, Key: e.key, Data: data})
		touched = append(touched, e)
		encoded = append(encoded, data)
	}

	if len(changes) == 0 {
		return 0, nil
	}

	n, err := s.backend.Apply(ctx, changes)
	s.observer.ChangesPersisted(n, err)
	if err != nil {
		return 0, err
	}

	for i, e := range touched {
		if e.state == Deleted {
			s.forget(e)
			continue
		}
		e.state = Unchanged
		e.snapshot = encoded[i]
	}

	s.logger.Debug("changes persisted",
		slog.Int("changes", len(changes)),
		slog.Int("rows", n),
		slog.Int("tracked", len(s.order)),
	)
	return n, nil
}
