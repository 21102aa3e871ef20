// Package memory provides an in-process store.Backend. Records are kept per
// kind in insertion order, which is the provider order Load returns.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jbweber/homelab/genrepo/internal/store"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory backend is closed")

type table struct {
	rows  map[string][]byte
	order []string
}

func (t *table) clone() *table {
	rows := make(map[string][]byte, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	return &table{rows: rows, order: slices.Clone(t.order)}
}

// Backend is a concurrency-safe in-memory store.Backend.
type Backend struct {
	mu     sync.RWMutex
	tables map[string]*table
	closed bool
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{tables: make(map[string]*table)}
}

// Load returns the records of kind in insertion order.
func (b *Backend) Load(ctx context.Context, kind string) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	t, ok := b.tables[kind]
	if !ok {
		return nil, nil
	}
	records := make([]store.Record, 0, len(t.order))
	for _, key := range t.order {
		records = append(records, store.Record{Key: key, Data: slices.Clone(t.rows[key])})
	}
	return records, nil
}

// Apply writes changes atomically: they are staged on copies of the
// affected tables and swapped in only when every change succeeded.
func (b *Backend) Apply(ctx context.Context, changes []store.Change) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	staged := make(map[string]*table)
	stage := func(kind string) *table {
		if t, ok := staged[kind]; ok {
			return t
		}
		t, ok := b.tables[kind]
		if ok {
			t = t.clone()
		} else {
			t = &table{rows: make(map[string][]byte)}
		}
		staged[kind] = t
		return t
	}

	for _, c := range changes {
		t := stage(c.Kind)
		_, exists := t.rows[c.Key]
		switch c.Op {
		case store.OpInsert:
			if exists {
				return 0, fmt.Errorf("insert %s %s: %w", c.Kind, c.Key, store.ErrDuplicate)
			}
			t.rows[c.Key] = slices.Clone(c.Data)
			t.order = append(t.order, c.Key)
		case store.OpUpdate:
			if !exists {
				return 0, fmt.Errorf("update %s %s: %w", c.Kind, c.Key, store.ErrConcurrency)
			}
			t.rows[c.Key] = slices.Clone(c.Data)
		case store.OpDelete:
			if !exists {
				return 0, fmt.Errorf("delete %s %s: %w", c.Kind, c.Key, store.ErrConcurrency)
			}
			delete(t.rows, c.Key)
			t.order = slices.DeleteFunc(t.order, func(k string) bool { return k == c.Key })
		default:
			return 0, fmt.Errorf("unsupported change %s", c.Op)
		}
	}

	for kind, t := range staged {
		b.tables[kind] = t
	}
	return len(changes), nil
}

// Len returns the number of records of kind.
func (b *Backend) Len(kind string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t, ok := b.tables[kind]; ok {
		return len(t.rows)
	}
	return 0
}

// Close releases the stored data. Further calls fail with ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.tables = make(map[string]*table)
	return nil
}

var _ store.Backend = (*Backend)(nil)
