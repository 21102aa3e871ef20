package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jbweber/homelab/genrepo/internal/query"
)

// Set is the typed handle for one entity type within a session. It hands
// out query handles and executes their plans against the session backend.
type Set[T any, ID comparable] struct {
	session *Session
	schema  *query.Schema[T, ID]
}

// NewSet binds schema to session.
func NewSet[T any, ID comparable](s *Session, schema *query.Schema[T, ID]) *Set[T, ID] {
	return &Set[T, ID]{session: s, schema: schema}
}

// Session returns the unit of work the set belongs to.
func (s *Set[T, ID]) Session() *Session { return s.session }

// Schema returns the schema the set was built with.
func (s *Set[T, ID]) Schema() *query.Schema[T, ID] { return s.schema }

// Query returns a fresh query handle with the tracking mode bound to it.
// The mode is never stored on the session, so handles acquired with
// different modes do not affect each other.
func (s *Set[T, ID]) Query(mode query.TrackingMode) *query.Query[T] {
	return query.New[T](s, s.schema, mode)
}

func (s *Set[T, ID]) keyOf(e *T) string {
	return fmt.Sprint(s.schema.Key(e))
}

func (s *Set[T, ID]) newEntry(e *T, state EntityState) *entry {
	return &entry{
		kind:       s.schema.Kind(),
		key:        s.keyOf(e),
		state:      state,
		value:      e,
		currentKey: func() string { return s.keyOf(e) },
		encode:     func() ([]byte, error) { return json.Marshal(e) },
	}
}

// State returns the tracking state of e.
func (s *Set[T, ID]) State(e *T) EntityState {
	if e == nil {
		return Detached
	}
	existing := s.session.lookup(s.schema.Kind(), s.keyOf(e))
	if existing == nil || existing.value != any(e) {
		return Detached
	}
	return existing.state
}

// Add marks entities for insertion on the next Persist.
func (s *Set[T, ID]) Add(entities ...*T) error {
	for _, e := range entities {
		if e == nil {
			return fmt.Errorf("add %s: %w", s.schema.Kind(), ErrInvalidEntity)
		}
		existing := s.session.lookup(s.schema.Kind(), s.keyOf(e))
		switch {
		case existing == nil:
			s.session.attach(s.newEntry(e, Added))
		case existing.value == any(e):
			existing.state = Added
		default:
			return fmt.Errorf("add %s %s: %w", existing.kind, existing.key, ErrAlreadyTracked)
		}
	}
	return nil
}

// Update marks entities as modified, attaching them if they are not tracked.
func (s *Set[T, ID]) Update(entities ...*T) error {
	for _, e := range entities {
		if e == nil {
			return fmt.Errorf("update %s: %w", s.schema.Kind(), ErrInvalidEntity)
		}
		existing := s.session.lookup(s.schema.Kind(), s.keyOf(e))
		switch {
		case existing == nil:
			s.session.attach(s.newEntry(e, Modified))
		case existing.value != any(e):
			return fmt.Errorf("update %s %s: %w", existing.kind, existing.key, ErrAlreadyTracked)
		case existing.state != Added:
			existing.state = Modified
		}
	}
	return nil
}

// Remove marks entities for deletion. Entities added in this session and
// not yet persisted are simply forgotten.
func (s *Set[T, ID]) Remove(entities ...*T) error {
	for _, e := range entities {
		if e == nil {
			return fmt.Errorf("remove %s: %w", s.schema.Kind(), ErrInvalidEntity)
		}
		existing := s.session.lookup(s.schema.Kind(), s.keyOf(e))
		switch {
		case existing == nil:
			s.session.attach(s.newEntry(e, Deleted))
		case existing.value != any(e):
			return fmt.Errorf("remove %s %s: %w", existing.kind, existing.key, ErrAlreadyTracked)
		case existing.state == Added:
			s.session.forget(existing)
		default:
			existing.state = Deleted
		}
	}
	return nil
}

// Execute implements query.Provider. Rows are decoded from the backend and
// filtered, sorted and limited on their stored values, so the tracking mode
// never changes which rows match. Under TrackAll each returned row is then
// replaced by the instance the session already tracks, or attached. Only
// returned rows and the entities included for them are tracked.
func (s *Set[T, ID]) Execute(ctx context.Context, plan query.Plan[T]) ([]*T, error) {
	records, err := s.session.backend.Load(ctx, plan.Kind)
	if err != nil {
		s.session.observer.QueryExecuted(plan.Kind, 0, err)
		return nil, err
	}

	candidates := make([]*T, 0, len(records))
	keys := make(map[*T]string, len(records))
	for _, rec := range records {
		v := new(T)
		if err := json.Unmarshal(rec.Data, v); err != nil {
			s.session.observer.QueryExecuted(plan.Kind, 0, err)
			return nil, fmt.Errorf("decode %s %s: %w", plan.Kind, rec.Key, err)
		}
		candidates = append(candidates, v)
		keys[v] = rec.Key
	}

	// Filters and sort keys may read navigation fields, so candidates get
	// their includes first. That pass never tracks.
	needsNavigation := len(plan.Filters) > 0 || len(plan.Order) > 0
	if needsNavigation {
		if err := s.include(ctx, plan, query.NoTracking, candidates); err != nil {
			return nil, err
		}
	}

	result := plan.Apply(candidates)
	if plan.Unique && len(result) > 1 {
		err := fmt.Errorf("%s: %w", plan.Kind, query.ErrMultipleResultsFound)
		s.session.observer.QueryExecuted(plan.Kind, 0, err)
		return nil, err
	}

	if plan.Mode == query.TrackAll {
		if err := s.resolve(result, keys); err != nil {
			return nil, err
		}
	}
	if plan.Mode == query.TrackAll || !needsNavigation {
		if err := s.include(ctx, plan, plan.Mode, result); err != nil {
			return nil, err
		}
	}

	s.session.observer.QueryExecuted(plan.Kind, len(result), nil)
	return result, nil
}

// resolve swaps every row for the instance tracked under its key, attaching
// rows that are not tracked yet.
func (s *Set[T, ID]) resolve(rows []*T, keys map[*T]string) error {
	kind := s.schema.Kind()
	for i, v := range rows {
		if existing := s.session.lookup(kind, keys[v]); existing != nil {
			if tracked, ok := existing.value.(*T); ok {
				rows[i] = tracked
				continue
			}
		}
		e := s.newEntry(v, Unchanged)
		snapshot, err := e.encode()
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", e.kind, e.key, err)
		}
		e.snapshot = snapshot
		s.session.attach(e)
	}
	return nil
}

func (s *Set[T, ID]) include(ctx context.Context, plan query.Plan[T], mode query.TrackingMode, items []*T) error {
	if len(items) == 0 {
		return nil
	}
	for _, inc := range plan.Includes {
		if err := inc.Load(ctx, mode, items); err != nil {
			err = fmt.Errorf("include %s.%s: %w", plan.Kind, inc.Name(), err)
			s.session.observer.QueryExecuted(plan.Kind, 0, err)
			return err
		}
	}
	return nil
}
