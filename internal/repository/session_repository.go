package repository

import (
	"context"
	"fmt"

	"github.com/jbweber/homelab/genrepo/internal/query"
	"github.com/jbweber/homelab/genrepo/internal/store"
)

// validator is implemented by entities that check themselves before
// being staged for insertion or update.
type validator interface {
	Validate() error
}

// SessionRepository implements Repository over a store.Set. It holds no
// state of its own: tracking lives in the set's session.
type SessionRepository[T any, ID comparable] struct {
	set *store.Set[T, ID]
}

// New creates a repository for the entities of set.
func New[T any, ID comparable](set *store.Set[T, ID]) *SessionRepository[T, ID] {
	return &SessionRepository[T, ID]{set: set}
}

// Set returns the underlying entity set.
func (r *SessionRepository[T, ID]) Set() *store.Set[T, ID] { return r.set }

func (r *SessionRepository[T, ID]) kind() string { return r.set.Schema().Kind() }

func validate[T any](entities []*T) error {
	for _, e := range entities {
		if e == nil {
			continue
		}
		if v, ok := any(e).(validator); ok {
			if err := v.Validate(); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
			}
		}
	}
	return nil
}

// Add marks entities for insertion
func (r *SessionRepository[T, ID]) Add(ctx context.Context, entities ...*T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(entities); err != nil {
		return fmt.Errorf("failed to add %s: %w", r.kind(), err)
	}
	if err := r.set.Add(entities...); err != nil {
		return fmt.Errorf("failed to add %s: %w", r.kind(), err)
	}
	return nil
}

// Update marks entities as modified
func (r *SessionRepository[T, ID]) Update(entities ...*T) error {
	if err := validate(entities); err != nil {
		return fmt.Errorf("failed to update %s: %w", r.kind(), err)
	}
	if err := r.set.Update(entities...); err != nil {
		return fmt.Errorf("failed to update %s: %w", r.kind(), err)
	}
	return nil
}

// PhysicalDelete marks entities for removal
func (r *SessionRepository[T, ID]) PhysicalDelete(entities ...*T) error {
	if err := r.set.Remove(entities...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.kind(), err)
	}
	return nil
}

// compose builds the lookup query: tracking mode, includes, predicate, sort.
func (r *SessionRepository[T, ID]) compose(pred query.Predicate[T], opts []Option) (*query.Query[T], error) {
	o := collect(opts)

	spec := query.Spec[T]{
		Predicate: pred,
		Sort:      o.sort,
		Includes:  o.includes,
	}
	for _, fn := range o.chain {
		typed, ok := fn.(query.IncludeFunc[T])
		if !ok {
			return nil, fmt.Errorf("%s: include chain built for another entity type: %w", r.kind(), query.ErrInvalidIncludeSpec)
		}
		spec.IncludeChain = append(spec.IncludeChain, typed)
	}

	q, err := query.Compose(r.set.Query(o.tracking), spec)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.kind(), err)
	}
	return q, nil
}

// SelectByCondition returns every entity matching pred
func (r *SessionRepository[T, ID]) SelectByCondition(ctx context.Context, pred query.Predicate[T], opts ...Option) ([]*T, error) {
	q, err := r.compose(pred, opts)
	if err != nil {
		return nil, err
	}
	items, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", r.kind(), err)
	}
	return items, nil
}

// FirstOrDefault returns the first match or nil
func (r *SessionRepository[T, ID]) FirstOrDefault(ctx context.Context, pred query.Predicate[T], opts ...Option) (*T, error) {
	q, err := r.compose(pred, opts)
	if err != nil {
		return nil, err
	}
	item, err := q.First(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", r.kind(), err)
	}
	return item, nil
}

// SingleOrDefault returns the only match or nil
func (r *SessionRepository[T, ID]) SingleOrDefault(ctx context.Context, pred query.Predicate[T], opts ...Option) (*T, error) {
	q, err := r.compose(pred, opts)
	if err != nil {
		return nil, err
	}
	item, err := q.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", r.kind(), err)
	}
	return item, nil
}

// Count returns the number of matches
func (r *SessionRepository[T, ID]) Count(ctx context.Context, pred query.Predicate[T]) (int, error) {
	n, err := r.set.Query(query.NoTracking).Where(pred).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.kind(), err)
	}
	return n, nil
}

// Any reports whether at least one entity matches
func (r *SessionRepository[T, ID]) Any(ctx context.Context, pred query.Predicate[T]) (bool, error) {
	ok, err := r.set.Query(query.NoTracking).Where(pred).Any(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", r.kind(), err)
	}
	return ok, nil
}

func (r *SessionRepository[T, ID]) byID(id ID) query.Predicate[T] {
	schema := r.set.Schema()
	return func(e *T) bool { return schema.Key(e) == id }
}

// GetByID retrieves an entity by its ID, or nil
func (r *SessionRepository[T, ID]) GetByID(ctx context.Context, id ID, opts ...Option) (*T, error) {
	return r.FirstOrDefault(ctx, r.byID(id), opts...)
}

// FindByID retrieves an entity by its ID
func (r *SessionRepository[T, ID]) FindByID(ctx context.Context, id ID, opts ...Option) (*T, error) {
	item, err := r.GetByID(ctx, id, opts...)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%s with ID %v: %w", r.kind(), id, ErrNotFound)
	}
	return item, nil
}

// ExistsByID checks if an entity exists by its ID
func (r *SessionRepository[T, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	return r.Any(ctx, r.byID(id))
}

// SaveChanges persists staged changes and returns the rows affected
func (r *SessionRepository[T, ID]) SaveChanges(ctx context.Context) (int, error) {
	n, err := r.set.Session().Persist(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to save changes: %w", err)
	}
	return n, nil
}

// Query returns a composable query handle bound to mode
func (r *SessionRepository[T, ID]) Query(mode query.TrackingMode) *query.Query[T] {
	return r.set.Query(mode)
}

var _ Repository[struct{}, int] = (*SessionRepository[struct{}, int])(nil)
