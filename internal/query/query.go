package query

import (
	"context"
	"fmt"
	"slices"
)

// Predicate filters entities. A nil predicate matches everything.
type Predicate[T any] func(*T) bool

// Provider materializes a plan. Implementations load the rows of plan.Kind,
// run the includes, then hand the candidates to Plan.Apply.
type Provider[T any] interface {
	Execute(ctx context.Context, plan Plan[T]) ([]*T, error)
}

// OrderStep is one resolved sort key.
type OrderStep[T any] struct {
	Field     Field[T]
	Direction SortDirection
}

// Plan is the executable description of a query.
type Plan[T any] struct {
	Kind     string
	Mode     TrackingMode
	Includes []Relation[T]
	Filters  []Predicate[T]
	Order    []OrderStep[T]
	// Limit caps the number of returned rows; zero means no limit.
	Limit int
	// Unique asks the provider to fail with ErrMultipleResultsFound, before
	// tracking anything, when more than one row matches.
	Unique bool
}

// Match reports whether e passes every filter.
func (p Plan[T]) Match(e *T) bool {
	for _, f := range p.Filters {
		if !f(e) {
			return false
		}
	}
	return true
}

// Comparator folds the order steps left to right into a single comparison.
// It returns nil for an unordered plan.
func (p Plan[T]) Comparator() func(a, b *T) int {
	var compare func(a, b *T) int
	for _, step := range p.Order {
		compare = thenBy(compare, step)
	}
	return compare
}

func thenBy[T any](prev func(a, b *T) int, step OrderStep[T]) func(a, b *T) int {
	next := step.Field.compare
	if step.Direction == Descending {
		next = func(a, b *T) int { return -step.Field.compare(a, b) }
	}
	if prev == nil {
		return next
	}
	return func(a, b *T) int {
		if c := prev(a, b); c != 0 {
			return c
		}
		return next(a, b)
	}
}

// Apply filters, sorts and limits candidates. Sorting is stable so rows
// that tie on every key keep provider order.
func (p Plan[T]) Apply(candidates []*T) []*T {
	out := make([]*T, 0, len(candidates))
	for _, e := range candidates {
		if p.Match(e) {
			out = append(out, e)
		}
	}
	if compare := p.Comparator(); compare != nil {
		slices.SortStableFunc(out, compare)
	}
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out
}

// Query is a lazy, immutable query over one entity type. Every builder
// method returns a new Query; the receiver is never modified. Builder errors
// are sticky and reported by Err and by every terminal operation.
type Query[T any] struct {
	provider Provider[T]
	schema   Resolver[T]
	mode     TrackingMode
	includes []Relation[T]
	filters  []Predicate[T]
	order    []OrderStep[T]
	err      error
}

// New returns the base query handle for a provider under the given
// tracking mode.
func New[T any](provider Provider[T], schema Resolver[T], mode TrackingMode) *Query[T] {
	return &Query[T]{provider: provider, schema: schema, mode: mode}
}

// Mode returns the tracking mode bound to the query.
func (q *Query[T]) Mode() TrackingMode { return q.mode }

// Err returns the first error recorded while building the query.
func (q *Query[T]) Err() error { return q.err }

// Ordered reports whether a primary ordering has been applied.
func (q *Query[T]) Ordered() bool { return len(q.order) > 0 }

func (q *Query[T]) clone() *Query[T] {
	c := *q
	c.includes = slices.Clone(q.includes)
	c.filters = slices.Clone(q.filters)
	c.order = slices.Clone(q.order)
	return &c
}

func (q *Query[T]) fail(err error) *Query[T] {
	if q.err != nil {
		return q
	}
	c := q.clone()
	c.err = err
	return c
}

// Where adds a filter. Filters are combined with AND.
func (q *Query[T]) Where(p Predicate[T]) *Query[T] {
	if p == nil || q.err != nil {
		return q
	}
	c := q.clone()
	c.filters = append(c.filters, p)
	return c
}

// Include eager-loads the named relation.
func (q *Query[T]) Include(path string) *Query[T] {
	if q.err != nil {
		return q
	}
	rel, err := q.schema.Relation(path)
	if err != nil {
		return q.fail(err)
	}
	c := q.clone()
	c.includes = append(c.includes, rel)
	return c
}

// OrderBy resolves name and makes it the primary ordering, discarding any
// previous ordering.
func (q *Query[T]) OrderBy(name string, dir SortDirection) *Query[T] {
	if q.err != nil {
		return q
	}
	f, err := q.schema.Resolve(name)
	if err != nil {
		return q.fail(err)
	}
	return q.OrderByField(f, dir)
}

// ThenBy resolves name and appends it as a tie-breaker.
func (q *Query[T]) ThenBy(name string, dir SortDirection) *Query[T] {
	if q.err != nil {
		return q
	}
	f, err := q.schema.Resolve(name)
	if err != nil {
		return q.fail(err)
	}
	return q.ThenByField(f, dir)
}

// OrderByField is OrderBy with an already resolved field.
func (q *Query[T]) OrderByField(f Field[T], dir SortDirection) *Query[T] {
	if q.err != nil {
		return q
	}
	c := q.clone()
	c.order = []OrderStep[T]{{Field: f, Direction: dir}}
	return c
}

// ThenByField is ThenBy with an already resolved field.
func (q *Query[T]) ThenByField(f Field[T], dir SortDirection) *Query[T] {
	if q.err != nil {
		return q
	}
	if len(q.order) == 0 {
		return q.fail(fmt.Errorf("%s: then by %s: %w", q.schema.Kind(), f.name, ErrNotOrdered))
	}
	c := q.clone()
	c.order = append(c.order, OrderStep[T]{Field: f, Direction: dir})
	return c
}

// Plan returns the executable description of the query.
func (q *Query[T]) Plan() Plan[T] {
	return Plan[T]{
		Kind:     q.schema.Kind(),
		Mode:     q.mode,
		Includes: slices.Clone(q.includes),
		Filters:  slices.Clone(q.filters),
		Order:    slices.Clone(q.order),
	}
}

func (q *Query[T]) execute(ctx context.Context, limit int, unique bool) ([]*T, error) {
	if q.err != nil {
		return nil, q.err
	}
	plan := q.Plan()
	plan.Limit = limit
	plan.Unique = unique
	return q.provider.Execute(ctx, plan)
}

// All materializes every matching row.
func (q *Query[T]) All(ctx context.Context) ([]*T, error) {
	return q.execute(ctx, 0, false)
}

// First returns the first matching row, or nil when there is none.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	rows, err := q.execute(ctx, 1, false)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Single returns the only matching row, nil when there is none and
// ErrMultipleResultsFound when there is more than one.
func (q *Query[T]) Single(ctx context.Context) (*T, error) {
	rows, err := q.execute(ctx, 2, true)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("%s: %w", q.schema.Kind(), ErrMultipleResultsFound)
	}
}

// Count returns the number of matching rows.
func (q *Query[T]) Count(ctx context.Context) (int, error) {
	rows, err := q.execute(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Any reports whether at least one row matches.
func (q *Query[T]) Any(ctx context.Context) (bool, error) {
	rows, err := q.execute(ctx, 1, false)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
