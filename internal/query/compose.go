package query

import "fmt"

// IncludeFunc is an accessor chain applied to the base query before the
// predicate, typically a sequence of Include calls.
type IncludeFunc[T any] func(*Query[T]) *Query[T]

// Spec collects everything a caller may ask of a single query.
// Includes and IncludeChain are alternative styles; a Spec may use only one.
type Spec[T any] struct {
	Predicate    Predicate[T]
	Sort         SortSpec
	Includes     []string
	IncludeChain []IncludeFunc[T]
}

// Compose builds the query described by spec on top of base, whose tracking
// mode is already bound. Stages run in a fixed order: includes, predicate,
// sort. Nothing is executed.
func Compose[T any](base *Query[T], spec Spec[T]) (*Query[T], error) {
	if len(spec.Includes) > 0 && len(spec.IncludeChain) > 0 {
		return nil, fmt.Errorf("%s: include paths and include chain used together: %w", base.schema.Kind(), ErrInvalidIncludeSpec)
	}

	q := base
	for _, path := range spec.Includes {
		q = q.Include(path)
	}
	for _, fn := range spec.IncludeChain {
		if fn == nil {
			continue
		}
		if q = fn(q); q == nil {
			return nil, fmt.Errorf("%s: include chain returned nil: %w", base.schema.Kind(), ErrInvalidIncludeSpec)
		}
	}
	if err := q.Err(); err != nil {
		return nil, err
	}

	return ApplySort(q.Where(spec.Predicate), spec.Sort)
}

// ApplySort appends spec to q as a multi-key ordering. The first parameter
// becomes the primary ordering and every following one a tie-breaker. An
// empty spec returns q unchanged. Fields are resolved up front; the first
// unknown field fails the whole call.
func ApplySort[T any](q *Query[T], spec SortSpec) (*Query[T], error) {
	if err := q.Err(); err != nil {
		return nil, err
	}
	if len(spec) == 0 {
		return q, nil
	}

	steps := make([]OrderStep[T], len(spec))
	for i, p := range spec {
		f, err := q.schema.Resolve(p.FieldName)
		if err != nil {
			return nil, err
		}
		steps[i] = OrderStep[T]{Field: f, Direction: p.Direction}
	}

	out := q.OrderByField(steps[0].Field, steps[0].Direction)
	for _, step := range steps[1:] {
		out = out.ThenByField(step.Field, step.Direction)
	}
	if err := out.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
