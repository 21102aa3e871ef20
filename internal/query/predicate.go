package query

// And matches when every non-nil predicate matches.
func And[T any](preds ...Predicate[T]) Predicate[T] {
	return func(e *T) bool {
		for _, p := range preds {
			if p != nil && !p(e) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one non-nil predicate matches.
func Or[T any](preds ...Predicate[T]) Predicate[T] {
	return func(e *T) bool {
		for _, p := range preds {
			if p != nil && p(e) {
				return true
			}
		}
		return false
	}
}

// Not negates p. A nil p matches everything, so Not(nil) matches nothing.
func Not[T any](p Predicate[T]) Predicate[T] {
	return func(e *T) bool {
		return p != nil && !p(e)
	}
}
