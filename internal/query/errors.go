package query

import "errors"

// Errors raised while building or materializing a query. All of them are
// returned before any I/O is issued, except ErrMultipleResultsFound which
// depends on the data.
var (
	// ErrFieldNotFound is returned when a field or include path does not
	// resolve against the entity schema
	ErrFieldNotFound = errors.New("field not found")

	// ErrInvalidIncludeSpec is returned when both include styles are requested
	// in the same call
	ErrInvalidIncludeSpec = errors.New("invalid include spec")

	// ErrNotOrdered is returned when a secondary ordering is applied to a
	// query without a primary ordering
	ErrNotOrdered = errors.New("query has no primary ordering")

	// ErrMultipleResultsFound is returned by Single when more than one row matches
	ErrMultipleResultsFound = errors.New("more than one result found")

	// ErrInvalidDirection is returned when a sort direction cannot be parsed
	ErrInvalidDirection = errors.New("invalid sort direction")
)
