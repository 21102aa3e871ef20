package repository

import (
	"errors"

	"github.com/jbweber/homelab/genrepo/internal/query"
	"github.com/jbweber/homelab/genrepo/internal/store"
)

// Common repository errors that can be checked with errors.Is()
var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when attempting to create an entity that already exists
	ErrDuplicate = store.ErrDuplicate

	// ErrConcurrency is returned when an updated or deleted entity no longer exists
	ErrConcurrency = store.ErrConcurrency

	// ErrKeyModified is returned when a tracked entity's key was changed before saving
	ErrKeyModified = store.ErrKeyModified

	// ErrInvalidEntity is returned when an entity fails validation
	ErrInvalidEntity = store.ErrInvalidEntity

	// ErrMultipleResultsFound is returned by SingleOrDefault when more than one entity matches
	ErrMultipleResultsFound = query.ErrMultipleResultsFound
)
