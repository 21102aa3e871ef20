package repository

import (
	"context"

	"github.com/jbweber/homelab/genrepo/internal/query"
)

// Repository defines the query and persistence operations for any entity
// type. Lookups accept a predicate (nil matches everything) plus options
// that control sorting, tracking and eager loading. Writes are staged on
// the underlying session and reach the backend on SaveChanges.
type Repository[T any, ID comparable] interface {
	// Add marks entities for insertion
	Add(ctx context.Context, entities ...*T) error

	// Update marks entities as modified, attaching detached instances
	Update(entities ...*T) error

	// PhysicalDelete marks entities for removal
	PhysicalDelete(entities ...*T) error

	// SelectByCondition returns every entity matching pred
	SelectByCondition(ctx context.Context, pred query.Predicate[T], opts ...Option) ([]*T, error)

	// FirstOrDefault returns the first match or nil
	FirstOrDefault(ctx context.Context, pred query.Predicate[T], opts ...Option) (*T, error)

	// SingleOrDefault returns the only match or nil
	// Returns ErrMultipleResultsFound if more than one entity matches
	SingleOrDefault(ctx context.Context, pred query.Predicate[T], opts ...Option) (*T, error)

	// Count returns the number of matches
	Count(ctx context.Context, pred query.Predicate[T]) (int, error)

	// Any reports whether at least one entity matches
	Any(ctx context.Context, pred query.Predicate[T]) (bool, error)

	// GetByID retrieves an entity by its ID, or nil
	GetByID(ctx context.Context, id ID, opts ...Option) (*T, error)

	// FindByID retrieves an entity by its ID
	// Returns ErrNotFound if the entity doesn't exist
	FindByID(ctx context.Context, id ID, opts ...Option) (*T, error)

	// ExistsByID checks if an entity exists by its ID
	ExistsByID(ctx context.Context, id ID) (bool, error)

	// SaveChanges persists staged changes and returns the rows affected
	SaveChanges(ctx context.Context) (int, error)

	// Query returns a composable query handle bound to mode
	Query(mode query.TrackingMode) *query.Query[T]
}
