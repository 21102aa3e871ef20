package query

import (
	"cmp"
	"context"
	"fmt"
	"time"
)

// Field is a typed accessor resolved from a field name. It only knows how to
// order two entities by the underlying value.
type Field[T any] struct {
	name    string
	compare func(a, b *T) int
}

// Name returns the registered field name.
func (f Field[T]) Name() string { return f.name }

// Compare orders a and b ascending by the field value.
func (f Field[T]) Compare(a, b *T) int { return f.compare(a, b) }

// LoadFunc populates a navigation on every item. It is called with the
// tracking mode of the query that requested the include.
type LoadFunc[T any] func(ctx context.Context, mode TrackingMode, items []*T) error

// Relation is a named eager-load path registered on a schema.
type Relation[T any] struct {
	name string
	load LoadFunc[T]
}

// Name returns the include path.
func (r Relation[T]) Name() string { return r.name }

// Load runs the loader against items.
func (r Relation[T]) Load(ctx context.Context, mode TrackingMode, items []*T) error {
	return r.load(ctx, mode, items)
}

// Resolver maps names to typed accessors for one entity type.
type Resolver[T any] interface {
	Kind() string
	Resolve(name string) (Field[T], error)
	Relation(name string) (Relation[T], error)
}

// Schema describes an entity type: its kind (collection name), its key
// accessor and the fields and relations that may be named at runtime.
// Fields are registered explicitly with OrderedField, NullableField,
// TimeField and BoolField.
type Schema[T any, ID comparable] struct {
	kind      string
	key       func(*T) ID
	fields    map[string]Field[T]
	names     []string
	relations map[string]Relation[T]
}

// NewSchema creates an empty schema for entities of the given kind.
func NewSchema[T any, ID comparable](kind string, key func(*T) ID) *Schema[T, ID] {
	return &Schema[T, ID]{
		kind:      kind,
		key:       key,
		fields:    make(map[string]Field[T]),
		relations: make(map[string]Relation[T]),
	}
}

// Kind returns the collection name entities of this type are stored under.
func (s *Schema[T, ID]) Kind() string { return s.kind }

// Key returns the primary key of e.
func (s *Schema[T, ID]) Key(e *T) ID { return s.key(e) }

// Fields returns the registered field names in registration order.
func (s *Schema[T, ID]) Fields() []string {
	return append([]string(nil), s.names...)
}

// Resolve looks up a field by exact name.
func (s *Schema[T, ID]) Resolve(name string) (Field[T], error) {
	f, ok := s.fields[name]
	if !ok {
		return Field[T]{}, fmt.Errorf("%s.%s: %w", s.kind, name, ErrFieldNotFound)
	}
	return f, nil
}

// Relation looks up an include path by exact name.
func (s *Schema[T, ID]) Relation(name string) (Relation[T], error) {
	r, ok := s.relations[name]
	if !ok {
		return Relation[T]{}, fmt.Errorf("%s.%s: %w", s.kind, name, ErrFieldNotFound)
	}
	return r, nil
}

// AddRelation registers an include path. It panics on a duplicate name.
func (s *Schema[T, ID]) AddRelation(name string, load LoadFunc[T]) *Schema[T, ID] {
	if _, ok := s.relations[name]; ok {
		panic(fmt.Sprintf("query: relation %s.%s registered twice", s.kind, name))
	}
	s.relations[name] = Relation[T]{name: name, load: load}
	return s
}

func (s *Schema[T, ID]) addField(name string, compare func(a, b *T) int) {
	if _, ok := s.fields[name]; ok {
		panic(fmt.Sprintf("query: field %s.%s registered twice", s.kind, name))
	}
	s.fields[name] = Field[T]{name: name, compare: compare}
	s.names = append(s.names, name)
}

// OrderedField registers a field whose value has a natural order.
func OrderedField[T any, ID comparable, V cmp.Ordered](s *Schema[T, ID], name string, get func(*T) V) {
	s.addField(name, func(a, b *T) int {
		return cmp.Compare(get(a), get(b))
	})
}

// NullableField registers an optional ordered field. Nil sorts before any value.
func NullableField[T any, ID comparable, V cmp.Ordered](s *Schema[T, ID], name string, get func(*T) *V) {
	s.addField(name, func(a, b *T) int {
		va, vb := get(a), get(b)
		switch {
		case va == nil && vb == nil:
			return 0
		case va == nil:
			return -1
		case vb == nil:
			return 1
		}
		return cmp.Compare(*va, *vb)
	})
}

// TimeField registers a time.Time field.
func TimeField[T any, ID comparable](s *Schema[T, ID], name string, get func(*T) time.Time) {
	s.addField(name, func(a, b *T) int {
		return get(a).Compare(get(b))
	})
}

// BoolField registers a bool field; false sorts before true.
func BoolField[T any, ID comparable](s *Schema[T, ID], name string, get func(*T) bool) {
	s.addField(name, func(a, b *T) int {
		va, vb := get(a), get(b)
		switch {
		case va == vb:
			return 0
		case !va:
			return -1
		default:
			return 1
		}
	})
}
