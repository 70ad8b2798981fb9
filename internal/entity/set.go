package entity

import (
	"context"

	"github.com/serik1987/corefacility/internal/domain"
)

// FilterSpec declares one admissible filter of an entity set. The optional
// Check predicate validates assigned filter values.
type FilterSpec struct {
	Check func(value any) error
}

// Query carries the accumulated filter assignments plus the window of one
// set operation to the backend reader. The reader translates filter names
// into backend predicates through its own filter map; unmapped names pass
// through unchanged.
type Query struct {
	// Filters are the assigned filter values keyed by filter name.
	Filters map[string]any

	// Offset and Limit bound the result window. Limit below zero means
	// unbounded.
	Offset int64
	Limit  int64
}

// Reader executes set operations against one backend. Every method issues
// exactly one backend query; this is a hard performance invariant of the
// entity-set design and the tests count queries to enforce it.
type Reader[T any] interface {
	// Read returns the rows selected by the query window.
	Read(ctx context.Context, q Query) ([]T, error)

	// Count returns the number of rows matching the query filters.
	Count(ctx context.Context, q Query) (int64, error)

	// GetByID returns the single row with the given primary key.
	GetByID(ctx context.Context, q Query, id int64) (T, error)

	// GetByAlias returns the single row with the given alias value, or
	// domain.ErrEntityNotFound when the entity class declares no alias.
	GetByAlias(ctx context.Context, q Query, alias string) (T, error)
}

// Set is a filter-configurable container over one entity kind. Filters are
// declared per class; assigning an undeclared filter fails. All access goes
// through the backend reader in single queries.
type Set[T any] struct {
	reader   Reader[T]
	allowed  map[string]FilterSpec
	hasAlias bool
	filters  map[string]any
}

// NewSet creates an entity set with the declared filter list. hasAlias
// enables string lookups through Get.
func NewSet[T any](reader Reader[T], allowed map[string]FilterSpec, hasAlias bool) *Set[T] {
	return &Set[T]{
		reader:   reader,
		allowed:  allowed,
		hasAlias: hasAlias,
		filters:  make(map[string]any),
	}
}

// SetFilter assigns a filter value. Unknown filter names and values
// rejected by the filter predicate fail with a field error.
func (s *Set[T]) SetFilter(name string, value any) error {
	spec, ok := s.allowed[name]
	if !ok {
		return domain.NewFieldError(name, "is not a declared filter")
	}
	if spec.Check != nil {
		if err := spec.Check(value); err != nil {
			return err
		}
	}
	s.filters[name] = value
	return nil
}

// ClearFilter removes an assigned filter value.
func (s *Set[T]) ClearFilter(name string) {
	delete(s.filters, name)
}

func (s *Set[T]) query(offset, limit int64) Query {
	copied := make(map[string]any, len(s.filters))
	for k, v := range s.filters {
		copied[k] = v
	}
	return Query{Filters: copied, Offset: offset, Limit: limit}
}

// Len returns the number of entities matching the filters. One query.
func (s *Set[T]) Len(ctx context.Context) (int64, error) {
	return s.reader.Count(ctx, s.query(0, -1))
}

// All returns every entity matching the filters. One query.
func (s *Set[T]) All(ctx context.Context) ([]T, error) {
	return s.reader.Read(ctx, s.query(0, -1))
}

// At returns the i-th entity of the filtered, backend-ordered result.
// One query. Negative indices are rejected.
func (s *Set[T]) At(ctx context.Context, i int64) (T, error) {
	var zero T
	if i < 0 {
		return zero, domain.NewDomainError(domain.ErrOperationNotPermitted,
			"negative index", "")
	}
	rows, err := s.reader.Read(ctx, s.query(i, 1))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, domain.ErrEntityNotFound
	}
	return rows[0], nil
}

// Slice returns the half-open window [from, to) of the filtered result in
// one query. Negative bounds are rejected.
func (s *Set[T]) Slice(ctx context.Context, from, to int64) ([]T, error) {
	return s.SliceStep(ctx, from, to, 1)
}

// SliceStep is Slice with an explicit stride; only the trivial stride 1 is
// supported, anything else fails with operation-not-permitted.
func (s *Set[T]) SliceStep(ctx context.Context, from, to, step int64) ([]T, error) {
	if step != 1 {
		return nil, domain.NewDomainError(domain.ErrOperationNotPermitted,
			"only stride 1 slices are supported", "")
	}
	if from < 0 || to < 0 {
		return nil, domain.NewDomainError(domain.ErrOperationNotPermitted,
			"negative slice bounds are not supported", "")
	}
	if to <= from {
		return []T{}, nil
	}
	return s.reader.Read(ctx, s.query(from, to-from))
}

// Get looks an entity up by primary key (int64) or by the class's
// designated alias field (string). Any other lookup type, an entity class
// without an alias field, or a missing row yields entity-not-found.
func (s *Set[T]) Get(ctx context.Context, lookup any) (T, error) {
	var zero T
	switch v := lookup.(type) {
	case int64:
		return s.reader.GetByID(ctx, s.query(0, -1), v)
	case int:
		return s.reader.GetByID(ctx, s.query(0, -1), int64(v))
	case string:
		if !s.hasAlias {
			return zero, domain.NewDomainError(domain.ErrEntityNotFound,
				"entity class has no alias field", v)
		}
		return s.reader.GetByAlias(ctx, s.query(0, -1), v)
	default:
		return zero, domain.NewDomainError(domain.ErrEntityNotFound,
			"unsupported lookup type", "")
	}
}
