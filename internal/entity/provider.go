package entity

import (
	"context"
	"io"
)

// File is the content handed to provider file operations (avatars and other
// public files).
type File struct {
	// Name is the client-supplied file name.
	Name string

	// Content delivers the file bytes.
	Content io.Reader
}

// Provider is a pluggable storage backend driven by the entity state
// machine. Three kinds exist: the model provider (the authoritative
// datastore), the posix provider (OS users, groups and symlinks) and the
// files provider (project and user directories). Providers are process-wide
// singletons holding no per-entity state between calls.
type Provider interface {
	// Load looks up the counterpart of the entity in the backend. It is
	// used for duplicate detection on create and for Reload; a missing
	// counterpart is reported as domain.ErrEntityNotFound, which the
	// pipeline recovers as "no duplicate".
	Load(ctx context.Context, e Entity) (Entity, error)

	// Create materializes the entity in the backend. The model provider
	// assigns the generated primary key; later providers observe it.
	Create(ctx context.Context, e Entity) error

	// ResolveConflict reconciles the given entity with a duplicate found by
	// an earlier provider, or fails with domain.ErrEntityDuplicated.
	ResolveConflict(ctx context.Context, given, found Entity) error

	// Update propagates the entity's dirty fields to the backend.
	Update(ctx context.Context, e Entity) error

	// Delete removes the entity from the backend.
	Delete(ctx context.Context, e Entity) error

	// AttachFile stores a public file for the named field.
	AttachFile(ctx context.Context, e Entity, field string, f File) error

	// DetachFile removes the public file stored for the named field.
	DetachFile(ctx context.Context, e Entity, field string) error

	// Wrap reconstructs a fresh entity in state Loaded from the backend
	// native representation.
	Wrap(obj any) (Entity, error)

	// Unwrap converts the entity into the backend native representation.
	Unwrap(e Entity) (any, error)
}

// Transactor encloses a whole provider pipeline run in one transactional
// scope. The datastore implementation carries the transaction through the
// context; backends with non-transactional side effects ignore it.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTransactor runs the function without any transactional scope.
type NopTransactor struct{}

// WithinTransaction implements Transactor.
func (NopTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
