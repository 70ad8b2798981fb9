package entity

import (
	"context"
	"errors"

	"github.com/serik1987/corefacility/internal/domain"
)

// Entity is implemented by every persisted domain object wrapper. The
// wrapper holds a Base for the state machine and exposes typed setters that
// funnel through Base.Assign.
type Entity interface {
	// Kind names the entity class ("user", "group", "project", ...).
	Kind() string

	// Base returns the embedded lifecycle state.
	Base() *Base

	// Fields returns the public field description of the class.
	Fields() Fields

	// FieldValue returns the current value of a declared field. Used by the
	// required-field check and by providers during Unwrap.
	FieldValue(name string) any

	// Object returns the underlying domain struct.
	Object() any
}

// Base owns the per-instance state machine and the dirty-field set. It is
// embedded by value in every entity wrapper.
type Base struct {
	id        int64
	state     State
	dirty     map[string]struct{}
	wrapping  bool
	providers []Provider
	tx        Transactor
}

// NewBase constructs the lifecycle state of a freshly created entity.
func NewBase(providers []Provider, tx Transactor) Base {
	if tx == nil {
		tx = NopTransactor{}
	}
	return Base{
		state:     StateCreating,
		dirty:     make(map[string]struct{}),
		providers: providers,
		tx:        tx,
	}
}

// ID returns the generated primary key, zero before the first create.
func (b *Base) ID() int64 { return b.id }

// SetID records the generated primary key. Called by the model provider.
func (b *Base) SetID(id int64) { b.id = id }

// State returns the current lifecycle state.
func (b *Base) State() State { return b.state }

// Dirty returns the names of fields assigned since the last create/update.
func (b *Base) Dirty() []string {
	names := make([]string, 0, len(b.dirty))
	for name := range b.dirty {
		names = append(names, name)
	}
	return names
}

// IsDirty reports whether the named field has an unsaved assignment.
func (b *Base) IsDirty(name string) bool {
	_, ok := b.dirty[name]
	return ok
}

// Providers returns the ordered provider list of the entity class.
func (b *Base) Providers() []Provider { return b.providers }

// Assign validates a candidate value for the named field, records the field
// as dirty and advances the state machine. The caller stores the value in
// the wrapped struct only when Assign returns nil.
func (b *Base) Assign(fields Fields, name string, value any) error {
	spec, ok := fields[name]
	if !ok {
		return domain.NewFieldError(name, "is not declared on this entity")
	}
	if spec.ReadOnly && !b.wrapping {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"field is read-only", name)
	}
	if !b.state.canMutate() {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"entity is "+b.state.String(), name)
	}
	if err := spec.Validate(name, value); err != nil {
		return err
	}
	b.dirty[name] = struct{}{}
	if b.state == StateSaved || b.state == StateLoaded {
		b.state = StateChanged
	}
	return nil
}

// BeginWrap marks the entity as being reconstructed by a provider: read-only
// fields become assignable and the dirty set is not advanced to changed.
func (b *Base) BeginWrap() { b.wrapping = true }

// EndWrap finishes reconstruction: the entity is Loaded and clean.
func (b *Base) EndWrap() {
	b.wrapping = false
	b.state = StateLoaded
	b.dirty = make(map[string]struct{})
}

// markSaved clears the dirty set after a successful create or update.
func (b *Base) markSaved() {
	b.state = StateSaved
	b.dirty = make(map[string]struct{})
}

// requireProviders fails with the development-time provider error when the
// entity class has no pipeline attached.
func requireProviders(e Entity) error {
	if len(e.Base().providers) == 0 {
		return domain.NewDomainError(domain.ErrProviderNotDefined, "no providers attached", e.Kind())
	}
	return nil
}

// checkRequired verifies every required field carries a non-empty value.
func checkRequired(e Entity) error {
	for name, spec := range e.Fields() {
		if spec.Required && isEmpty(e.FieldValue(name)) {
			return domain.NewFieldError(name, "is required")
		}
	}
	return nil
}

// Create materializes a freshly constructed entity through the provider
// pipeline: each provider first probes for a duplicate, then creates its
// side of the entity. The whole pipeline runs in one transactional scope.
func Create(ctx context.Context, e Entity) error {
	b := e.Base()
	if b.state != StateCreating {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"create is valid only for creating entities, not "+b.state.String(), e.Kind())
	}
	if err := requireProviders(e); err != nil {
		return err
	}
	if err := checkRequired(e); err != nil {
		return err
	}
	return b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for i, p := range b.providers {
			found, err := p.Load(ctx, e)
			switch {
			case errors.Is(err, domain.ErrEntityNotFound):
				// no duplicate on this backend
			case err != nil:
				return err
			case found != nil:
				for _, q := range b.providers[i:] {
					if rerr := q.ResolveConflict(ctx, e, found); rerr != nil {
						return rerr
					}
				}
				return domain.NewDomainError(domain.ErrEntityDuplicated, "duplicate detected on load", e.Kind())
			}
		}
		for _, p := range b.providers {
			if err := p.Create(ctx, e); err != nil {
				return err
			}
		}
		b.markSaved()
		return nil
	})
}

// Update propagates the dirty fields of a changed entity through the
// provider pipeline and clears the dirty set.
func Update(ctx context.Context, e Entity) error {
	b := e.Base()
	if b.state != StateChanged {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"update is valid only for changed entities, not "+b.state.String(), e.Kind())
	}
	if err := requireProviders(e); err != nil {
		return err
	}
	if err := checkRequired(e); err != nil {
		return err
	}
	return b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, p := range b.providers {
			if err := p.Update(ctx, e); err != nil {
				return err
			}
		}
		b.markSaved()
		return nil
	})
}

// Delete removes a persisted entity from every backend, running the
// providers in reverse order so the datastore row disappears last.
func Delete(ctx context.Context, e Entity) error {
	b := e.Base()
	if !b.state.canDelete() {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"delete is valid only for persisted entities, not "+b.state.String(), e.Kind())
	}
	if err := requireProviders(e); err != nil {
		return err
	}
	return b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for i := len(b.providers) - 1; i >= 0; i-- {
			if err := b.providers[i].Delete(ctx, e); err != nil {
				return err
			}
		}
		b.state = StateDeleted
		return nil
	})
}

// Reload fetches a fresh copy of the entity from the authoritative
// provider, discarding unsaved assignments.
func Reload(ctx context.Context, e Entity) (Entity, error) {
	b := e.Base()
	if !b.state.canReload() {
		return nil, domain.NewDomainError(domain.ErrOperationNotPermitted,
			"reload is valid only for persisted entities, not "+b.state.String(), e.Kind())
	}
	if err := requireProviders(e); err != nil {
		return nil, err
	}
	return b.providers[0].Load(ctx, e)
}

// AttachFile stores a public file for the named field on every provider,
// detaching any previously stored file first. File operations are allowed
// only on clean persisted entities.
func AttachFile(ctx context.Context, e Entity, field string, f File) error {
	b := e.Base()
	if b.state != StateLoaded && b.state != StateSaved {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"file operations need a clean persisted entity, not "+b.state.String(), e.Kind())
	}
	if err := requireProviders(e); err != nil {
		return err
	}
	return b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, p := range b.providers {
			if err := p.DetachFile(ctx, e, field); err != nil {
				return err
			}
		}
		for _, p := range b.providers {
			if err := p.AttachFile(ctx, e, field, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// DetachFile removes the public file stored for the named field.
func DetachFile(ctx context.Context, e Entity, field string) error {
	b := e.Base()
	if b.state != StateLoaded && b.state != StateSaved {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"file operations need a clean persisted entity, not "+b.state.String(), e.Kind())
	}
	if err := requireProviders(e); err != nil {
		return err
	}
	return b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, p := range b.providers {
			if err := p.DetachFile(ctx, e, field); err != nil {
				return err
			}
		}
		return nil
	})
}
