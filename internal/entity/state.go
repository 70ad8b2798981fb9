// Package entity implements the lifecycle shared by every persisted domain
// object: a per-instance state machine, mediated field access with dirty
// tracking, and an ordered provider pipeline dispatching create/update/delete
// to the storage backends.
package entity

// State is the lifecycle state of one entity instance.
type State int

// Lifecycle states. A freshly constructed entity is Creating; entities
// reconstructed by a provider wrap are Loaded.
const (
	StateCreating State = iota
	StateSaved
	StateLoaded
	StateChanged
	StateDeleted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateSaved:
		return "saved"
	case StateLoaded:
		return "loaded"
	case StateChanged:
		return "changed"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// canMutate reports whether field assignment is allowed in this state.
func (s State) canMutate() bool {
	return s == StateCreating || s == StateSaved || s == StateLoaded || s == StateChanged
}

// canDelete reports whether Delete may run from this state.
func (s State) canDelete() bool {
	return s == StateSaved || s == StateLoaded || s == StateChanged
}

// canReload reports whether Reload may run from this state.
func (s State) canReload() bool {
	return s == StateSaved || s == StateLoaded || s == StateChanged
}
