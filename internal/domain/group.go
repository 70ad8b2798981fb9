package domain

// Group represents a hierarchical scientific group.
// Every group has exactly one governor who is implicitly a member and
// cannot be removed from the group while remaining its governor.
type Group struct {
	// ID is the unique identifier for the group (auto-generated).
	ID int64 `json:"id"`

	// Name is the display name. Constraints: 1-256 characters.
	Name string `json:"name"`

	// GovernorID is the user governing the group.
	GovernorID int64 `json:"governor_id"`

	// Governor is the resolved governor reference, populated by the model
	// provider during wrap. May be nil on freshly constructed groups.
	Governor *User `json:"governor,omitempty"`
}

// NewGroup creates a new Group governed by the given user.
func NewGroup(name string, governor *User) *Group {
	g := &Group{Name: name, Governor: governor}
	if governor != nil {
		g.GovernorID = governor.ID
	}
	return g
}

// GovernedBy reports whether the given user governs this group.
func (g *Group) GovernedBy(userID int64) bool {
	return g.GovernorID == userID
}
