package entity

import "github.com/serik1987/corefacility/internal/domain"

// groupFields is the public field description of the group class.
var groupFields = Fields{
	"name":     {Kind: KindString, Required: true, MaxLen: 256},
	"governor": {Kind: KindReference, Required: true},
}

// Group is the entity wrapper of a scientific group.
type Group struct {
	base Base
	obj  *domain.Group
}

// NewGroup constructs a fresh group entity in state creating.
func NewGroup(deps ClassDeps) *Group {
	return &Group{
		base: NewBase(deps.Providers, deps.Tx),
		obj:  &domain.Group{},
	}
}

// WrapGroup reconstructs a loaded group entity around a stored struct.
func WrapGroup(deps ClassDeps, obj *domain.Group) *Group {
	g := &Group{
		base: NewBase(deps.Providers, deps.Tx),
		obj:  obj,
	}
	g.base.BeginWrap()
	g.base.SetID(obj.ID)
	g.base.EndWrap()
	return g
}

// Kind names the entity class.
func (g *Group) Kind() string { return "group" }

// Base returns the lifecycle state.
func (g *Group) Base() *Base { return &g.base }

// ID returns the primary key, zero before the first create.
func (g *Group) ID() int64 { return g.base.ID() }

// State returns the current lifecycle state.
func (g *Group) State() State { return g.base.State() }

// Fields returns the public field description of the class.
func (g *Group) Fields() Fields { return groupFields }

// Object returns the wrapped domain struct.
func (g *Group) Object() any { return g.obj }

// Model returns the wrapped domain struct with its concrete type.
func (g *Group) Model() *domain.Group { return g.obj }

// FieldValue returns the current value of a declared field.
func (g *Group) FieldValue(name string) any {
	switch name {
	case "name":
		return g.obj.Name
	case "governor":
		return g.obj.GovernorID
	default:
		return nil
	}
}

// SetName assigns the display name.
func (g *Group) SetName(name string) error {
	if err := g.base.Assign(groupFields, "name", name); err != nil {
		return err
	}
	g.obj.Name = name
	return nil
}

// SetGovernor assigns the governing user. The governor is implicitly a
// member of the group and cannot be removed while governing it.
func (g *Group) SetGovernor(u *User) error {
	if err := g.base.Assign(groupFields, "governor", u); err != nil {
		return err
	}
	g.obj.GovernorID = u.ID()
	g.obj.Governor = u.Model()
	return nil
}

// Ensure Group implements Entity and Referenced.
var (
	_ Entity     = (*Group)(nil)
	_ Referenced = (*Group)(nil)
)
