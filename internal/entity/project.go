package entity

import "github.com/serik1987/corefacility/internal/domain"

// projectFields is the public field description of the project class.
var projectFields = Fields{
	"alias":       {Kind: KindString, Required: true, MaxLen: 64, Pattern: domain.AliasPattern},
	"name":        {Kind: KindString, Required: true, MaxLen: 64},
	"description": {Kind: KindString, MaxLen: 1024},
	"root_group":  {Kind: KindReference, Required: true},
	"unix_group":  {Kind: KindString, ReadOnly: true, MaxLen: 32},
	"project_dir": {Kind: KindString, ReadOnly: true},
	"avatar":      {Kind: KindManaged},
}

// Project is the entity wrapper of a research project.
type Project struct {
	base Base
	obj  *domain.Project

	Avatar *PublicFileManager
}

// NewProject constructs a fresh project entity in state creating.
func NewProject(deps ClassDeps) *Project {
	p := &Project{
		base: NewBase(deps.Providers, deps.Tx),
		obj:  &domain.Project{},
	}
	p.bindManagers(deps)
	return p
}

// WrapProject reconstructs a loaded project entity around a stored struct.
func WrapProject(deps ClassDeps, obj *domain.Project) *Project {
	p := &Project{
		base: NewBase(deps.Providers, deps.Tx),
		obj:  obj,
	}
	p.base.BeginWrap()
	p.base.SetID(obj.ID)
	p.base.EndWrap()
	p.bindManagers(deps)
	return p
}

func (p *Project) bindManagers(deps ClassDeps) {
	p.Avatar = NewPublicFileManager(p, "avatar",
		func() string { return p.obj.AvatarName },
		deps.DefaultAvatarURL, deps.MediaURL)
}

// Kind names the entity class.
func (p *Project) Kind() string { return "project" }

// Base returns the lifecycle state.
func (p *Project) Base() *Base { return &p.base }

// ID returns the primary key, zero before the first create.
func (p *Project) ID() int64 { return p.base.ID() }

// State returns the current lifecycle state.
func (p *Project) State() State { return p.base.State() }

// Fields returns the public field description of the class.
func (p *Project) Fields() Fields { return projectFields }

// Object returns the wrapped domain struct.
func (p *Project) Object() any { return p.obj }

// Model returns the wrapped domain struct with its concrete type.
func (p *Project) Model() *domain.Project { return p.obj }

// FieldValue returns the current value of a declared field.
func (p *Project) FieldValue(name string) any {
	switch name {
	case "alias":
		return p.obj.Alias
	case "name":
		return p.obj.Name
	case "description":
		return p.obj.Description
	case "root_group":
		return p.obj.RootGroupID
	case "unix_group":
		return p.obj.UnixGroup
	case "project_dir":
		return p.obj.ProjectDir
	case "avatar":
		return p.obj.AvatarName
	default:
		return nil
	}
}

// SetAlias assigns the unique short name used in URLs.
func (p *Project) SetAlias(alias string) error {
	if err := p.base.Assign(projectFields, "alias", alias); err != nil {
		return err
	}
	p.obj.Alias = alias
	return nil
}

// SetName assigns the display name.
func (p *Project) SetName(name string) error {
	if err := p.base.Assign(projectFields, "name", name); err != nil {
		return err
	}
	p.obj.Name = name
	return nil
}

// SetDescription assigns the long description.
func (p *Project) SetDescription(description string) error {
	if err := p.base.Assign(projectFields, "description", description); err != nil {
		return err
	}
	p.obj.Description = description
	return nil
}

// SetRootGroup assigns the group owning the project. Members of the root
// group always hold full access.
func (p *Project) SetRootGroup(g *Group) error {
	if err := p.base.Assign(projectFields, "root_group", g); err != nil {
		return err
	}
	p.obj.RootGroupID = g.ID()
	p.obj.RootGroup = g.Model()
	return nil
}

// SetUnixGroup records the POSIX group name. Called by the posix provider
// after the primary key is known.
func (p *Project) SetUnixGroup(name string) error {
	if err := p.base.AssignManaged("unix_group"); err != nil {
		return err
	}
	p.obj.UnixGroup = name
	return nil
}

// SetProjectDir records the project data directory. Called by the files
// provider.
func (p *Project) SetProjectDir(dir string) error {
	if err := p.base.AssignManaged("project_dir"); err != nil {
		return err
	}
	p.obj.ProjectDir = dir
	return nil
}

// Ensure Project implements Entity and Referenced.
var (
	_ Entity     = (*Project)(nil)
	_ Referenced = (*Project)(nil)
)
