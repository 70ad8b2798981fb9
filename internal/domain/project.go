package domain

import "regexp"

// AliasPattern constrains project aliases.
var AliasPattern = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)

// Project represents a research project.
// Access to a project's data is controlled by the ACL attached to it; the
// root group's members always hold full access.
type Project struct {
	// ID is the unique identifier for the project (auto-generated).
	ID int64 `json:"id"`

	// Alias is the unique short name used in URLs.
	// Constraints: 1-64 characters matching AliasPattern.
	Alias string `json:"alias"`

	// Name is the display name. Constraints: 1-64 characters.
	Name string `json:"name"`

	// Description is the optional long description (up to 1024 characters).
	Description string `json:"description,omitempty"`

	// AvatarName is the stored public file name of the project avatar.
	AvatarName string `json:"avatar,omitempty"`

	// RootGroupID is the group owning the project.
	RootGroupID int64 `json:"root_group_id"`

	// RootGroup is the resolved root group, populated during wrap.
	RootGroup *Group `json:"root_group,omitempty"`

	// UnixGroup is the POSIX group mirroring project membership. Derived
	// from the alias by the posix provider after the model provider has
	// assigned the primary key.
	UnixGroup string `json:"-"`

	// ProjectDir is the filesystem directory holding the project data.
	ProjectDir string `json:"-"`
}

// NewProject creates a new Project owned by the given root group.
func NewProject(alias, name string, rootGroup *Group) *Project {
	p := &Project{Alias: alias, Name: name, RootGroup: rootGroup}
	if rootGroup != nil {
		p.RootGroupID = rootGroup.ID
	}
	return p
}

// Governor returns the project governor, derived as the root group's
// governor. Returns nil when the root group is not resolved.
func (p *Project) Governor() *User {
	if p.RootGroup == nil {
		return nil
	}
	return p.RootGroup.Governor
}
