// Package provider implements the storage backends driven by the entity
// state machine: the model provider (the authoritative datastore), the posix
// provider (OS accounts and groups) and the files provider (home and project
// directories). Providers run inside the transactional scope opened by the
// entity pipeline.
package provider

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/repository"
	"github.com/serik1987/corefacility/internal/storage"
)

func asUser(e entity.Entity) (*entity.User, error) {
	u, ok := e.(*entity.User)
	if !ok {
		return nil, fmt.Errorf("expected a user entity, got %q", e.Kind())
	}
	return u, nil
}

func asGroup(e entity.Entity) (*entity.Group, error) {
	g, ok := e.(*entity.Group)
	if !ok {
		return nil, fmt.Errorf("expected a group entity, got %q", e.Kind())
	}
	return g, nil
}

func asProject(e entity.Entity) (*entity.Project, error) {
	p, ok := e.(*entity.Project)
	if !ok {
		return nil, fmt.Errorf("expected a project entity, got %q", e.Kind())
	}
	return p, nil
}

// UserModel is the authoritative datastore backend of the user class.
type UserModel struct {
	deps  *entity.ClassDeps
	users repository.UserRepository
	media storage.MediaStore
}

// NewUserModel creates the user model provider.
func NewUserModel(deps *entity.ClassDeps, users repository.UserRepository, media storage.MediaStore) *UserModel {
	return &UserModel{deps: deps, users: users, media: media}
}

// Load implements entity.Provider. Persisted entities reload by primary key;
// fresh ones probe for a login duplicate.
func (m *UserModel) Load(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	u, err := asUser(e)
	if err != nil {
		return nil, err
	}
	var obj *domain.User
	if e.Base().ID() != 0 {
		obj, err = m.users.GetByID(ctx, e.Base().ID())
	} else {
		obj, err = m.users.GetByLogin(ctx, u.Model().Login)
	}
	if err != nil {
		return nil, err
	}
	return entity.WrapUser(*m.deps, obj), nil
}

// Create implements entity.Provider.
func (m *UserModel) Create(ctx context.Context, e entity.Entity) error {
	u, err := asUser(e)
	if err != nil {
		return err
	}
	if err := m.users.Create(ctx, u.Model()); err != nil {
		return err
	}
	e.Base().SetID(u.Model().ID)
	return nil
}

// ResolveConflict implements entity.Provider. The datastore cannot reconcile
// a login duplicate; the pipeline reports it to the caller.
func (m *UserModel) ResolveConflict(ctx context.Context, given, found entity.Entity) error {
	return nil
}

// Update implements entity.Provider.
func (m *UserModel) Update(ctx context.Context, e entity.Entity) error {
	u, err := asUser(e)
	if err != nil {
		return err
	}
	return m.users.Update(ctx, u.Model())
}

// Delete implements entity.Provider. The stored avatar disappears with the
// row.
func (m *UserModel) Delete(ctx context.Context, e entity.Entity) error {
	u, err := asUser(e)
	if err != nil {
		return err
	}
	if name := u.Model().AvatarName; name != "" {
		if err := m.media.Delete(ctx, entity.MediaKey(name)); err != nil {
			return err
		}
	}
	return m.users.Delete(ctx, e.Base().ID())
}

// AttachFile implements entity.Provider for the avatar field.
func (m *UserModel) AttachFile(ctx context.Context, e entity.Entity, field string, f entity.File) error {
	u, err := asUser(e)
	if err != nil {
		return err
	}
	if field != "avatar" {
		return domain.NewFieldError(field, "does not accept files")
	}
	if err := m.media.Put(ctx, entity.MediaKey(f.Name), f.Content); err != nil {
		return err
	}
	u.Model().AvatarName = f.Name
	return m.users.Update(ctx, u.Model())
}

// DetachFile implements entity.Provider for the avatar field.
func (m *UserModel) DetachFile(ctx context.Context, e entity.Entity, field string) error {
	u, err := asUser(e)
	if err != nil {
		return err
	}
	if field != "avatar" {
		return domain.NewFieldError(field, "does not accept files")
	}
	name := u.Model().AvatarName
	if name == "" {
		return nil
	}
	if err := m.media.Delete(ctx, entity.MediaKey(name)); err != nil {
		return err
	}
	u.Model().AvatarName = ""
	return m.users.Update(ctx, u.Model())
}

// Wrap implements entity.Provider.
func (m *UserModel) Wrap(obj any) (entity.Entity, error) {
	model, ok := obj.(*domain.User)
	if !ok {
		return nil, fmt.Errorf("expected *domain.User, got %T", obj)
	}
	return entity.WrapUser(*m.deps, model), nil
}

// Unwrap implements entity.Provider.
func (m *UserModel) Unwrap(e entity.Entity) (any, error) {
	return e.Object(), nil
}

// GroupModel is the authoritative datastore backend of the group class.
// Group names are not unique, so fresh groups carry no duplicate probe.
type GroupModel struct {
	deps   *entity.ClassDeps
	groups repository.GroupRepository
}

// NewGroupModel creates the group model provider.
func NewGroupModel(deps *entity.ClassDeps, groups repository.GroupRepository) *GroupModel {
	return &GroupModel{deps: deps, groups: groups}
}

// Load implements entity.Provider.
func (m *GroupModel) Load(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	if e.Base().ID() == 0 {
		return nil, domain.NewDomainError(domain.ErrEntityNotFound, "group has no natural key", e.Kind())
	}
	obj, err := m.groups.GetByID(ctx, e.Base().ID())
	if err != nil {
		return nil, err
	}
	return entity.WrapGroup(*m.deps, obj), nil
}

// Create implements entity.Provider.
func (m *GroupModel) Create(ctx context.Context, e entity.Entity) error {
	g, err := asGroup(e)
	if err != nil {
		return err
	}
	if err := m.groups.Create(ctx, g.Model()); err != nil {
		return err
	}
	e.Base().SetID(g.Model().ID)
	return nil
}

// ResolveConflict implements entity.Provider.
func (m *GroupModel) ResolveConflict(ctx context.Context, given, found entity.Entity) error {
	return nil
}

// Update implements entity.Provider.
func (m *GroupModel) Update(ctx context.Context, e entity.Entity) error {
	g, err := asGroup(e)
	if err != nil {
		return err
	}
	return m.groups.Update(ctx, g.Model())
}

// Delete implements entity.Provider.
func (m *GroupModel) Delete(ctx context.Context, e entity.Entity) error {
	return m.groups.Delete(ctx, e.Base().ID())
}

// AttachFile implements entity.Provider. Groups carry no files.
func (m *GroupModel) AttachFile(ctx context.Context, e entity.Entity, field string, f entity.File) error {
	return domain.NewFieldError(field, "does not accept files")
}

// DetachFile implements entity.Provider.
func (m *GroupModel) DetachFile(ctx context.Context, e entity.Entity, field string) error {
	return domain.NewFieldError(field, "does not accept files")
}

// Wrap implements entity.Provider.
func (m *GroupModel) Wrap(obj any) (entity.Entity, error) {
	model, ok := obj.(*domain.Group)
	if !ok {
		return nil, fmt.Errorf("expected *domain.Group, got %T", obj)
	}
	return entity.WrapGroup(*m.deps, model), nil
}

// Unwrap implements entity.Provider.
func (m *GroupModel) Unwrap(e entity.Entity) (any, error) {
	return e.Object(), nil
}

// ProjectModel is the authoritative datastore backend of the project class.
type ProjectModel struct {
	deps     *entity.ClassDeps
	projects repository.ProjectRepository
	media    storage.MediaStore
}

// NewProjectModel creates the project model provider.
func NewProjectModel(deps *entity.ClassDeps, projects repository.ProjectRepository, media storage.MediaStore) *ProjectModel {
	return &ProjectModel{deps: deps, projects: projects, media: media}
}

// Load implements entity.Provider. Persisted entities reload by primary key;
// fresh ones probe for an alias duplicate.
func (m *ProjectModel) Load(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	p, err := asProject(e)
	if err != nil {
		return nil, err
	}
	var obj *domain.Project
	if e.Base().ID() != 0 {
		obj, err = m.projects.GetByID(ctx, e.Base().ID())
	} else {
		obj, err = m.projects.GetByAlias(ctx, p.Model().Alias)
	}
	if err != nil {
		return nil, err
	}
	return entity.WrapProject(*m.deps, obj), nil
}

// Create implements entity.Provider.
func (m *ProjectModel) Create(ctx context.Context, e entity.Entity) error {
	p, err := asProject(e)
	if err != nil {
		return err
	}
	if err := m.projects.Create(ctx, p.Model()); err != nil {
		return err
	}
	e.Base().SetID(p.Model().ID)
	return nil
}

// ResolveConflict implements entity.Provider.
func (m *ProjectModel) ResolveConflict(ctx context.Context, given, found entity.Entity) error {
	return nil
}

// Update implements entity.Provider.
func (m *ProjectModel) Update(ctx context.Context, e entity.Entity) error {
	p, err := asProject(e)
	if err != nil {
		return err
	}
	return m.projects.Update(ctx, p.Model())
}

// Delete implements entity.Provider.
func (m *ProjectModel) Delete(ctx context.Context, e entity.Entity) error {
	p, err := asProject(e)
	if err != nil {
		return err
	}
	if name := p.Model().AvatarName; name != "" {
		if err := m.media.Delete(ctx, entity.MediaKey(name)); err != nil {
			return err
		}
	}
	return m.projects.Delete(ctx, e.Base().ID())
}

// AttachFile implements entity.Provider for the avatar field.
func (m *ProjectModel) AttachFile(ctx context.Context, e entity.Entity, field string, f entity.File) error {
	p, err := asProject(e)
	if err != nil {
		return err
	}
	if field != "avatar" {
		return domain.NewFieldError(field, "does not accept files")
	}
	if err := m.media.Put(ctx, entity.MediaKey(f.Name), f.Content); err != nil {
		return err
	}
	p.Model().AvatarName = f.Name
	return m.projects.Update(ctx, p.Model())
}

// DetachFile implements entity.Provider for the avatar field.
func (m *ProjectModel) DetachFile(ctx context.Context, e entity.Entity, field string) error {
	p, err := asProject(e)
	if err != nil {
		return err
	}
	if field != "avatar" {
		return domain.NewFieldError(field, "does not accept files")
	}
	name := p.Model().AvatarName
	if name == "" {
		return nil
	}
	if err := m.media.Delete(ctx, entity.MediaKey(name)); err != nil {
		return err
	}
	p.Model().AvatarName = ""
	return m.projects.Update(ctx, p.Model())
}

// Wrap implements entity.Provider.
func (m *ProjectModel) Wrap(obj any) (entity.Entity, error) {
	model, ok := obj.(*domain.Project)
	if !ok {
		return nil, fmt.Errorf("expected *domain.Project, got %T", obj)
	}
	return entity.WrapProject(*m.deps, model), nil
}

// Unwrap implements entity.Provider.
func (m *ProjectModel) Unwrap(e entity.Entity) (any, error) {
	return e.Object(), nil
}

// Interface checks.
var (
	_ entity.Provider = (*UserModel)(nil)
	_ entity.Provider = (*GroupModel)(nil)
	_ entity.Provider = (*ProjectModel)(nil)
)
