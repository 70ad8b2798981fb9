package provider

import (
	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/posix"
	"github.com/serik1987/corefacility/internal/repository"
	"github.com/serik1987/corefacility/internal/storage"
)

// Registry wires the provider pipelines of every entity class. It is the
// single place where pipeline order is fixed: model first, posix second,
// files last; deletion runs in reverse.
type Registry struct {
	users    *entity.ClassDeps
	groups   *entity.ClassDeps
	projects *entity.ClassDeps
}

// NewRegistry builds the provider pipelines.
func NewRegistry(cfg *config.Config, repos *repository.Repositories, tx entity.Transactor,
	media storage.MediaStore, client *posix.Client) *Registry {

	userDeps := &entity.ClassDeps{
		Tx:               tx,
		DefaultAvatarURL: cfg.Media.DefaultAvatarURL,
		MediaURL:         media.URL,
	}
	userDeps.Providers = []entity.Provider{
		NewUserModel(userDeps, repos.User, media),
		NewUserPosix(cfg.Posix, client, repos.User),
		NewUserFiles(cfg.Posix, repos.User),
	}

	groupDeps := &entity.ClassDeps{Tx: tx}
	groupDeps.Providers = []entity.Provider{
		NewGroupModel(groupDeps, repos.Group),
	}

	projectDeps := &entity.ClassDeps{
		Tx:               tx,
		DefaultAvatarURL: cfg.Media.DefaultAvatarURL,
		MediaURL:         media.URL,
	}
	projectDeps.Providers = []entity.Provider{
		NewProjectModel(projectDeps, repos.Project, media),
		NewProjectPosix(cfg.Posix, client, repos.Project),
		NewProjectFiles(cfg.Posix, repos.Project),
	}

	return &Registry{users: userDeps, groups: groupDeps, projects: projectDeps}
}

// NewUser constructs a fresh user entity.
func (r *Registry) NewUser() *entity.User { return entity.NewUser(*r.users) }

// WrapUser reconstructs a loaded user entity.
func (r *Registry) WrapUser(obj *domain.User) *entity.User {
	return entity.WrapUser(*r.users, obj)
}

// NewGroup constructs a fresh group entity.
func (r *Registry) NewGroup() *entity.Group { return entity.NewGroup(*r.groups) }

// WrapGroup reconstructs a loaded group entity.
func (r *Registry) WrapGroup(obj *domain.Group) *entity.Group {
	return entity.WrapGroup(*r.groups, obj)
}

// NewProject constructs a fresh project entity.
func (r *Registry) NewProject() *entity.Project { return entity.NewProject(*r.projects) }

// WrapProject reconstructs a loaded project entity.
func (r *Registry) WrapProject(obj *domain.Project) *entity.Project {
	return entity.WrapProject(*r.projects, obj)
}
