package provider

import (
	"context"
	"io/fs"
	"os"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/posix"
	"github.com/serik1987/corefacility/internal/repository"
)

// dirMode is the mode of user and project directories: group members may
// enter, the setgid bit keeps group ownership on new files.
const dirMode = fs.FileMode(0o750) | fs.ModeSetgid

// makeDir creates a directory with the shared-group mode.
func makeDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return domain.NewDomainError(domain.ErrBaseDirIO, err.Error(), path)
	}
	if err := os.Chmod(path, dirMode); err != nil {
		return domain.NewDomainError(domain.ErrBaseDirIO, err.Error(), path)
	}
	return nil
}

// removeDir removes a directory tree. A missing tree is not an error.
func removeDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return domain.NewDomainError(domain.ErrBaseDirIO, err.Error(), path)
	}
	return nil
}

// UserFiles mirrors user entities onto home directories.
type UserFiles struct {
	sideEffect
	cfg   config.PosixConfig
	users repository.UserRepository
}

// NewUserFiles creates the user files provider.
func NewUserFiles(cfg config.PosixConfig, users repository.UserRepository) *UserFiles {
	return &UserFiles{cfg: cfg, users: users}
}

// homeOf derives the home directory of a user. The stored OS account name
// wins; without one the account name derives from the login.
func (p *UserFiles) homeOf(u *entity.User) string {
	account := u.Model().UnixGroup
	if account == "" {
		account = posix.AccountName(u.Model().Login)
	}
	return posix.HomeDir(p.cfg.HomeBase, account)
}

// Create implements entity.Provider: creates the home directory and persists
// its path.
func (p *UserFiles) Create(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixUsers {
		return nil
	}
	u, err := asUser(e)
	if err != nil {
		return err
	}
	dir := p.homeOf(u)
	if err := makeDir(dir); err != nil {
		return err
	}
	if err := u.SetHomeDir(dir); err != nil {
		return err
	}
	return p.users.Update(ctx, u.Model())
}

// Update implements entity.Provider: moves the home directory when the OS
// account was renamed.
func (p *UserFiles) Update(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixUsers {
		return nil
	}
	u, err := asUser(e)
	if err != nil {
		return err
	}
	oldDir := u.Model().HomeDir
	newDir := p.homeOf(u)
	if oldDir == "" || oldDir == newDir {
		return nil
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return domain.NewDomainError(domain.ErrBaseDirIO, err.Error(), newDir)
	}
	if err := u.SetHomeDir(newDir); err != nil {
		return err
	}
	return p.users.Update(ctx, u.Model())
}

// Delete implements entity.Provider.
func (p *UserFiles) Delete(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixUsers {
		return nil
	}
	u, err := asUser(e)
	if err != nil {
		return err
	}
	if u.Model().HomeDir == "" {
		return nil
	}
	return removeDir(u.Model().HomeDir)
}

// ProjectFiles mirrors project entities onto project data directories.
type ProjectFiles struct {
	sideEffect
	cfg      config.PosixConfig
	projects repository.ProjectRepository
}

// NewProjectFiles creates the project files provider.
func NewProjectFiles(cfg config.PosixConfig, projects repository.ProjectRepository) *ProjectFiles {
	return &ProjectFiles{cfg: cfg, projects: projects}
}

// dirOf derives the data directory of a project.
func (p *ProjectFiles) dirOf(prj *entity.Project) string {
	name := prj.Model().UnixGroup
	if name == "" {
		name = posix.GroupName(prj.Model().Alias, prj.ID())
	}
	return posix.ProjectDir(p.cfg.ProjectBase, name)
}

// Create implements entity.Provider: creates the project directory and
// persists its path.
func (p *ProjectFiles) Create(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixGroups {
		return nil
	}
	prj, err := asProject(e)
	if err != nil {
		return err
	}
	dir := p.dirOf(prj)
	if err := makeDir(dir); err != nil {
		return err
	}
	if err := prj.SetProjectDir(dir); err != nil {
		return err
	}
	return p.projects.Update(ctx, prj.Model())
}

// Update implements entity.Provider. The directory keeps its creation-time
// name.
func (p *ProjectFiles) Update(ctx context.Context, e entity.Entity) error {
	return nil
}

// Delete implements entity.Provider.
func (p *ProjectFiles) Delete(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixGroups {
		return nil
	}
	prj, err := asProject(e)
	if err != nil {
		return err
	}
	if prj.Model().ProjectDir == "" {
		return nil
	}
	return removeDir(prj.Model().ProjectDir)
}

// Interface checks.
var (
	_ entity.Provider = (*UserFiles)(nil)
	_ entity.Provider = (*ProjectFiles)(nil)
)
