package provider

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/posix"
	"github.com/serik1987/corefacility/internal/repository"
)

// sideEffect supplies the no-op half of the Provider interface shared by the
// posix and files backends: they never detect duplicates, never carry public
// files and never act as the authoritative wrap source.
type sideEffect struct{}

func (sideEffect) Load(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	return nil, domain.NewDomainError(domain.ErrEntityNotFound, "no counterpart on this backend", e.Kind())
}

func (sideEffect) ResolveConflict(ctx context.Context, given, found entity.Entity) error {
	return nil
}

func (sideEffect) AttachFile(ctx context.Context, e entity.Entity, field string, f entity.File) error {
	return nil
}

func (sideEffect) DetachFile(ctx context.Context, e entity.Entity, field string) error {
	return nil
}

func (sideEffect) Wrap(obj any) (entity.Entity, error) {
	return nil, fmt.Errorf("not the authoritative provider")
}

func (sideEffect) Unwrap(e entity.Entity) (any, error) {
	return e.Object(), nil
}

// UserPosix mirrors user entities onto OS accounts. Disabled entirely when
// UNIX user management is off.
type UserPosix struct {
	sideEffect
	cfg    config.PosixConfig
	client *posix.Client
	users  repository.UserRepository
}

// NewUserPosix creates the user posix provider.
func NewUserPosix(cfg config.PosixConfig, client *posix.Client, users repository.UserRepository) *UserPosix {
	return &UserPosix{cfg: cfg, client: client, users: users}
}

// Create implements entity.Provider: derives the OS account name, dispatches
// the account creation and persists the derived name.
func (p *UserPosix) Create(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixUsers {
		return nil
	}
	u, err := asUser(e)
	if err != nil {
		return err
	}
	account := posix.AccountName(u.Model().Login)
	action := &posix.UserAccount{
		Account: account,
		HomeDir: posix.HomeDir(p.cfg.HomeBase, account),
	}
	if err := p.client.Dispatch(ctx, action, "create", nil); err != nil {
		return err
	}
	if err := u.SetUnixGroup(account); err != nil {
		return err
	}
	return p.users.Update(ctx, u.Model())
}

// Update implements entity.Provider: renames the OS account when the login
// changed and toggles the OS lock when the lock flag changed.
func (p *UserPosix) Update(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixUsers {
		return nil
	}
	u, err := asUser(e)
	if err != nil {
		return err
	}
	account := u.Model().UnixGroup
	if account == "" {
		return nil
	}
	action := &posix.UserAccount{
		Account: account,
		HomeDir: posix.HomeDir(p.cfg.HomeBase, account),
	}

	if e.Base().IsDirty("login") {
		newAccount := posix.AccountName(u.Model().Login)
		if newAccount != account {
			args := &posix.RenameArgs{
				NewAccount: newAccount,
				NewHomeDir: posix.HomeDir(p.cfg.HomeBase, newAccount),
			}
			if err := p.client.Dispatch(ctx, action, "rename", args); err != nil {
				return err
			}
			if err := u.SetUnixGroup(newAccount); err != nil {
				return err
			}
			if err := p.users.Update(ctx, u.Model()); err != nil {
				return err
			}
		}
	}

	if e.Base().IsDirty("is_locked") {
		method := "unlock"
		if u.Model().IsLocked {
			method = "lock"
		}
		if err := p.client.Dispatch(ctx, action, method, nil); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements entity.Provider.
func (p *UserPosix) Delete(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixUsers {
		return nil
	}
	u, err := asUser(e)
	if err != nil {
		return err
	}
	account := u.Model().UnixGroup
	if account == "" {
		return nil
	}
	action := &posix.UserAccount{
		Account: account,
		HomeDir: posix.HomeDir(p.cfg.HomeBase, account),
	}
	return p.client.Dispatch(ctx, action, "delete", nil)
}

// ProjectPosix mirrors project entities onto OS groups. The group name is
// derived once at creation; membership synchronization is driven by the
// access service, not by the entity pipeline.
type ProjectPosix struct {
	sideEffect
	cfg      config.PosixConfig
	client   *posix.Client
	projects repository.ProjectRepository
}

// NewProjectPosix creates the project posix provider.
func NewProjectPosix(cfg config.PosixConfig, client *posix.Client, projects repository.ProjectRepository) *ProjectPosix {
	return &ProjectPosix{cfg: cfg, client: client, projects: projects}
}

// Create implements entity.Provider. Runs after the model provider, so the
// primary key feeding the group name is already assigned.
func (p *ProjectPosix) Create(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixGroups {
		return nil
	}
	prj, err := asProject(e)
	if err != nil {
		return err
	}
	name := posix.GroupName(prj.Model().Alias, e.Base().ID())
	action := &posix.ProjectGroup{Name: name}
	if err := p.client.Dispatch(ctx, action, "create", nil); err != nil {
		return err
	}
	if err := prj.SetUnixGroup(name); err != nil {
		return err
	}
	return p.projects.Update(ctx, prj.Model())
}

// Update implements entity.Provider. The group name keeps its creation-time
// alias prefix; alias changes do not rename the OS group.
func (p *ProjectPosix) Update(ctx context.Context, e entity.Entity) error {
	return nil
}

// Delete implements entity.Provider.
func (p *ProjectPosix) Delete(ctx context.Context, e entity.Entity) error {
	if !p.cfg.ManageUnixGroups {
		return nil
	}
	prj, err := asProject(e)
	if err != nil {
		return err
	}
	name := prj.Model().UnixGroup
	if name == "" {
		return nil
	}
	return p.client.Dispatch(ctx, &posix.ProjectGroup{Name: name}, "delete", nil)
}

// Interface checks.
var (
	_ entity.Provider = (*UserPosix)(nil)
	_ entity.Provider = (*ProjectPosix)(nil)
)
