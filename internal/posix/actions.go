package posix

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/serik1987/corefacility/internal/domain"
)

// Registered action classes. The class name is stored in the queue row and
// resolved back to a concrete action by Build during the security check.
const (
	ClassUserAccount  = "posix.UserAccount"
	ClassProjectGroup = "posix.ProjectGroup"
)

// Command is one privileged OS command ready for execution.
type Command struct {
	Path string
	Args []string
}

// String renders the command for logs.
func (c Command) String() string {
	return c.Path + " " + strings.Join(c.Args, " ")
}

// Action turns a stored (method, args) pair into the OS commands that carry
// it out. Actions hold only their constructor arguments and never touch the
// OS themselves.
type Action interface {
	// Class returns the registered class name of the action.
	Class() string

	// Invoke resolves a method invocation into commands. Unknown methods
	// and malformed arguments fail with ErrSecurityCheckFailed.
	Invoke(method string, args json.RawMessage) ([]Command, error)
}

// Build reconstructs an action from its stored class name and constructor
// arguments. Unknown classes fail with ErrSecurityCheckFailed.
func Build(class string, ctorArgs json.RawMessage) (Action, error) {
	switch class {
	case ClassUserAccount:
		a := &UserAccount{}
		if err := json.Unmarshal(ctorArgs, a); err != nil {
			return nil, domain.NewDomainError(domain.ErrSecurityCheckFailed,
				"malformed constructor arguments", class)
		}
		return a, nil
	case ClassProjectGroup:
		a := &ProjectGroup{}
		if err := json.Unmarshal(ctorArgs, a); err != nil {
			return nil, domain.NewDomainError(domain.ErrSecurityCheckFailed,
				"malformed constructor arguments", class)
		}
		return a, nil
	default:
		return nil, domain.NewDomainError(domain.ErrSecurityCheckFailed,
			"unknown action class", class)
	}
}

func unknownMethod(class, method string) error {
	return domain.NewDomainError(domain.ErrSecurityCheckFailed,
		fmt.Sprintf("unknown method %q", method), class)
}

func badArgs(class, method string) error {
	return domain.NewDomainError(domain.ErrSecurityCheckFailed,
		fmt.Sprintf("malformed arguments of method %q", method), class)
}

// UserAccount mirrors one platform account onto an OS account.
type UserAccount struct {
	// Account is the derived OS account name.
	Account string `json:"account"`

	// HomeDir is the account home directory.
	HomeDir string `json:"home_dir"`
}

// Class implements Action.
func (a *UserAccount) Class() string { return ClassUserAccount }

// RenameArgs carries the arguments of the rename method.
type RenameArgs struct {
	NewAccount string `json:"new_account"`
	NewHomeDir string `json:"new_home_dir"`
}

// Invoke implements Action.
func (a *UserAccount) Invoke(method string, args json.RawMessage) ([]Command, error) {
	switch method {
	case "create":
		return []Command{{Path: "useradd", Args: []string{
			"--no-create-home", "--home-dir", a.HomeDir,
			"--shell", "/usr/sbin/nologin", "--user-group", a.Account,
		}}}, nil
	case "lock":
		return []Command{{Path: "usermod", Args: []string{"--lock", a.Account}}}, nil
	case "unlock":
		return []Command{{Path: "usermod", Args: []string{"--unlock", a.Account}}}, nil
	case "rename":
		var ra RenameArgs
		if err := json.Unmarshal(args, &ra); err != nil || ra.NewAccount == "" {
			return nil, badArgs(a.Class(), method)
		}
		return []Command{
			{Path: "usermod", Args: []string{"--login", ra.NewAccount, "--home", ra.NewHomeDir, a.Account}},
			{Path: "groupmod", Args: []string{"--new-name", ra.NewAccount, a.Account}},
		}, nil
	case "delete":
		return []Command{{Path: "userdel", Args: []string{a.Account}}}, nil
	default:
		return nil, unknownMethod(a.Class(), method)
	}
}

// ProjectGroup mirrors one project onto an OS group.
type ProjectGroup struct {
	// Name is the derived OS group name.
	Name string `json:"name"`
}

// Class implements Action.
func (a *ProjectGroup) Class() string { return ClassProjectGroup }

// MemberArgs carries the arguments of the membership methods.
type MemberArgs struct {
	Account string `json:"account"`
}

// Invoke implements Action.
func (a *ProjectGroup) Invoke(method string, args json.RawMessage) ([]Command, error) {
	switch method {
	case "create":
		return []Command{{Path: "groupadd", Args: []string{a.Name}}}, nil
	case "delete":
		return []Command{{Path: "groupdel", Args: []string{a.Name}}}, nil
	case "add_member", "remove_member":
		var ma MemberArgs
		if err := json.Unmarshal(args, &ma); err != nil || ma.Account == "" {
			return nil, badArgs(a.Class(), method)
		}
		if method == "add_member" {
			return []Command{{Path: "gpasswd", Args: []string{"--add", ma.Account, a.Name}}}, nil
		}
		return []Command{{Path: "gpasswd", Args: []string{"--delete", ma.Account, a.Name}}}, nil
	default:
		return nil, unknownMethod(a.Class(), method)
	}
}

// Ensure both actions implement Action.
var (
	_ Action = (*UserAccount)(nil)
	_ Action = (*ProjectGroup)(nil)
)
