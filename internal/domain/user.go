// Package domain contains the core business entities of corefacility.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the scientific collaboration server.
package domain

import (
	"regexp"
	"time"
)

// SupportLogin is the reserved login of the distinguished support user.
// The support user cannot change its password, cannot be deleted, may only
// toggle its lock flag and is never a member of any scientific group.
const SupportLogin = "support"

// LoginPattern constrains user logins and record aliases.
var LoginPattern = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)

// User represents a registered user of the facility.
// Users govern scientific groups, participate in projects through group
// membership and authenticate with passwords, tokens or cookie sessions.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Login is the unique login name. Constraints: 1-100 characters,
	// matching LoginPattern.
	Login string `json:"login"`

	// PasswordHash is the one-way hash of the user's password.
	// Empty when no password is set. Never exposed in API responses.
	PasswordHash string `json:"-"`

	// Name and Surname are the display names (each up to 100 characters).
	Name    string `json:"name"`
	Surname string `json:"surname"`

	// Email is the contact address used for notifications.
	Email string `json:"email"`

	// Phone is the optional contact phone number.
	Phone string `json:"phone"`

	// IsLocked blocks authentication without deleting the account.
	IsLocked bool `json:"is_locked"`

	// IsSuperuser grants full access to every project and administrative view.
	IsSuperuser bool `json:"is_superuser"`

	// IsSupport marks the distinguished support account.
	IsSupport bool `json:"is_support"`

	// AvatarName is the stored public file name of the avatar, empty when
	// the default static avatar applies.
	AvatarName string `json:"avatar,omitempty"`

	// UnixGroup and HomeDir hold the POSIX-side identity created by the
	// posix provider. Empty when UNIX account management is disabled.
	UnixGroup string `json:"-"`
	HomeDir   string `json:"-"`

	// ActivationCodeHash is the one-way hash of the mailed activation code.
	ActivationCodeHash string `json:"-"`

	// ActivationCodeExpires is the activation code expiry instant.
	// Nil means no activation code is pending.
	ActivationCodeExpires *time.Time `json:"-"`
}

// NewUser creates a new User with default flags.
func NewUser(login, name, surname string) *User {
	return &User{
		Login:   login,
		Name:    name,
		Surname: surname,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return !u.IsLocked
}

// IsAnonymous reports whether the user reference denotes no principal.
func (u *User) IsAnonymous() bool {
	return u == nil || u.ID == 0
}
