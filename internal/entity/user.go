package entity

import (
	"time"

	"github.com/serik1987/corefacility/internal/domain"
)

// ClassDeps carries the per-class wiring of an entity kind: the ordered
// provider pipeline, the transactional scope and the media URL resolution
// for attached public files.
type ClassDeps struct {
	Providers        []Provider
	Tx               Transactor
	DefaultAvatarURL string
	MediaURL         func(name string) string
}

// userFields is the public field description of the user class.
var userFields = Fields{
	"login":                   {Kind: KindString, Required: true, MaxLen: 100, Pattern: domain.LoginPattern},
	"name":                    {Kind: KindString, MaxLen: 100},
	"surname":                 {Kind: KindString, MaxLen: 100},
	"email":                   {Kind: KindString, MaxLen: 254},
	"phone":                   {Kind: KindString, MaxLen: 20},
	"is_locked":               {Kind: KindBool},
	"is_superuser":            {Kind: KindBool},
	"is_support":              {Kind: KindBool, ReadOnly: true},
	"unix_group":              {Kind: KindString, ReadOnly: true, MaxLen: 32},
	"home_dir":                {Kind: KindString, ReadOnly: true},
	"password_hash":           {Kind: KindManaged},
	"avatar":                  {Kind: KindManaged},
	"activation_code_hash":    {Kind: KindManaged},
	"activation_code_expires": {Kind: KindManaged},
}

// User is the entity wrapper of a platform account. Secrets and the avatar
// are reachable only through their field managers.
type User struct {
	base Base
	obj  *domain.User

	Password         *PasswordManager
	ActivationCode   *PasswordManager
	ActivationExpiry *ExpiryManager
	Avatar           *PublicFileManager
}

// NewUser constructs a fresh user entity in state creating.
func NewUser(deps ClassDeps) *User {
	u := &User{
		base: NewBase(deps.Providers, deps.Tx),
		obj:  &domain.User{},
	}
	u.bindManagers(deps)
	return u
}

// WrapUser reconstructs a loaded user entity around a stored struct.
func WrapUser(deps ClassDeps, obj *domain.User) *User {
	u := &User{
		base: NewBase(deps.Providers, deps.Tx),
		obj:  obj,
	}
	u.base.BeginWrap()
	u.base.SetID(obj.ID)
	u.base.EndWrap()
	u.bindManagers(deps)
	return u
}

func (u *User) bindManagers(deps ClassDeps) {
	u.Password = NewPasswordManager(&u.base, "password_hash",
		func() string { return u.obj.PasswordHash },
		func(h string) { u.obj.PasswordHash = h })
	u.ActivationCode = NewPasswordManager(&u.base, "activation_code_hash",
		func() string { return u.obj.ActivationCodeHash },
		func(h string) { u.obj.ActivationCodeHash = h })
	u.ActivationExpiry = NewExpiryManager(&u.base, "activation_code_expires",
		func() *time.Time { return u.obj.ActivationCodeExpires },
		func(t *time.Time) { u.obj.ActivationCodeExpires = t })
	u.Avatar = NewPublicFileManager(u, "avatar",
		func() string { return u.obj.AvatarName },
		deps.DefaultAvatarURL, deps.MediaURL)
}

// Kind names the entity class.
func (u *User) Kind() string { return "user" }

// Base returns the lifecycle state.
func (u *User) Base() *Base { return &u.base }

// ID returns the primary key, zero before the first create.
func (u *User) ID() int64 { return u.base.ID() }

// State returns the current lifecycle state.
func (u *User) State() State { return u.base.State() }

// Fields returns the public field description of the class.
func (u *User) Fields() Fields { return userFields }

// Object returns the wrapped domain struct.
func (u *User) Object() any { return u.obj }

// Model returns the wrapped domain struct with its concrete type.
func (u *User) Model() *domain.User { return u.obj }

// FieldValue returns the current value of a declared field.
func (u *User) FieldValue(name string) any {
	switch name {
	case "login":
		return u.obj.Login
	case "name":
		return u.obj.Name
	case "surname":
		return u.obj.Surname
	case "email":
		return u.obj.Email
	case "phone":
		return u.obj.Phone
	case "is_locked":
		return u.obj.IsLocked
	case "is_superuser":
		return u.obj.IsSuperuser
	case "is_support":
		return u.obj.IsSupport
	case "unix_group":
		return u.obj.UnixGroup
	case "home_dir":
		return u.obj.HomeDir
	case "password_hash":
		return u.obj.PasswordHash
	case "avatar":
		return u.obj.AvatarName
	case "activation_code_hash":
		return u.obj.ActivationCodeHash
	case "activation_code_expires":
		return u.obj.ActivationCodeExpires
	default:
		return nil
	}
}

// SetLogin assigns the unique login.
func (u *User) SetLogin(login string) error {
	if err := u.base.Assign(userFields, "login", login); err != nil {
		return err
	}
	u.obj.Login = login
	return nil
}

// SetName assigns the first name.
func (u *User) SetName(name string) error {
	if err := u.base.Assign(userFields, "name", name); err != nil {
		return err
	}
	u.obj.Name = name
	return nil
}

// SetSurname assigns the last name.
func (u *User) SetSurname(surname string) error {
	if err := u.base.Assign(userFields, "surname", surname); err != nil {
		return err
	}
	u.obj.Surname = surname
	return nil
}

// SetEmail assigns the contact email.
func (u *User) SetEmail(email string) error {
	if err := u.base.Assign(userFields, "email", email); err != nil {
		return err
	}
	u.obj.Email = email
	return nil
}

// SetPhone assigns the contact phone.
func (u *User) SetPhone(phone string) error {
	if err := u.base.Assign(userFields, "phone", phone); err != nil {
		return err
	}
	u.obj.Phone = phone
	return nil
}

// SetLocked locks or unlocks the account.
func (u *User) SetLocked(locked bool) error {
	if err := u.base.Assign(userFields, "is_locked", locked); err != nil {
		return err
	}
	u.obj.IsLocked = locked
	return nil
}

// SetSuperuser grants or revokes administrator rights.
func (u *User) SetSuperuser(superuser bool) error {
	if err := u.base.Assign(userFields, "is_superuser", superuser); err != nil {
		return err
	}
	u.obj.IsSuperuser = superuser
	return nil
}

// SetUnixGroup records the OS account name. Called by the posix provider
// during its create step.
func (u *User) SetUnixGroup(name string) error {
	if err := u.base.AssignManaged("unix_group"); err != nil {
		return err
	}
	u.obj.UnixGroup = name
	return nil
}

// SetHomeDir records the home directory. Called by the files provider.
func (u *User) SetHomeDir(dir string) error {
	if err := u.base.AssignManaged("home_dir"); err != nil {
		return err
	}
	u.obj.HomeDir = dir
	return nil
}

// Ensure User implements Entity and Referenced.
var (
	_ Entity     = (*User)(nil)
	_ Referenced = (*User)(nil)
)
