package entity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/pkg/crypto"
)

// Field managers own fields whose values cannot be assigned directly:
// hashed secrets, expiry instants and attached public files. A manager
// mutates the wrapped struct through getter/setter closures and advances
// the entity state machine like any other assignment.

// AssignManaged records an assignment performed by a field manager. Managed
// fields bypass the read-only and validation checks of Assign; the state
// machine still applies.
func (b *Base) AssignManaged(name string) error {
	if !b.state.canMutate() {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"entity is "+b.state.String(), name)
	}
	b.dirty[name] = struct{}{}
	if b.state == StateSaved || b.state == StateLoaded {
		b.state = StateChanged
	}
	return nil
}

// PasswordManager manages a one-way hashed secret field: a password, the
// random part of a token, or an activation code. Only the hash is ever
// stored; the cleartext leaves Generate exactly once.
type PasswordManager struct {
	base  *Base
	field string
	get   func() string
	set   func(string)
}

// NewPasswordManager binds a manager to the hashed field of an entity.
func NewPasswordManager(base *Base, field string, get func() string, set func(string)) *PasswordManager {
	return &PasswordManager{base: base, field: field, get: get, set: set}
}

// Generate creates a random secret over the alphabet, stores its hash and
// returns the cleartext.
func (m *PasswordManager) Generate(alphabet string, length int) (string, error) {
	secret, err := crypto.GenerateSecret(alphabet, length)
	if err != nil {
		return "", err
	}
	if err := m.SetSecret(secret); err != nil {
		return "", err
	}
	return secret, nil
}

// SetSecret hashes and stores a caller-chosen secret.
func (m *PasswordManager) SetSecret(secret string) error {
	hash, err := crypto.HashSecret(secret)
	if err != nil {
		return err
	}
	if err := m.base.AssignManaged(m.field); err != nil {
		return err
	}
	m.set(hash)
	return nil
}

// Check verifies a candidate against the stored hash. An entity with no
// stored secret never verifies.
func (m *PasswordManager) Check(candidate string) bool {
	return crypto.CheckSecret(m.get(), candidate)
}

// Clear removes the stored secret, disabling verification.
func (m *PasswordManager) Clear() error {
	if err := m.base.AssignManaged(m.field); err != nil {
		return err
	}
	m.set("")
	return nil
}

// IsSet reports whether a secret is stored.
func (m *PasswordManager) IsSet() bool { return m.get() != "" }

// String masks the secret in any textual rendering of the entity. An
// entity with no stored secret renders empty.
func (m *PasswordManager) String() string {
	if !m.IsSet() {
		return ""
	}
	return "**********"
}

// ExpiryManager manages an expiry instant paired with a hashed secret.
type ExpiryManager struct {
	base  *Base
	field string
	get   func() *time.Time
	set   func(*time.Time)
}

// NewExpiryManager binds a manager to the expiry field of an entity.
func NewExpiryManager(base *Base, field string, get func() *time.Time, set func(*time.Time)) *ExpiryManager {
	return &ExpiryManager{base: base, field: field, get: get, set: set}
}

// Set stores an expiry instant the given duration from now.
func (m *ExpiryManager) Set(d time.Duration) error {
	if err := m.base.AssignManaged(m.field); err != nil {
		return err
	}
	t := time.Now().Add(d).UTC()
	m.set(&t)
	return nil
}

// IsExpired reports whether the instant has passed. An unset expiry means
// no deadline; the paired secret check still rejects cleared credentials.
func (m *ExpiryManager) IsExpired(now time.Time) bool {
	t := m.get()
	if t == nil {
		return false
	}
	return now.After(*t)
}

// Clear removes the expiry instant.
func (m *ExpiryManager) Clear() error {
	if err := m.base.AssignManaged(m.field); err != nil {
		return err
	}
	m.set(nil)
	return nil
}

// PublicFileManager manages an attached public file (avatar). The stored
// value is the media key followed by a content-hash query, so the public
// URL is stable for identical content and changes whenever the content
// does.
type PublicFileManager struct {
	entity     Entity
	field      string
	get        func() string
	defaultURL string
	resolveURL func(string) string
}

// NewPublicFileManager binds a manager to the file-name field of an entity.
// resolveURL maps a stored media name to its public URL.
func NewPublicFileManager(e Entity, field string, get func() string, defaultURL string, resolveURL func(string) string) *PublicFileManager {
	return &PublicFileManager{
		entity:     e,
		field:      field,
		get:        get,
		defaultURL: defaultURL,
		resolveURL: resolveURL,
	}
}

// MediaKey strips the content-hash query from a stored public file name,
// leaving the key addressed in the media store.
func MediaKey(name string) string {
	key, _, _ := strings.Cut(name, "?")
	return key
}

// Attach stores a new public file for the entity, replacing any previous
// one. The media key derives from the entity alone; the MD5 of the content
// rides along as the query component of the stored name. Allowed only on
// clean persisted entities.
func (m *PublicFileManager) Attach(ctx context.Context, f File) error {
	data, err := io.ReadAll(f.Content)
	if err != nil {
		return err
	}
	ext := strings.ToLower(path.Ext(f.Name))
	key := fmt.Sprintf("%s%d%s", m.entity.Kind(), m.entity.Base().ID(), ext)
	f.Name = key + "?" + crypto.ComputeMD5(data)
	f.Content = bytes.NewReader(data)
	return AttachFile(ctx, m.entity, m.field, f)
}

// Detach removes the stored public file.
func (m *PublicFileManager) Detach(ctx context.Context) error {
	return DetachFile(ctx, m.entity, m.field)
}

// URL returns the public URL of the attached file, or the configured
// default when none is attached.
func (m *PublicFileManager) URL() string {
	name := m.get()
	if name == "" {
		return m.defaultURL
	}
	return m.resolveURL(name)
}
