package entity

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/pkg/crypto"
)

// secretEntity binds every field manager variant for manager tests.
type secretEntity struct {
	base    Base
	hash    string
	expires *time.Time
	avatar  string

	Password *PasswordManager
	Expiry   *ExpiryManager
	Avatar   *PublicFileManager
}

func newSecretEntity(providers []Provider) *secretEntity {
	e := &secretEntity{base: NewBase(providers, nil)}
	e.Password = NewPasswordManager(&e.base, "hash",
		func() string { return e.hash },
		func(h string) { e.hash = h })
	e.Expiry = NewExpiryManager(&e.base, "expires",
		func() *time.Time { return e.expires },
		func(t *time.Time) { e.expires = t })
	e.Avatar = NewPublicFileManager(e, "avatar",
		func() string { return e.avatar },
		"/static/default.png",
		func(name string) string { return "/media/" + name })
	return e
}

func (e *secretEntity) Kind() string   { return "sample" }
func (e *secretEntity) Base() *Base    { return &e.base }
func (e *secretEntity) Fields() Fields { return Fields{} }
func (e *secretEntity) Object() any    { return e }

func (e *secretEntity) FieldValue(name string) any {
	switch name {
	case "hash":
		return e.hash
	case "expires":
		return e.expires
	case "avatar":
		return e.avatar
	default:
		return nil
	}
}

// avatarProvider stores the attached file the way the model provider does:
// the name lands in the entity field, the content in the store.
type avatarProvider struct {
	content []byte
}

func (p *avatarProvider) Load(ctx context.Context, e Entity) (Entity, error) { return nil, nil }
func (p *avatarProvider) Create(ctx context.Context, e Entity) error         { return nil }
func (p *avatarProvider) Update(ctx context.Context, e Entity) error         { return nil }
func (p *avatarProvider) Delete(ctx context.Context, e Entity) error         { return nil }

func (p *avatarProvider) ResolveConflict(ctx context.Context, given, found Entity) error {
	return nil
}

func (p *avatarProvider) AttachFile(ctx context.Context, e Entity, field string, f File) error {
	data, err := io.ReadAll(f.Content)
	if err != nil {
		return err
	}
	p.content = data
	e.(*secretEntity).avatar = f.Name
	return nil
}

func (p *avatarProvider) DetachFile(ctx context.Context, e Entity, field string) error {
	e.(*secretEntity).avatar = ""
	return nil
}

func (p *avatarProvider) Wrap(obj any) (Entity, error) { return nil, nil }
func (p *avatarProvider) Unwrap(e Entity) (any, error) { return e.Object(), nil }

var _ Provider = (*avatarProvider)(nil)

func TestPasswordManager(t *testing.T) {
	t.Run("rendering masks the secret", func(t *testing.T) {
		e := newSecretEntity(nil)
		assert.Empty(t, e.Password.String(), "no secret renders empty")

		require.NoError(t, e.Password.SetSecret("s3cret"))
		assert.Equal(t, "**********", e.Password.String())
		assert.NotContains(t, e.Password.String(), "s3cret")

		require.NoError(t, e.Password.Clear())
		assert.Empty(t, e.Password.String())
	})

	t.Run("verification", func(t *testing.T) {
		e := newSecretEntity(nil)
		assert.False(t, e.Password.Check("anything"), "no stored secret never verifies")

		require.NoError(t, e.Password.SetSecret("s3cret"))
		assert.True(t, e.Password.Check("s3cret"))
		assert.False(t, e.Password.Check("wrong"))
		assert.NotEqual(t, "s3cret", e.hash, "only the hash is stored")
	})

	t.Run("generated secret verifies", func(t *testing.T) {
		e := newSecretEntity(nil)
		cleartext, err := e.Password.Generate("abcdef0123456789", 20)
		require.NoError(t, err)
		assert.Len(t, cleartext, 20)
		assert.True(t, e.Password.Check(cleartext))
	})
}

func TestExpiryManager(t *testing.T) {
	now := time.Now()

	t.Run("unset expiry means no deadline", func(t *testing.T) {
		e := newSecretEntity(nil)
		assert.False(t, e.Expiry.IsExpired(now))
	})

	t.Run("set and pass the deadline", func(t *testing.T) {
		e := newSecretEntity(nil)
		require.NoError(t, e.Expiry.Set(time.Hour))
		assert.False(t, e.Expiry.IsExpired(now))
		assert.True(t, e.Expiry.IsExpired(now.Add(2*time.Hour)))
	})

	t.Run("clearing removes the deadline", func(t *testing.T) {
		e := newSecretEntity(nil)
		require.NoError(t, e.Expiry.Set(-time.Hour))
		require.True(t, e.Expiry.IsExpired(now))

		require.NoError(t, e.Expiry.Clear())
		assert.False(t, e.Expiry.IsExpired(now))
	})

	t.Run("cleared credential fails on the secret, not the deadline", func(t *testing.T) {
		e := newSecretEntity(nil)
		require.NoError(t, e.Password.SetSecret("s3cret"))
		require.NoError(t, e.Expiry.Set(time.Hour))

		require.NoError(t, e.Password.Clear())
		require.NoError(t, e.Expiry.Clear())
		assert.False(t, e.Expiry.IsExpired(now))
		assert.False(t, e.Password.Check("s3cret"))
	})
}

// loaded puts a manager-test entity into the clean persisted state file
// operations require.
func loaded(e *secretEntity, id int64) {
	e.base.BeginWrap()
	e.base.SetID(id)
	e.base.EndWrap()
}

func TestPublicFileManager_Attach(t *testing.T) {
	ctx := context.Background()
	content := []byte("imagebytes")
	sum := crypto.ComputeMD5(content)

	t.Run("name carries the content hash as query", func(t *testing.T) {
		p := &avatarProvider{}
		e := newSecretEntity([]Provider{p})
		loaded(e, 7)

		require.NoError(t, e.Avatar.Attach(ctx, File{Name: "photo.PNG", Content: bytes.NewReader(content)}))
		assert.Equal(t, "sample7.png?"+sum, e.avatar)
		assert.Equal(t, content, p.content, "the full content reaches the store")
		assert.Equal(t, "sample7.png", MediaKey(e.avatar))
	})

	t.Run("identical content yields an identical URL", func(t *testing.T) {
		p := &avatarProvider{}
		e := newSecretEntity([]Provider{p})
		loaded(e, 7)

		require.NoError(t, e.Avatar.Attach(ctx, File{Name: "first.png", Content: bytes.NewReader(content)}))
		first := e.Avatar.URL()
		require.NoError(t, e.Avatar.Attach(ctx, File{Name: "second.png", Content: bytes.NewReader(content)}))

		assert.Equal(t, first, e.Avatar.URL())
		assert.Equal(t, "/media/sample7.png?"+sum, first)
	})

	t.Run("changed content changes the URL", func(t *testing.T) {
		p := &avatarProvider{}
		e := newSecretEntity([]Provider{p})
		loaded(e, 7)

		require.NoError(t, e.Avatar.Attach(ctx, File{Name: "photo.png", Content: bytes.NewReader(content)}))
		first := e.Avatar.URL()
		require.NoError(t, e.Avatar.Attach(ctx, File{Name: "photo.png", Content: bytes.NewReader([]byte("otherbytes"))}))

		assert.NotEqual(t, first, e.Avatar.URL())
		assert.Equal(t, "sample7.png", MediaKey(e.avatar), "the media key stays stable")
	})

	t.Run("default URL without an attachment", func(t *testing.T) {
		e := newSecretEntity(nil)
		assert.Equal(t, "/static/default.png", e.Avatar.URL())
	})
}
