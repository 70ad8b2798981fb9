package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/mail"
	"github.com/serik1987/corefacility/internal/provider"
	"github.com/serik1987/corefacility/internal/repository"
	"github.com/serik1987/corefacility/internal/storage"
)

// nopMediaStore satisfies storage.MediaStore for tests that never touch
// avatars.
type nopMediaStore struct{}

func (nopMediaStore) Put(ctx context.Context, name string, content io.Reader) error { return nil }

func (nopMediaStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	return nil, storage.ErrMediaNotFound
}
func (nopMediaStore) Delete(ctx context.Context, name string) error { return nil }

func (nopMediaStore) Exists(ctx context.Context, name string) (bool, error) { return false, nil }

func (nopMediaStore) URL(name string) string { return "/media/" + name }

var _ storage.MediaStore = nopMediaStore{}

func newActivationNotifier(t *testing.T, mailer mail.Mailer) *mail.Notifier {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "activation.en-GB.txt"),
		[]byte("Activate your account\n\n{{.Login}}: {{.Code}}\n"), 0o644))
	store := mail.NewTemplateStore(dir, "en-GB")
	return mail.NewNotifier(config.MailConfig{}, store, mailer, zerolog.Nop())
}

func newTestUserService(t *testing.T, users *MockUserRepository, mailer mail.Mailer) *UserService {
	t.Helper()
	cfg := &config.Config{}
	cfg.Media.DefaultAvatarURL = "/static/default.png"
	registry := provider.NewRegistry(cfg, &repository.Repositories{User: users},
		nil, nopMediaStore{}, nil)
	authCfg := config.AuthConfig{ActivationCodeLifetime: time.Hour}
	return NewUserService(registry, users, NewMockTokenRepository(),
		newActivationNotifier(t, mailer), authCfg, zerolog.Nop())
}

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an account", func(t *testing.T) {
		users := NewMockUserRepository()
		s := newTestUserService(t, users, &recordingMailer{})

		u, err := s.Create(ctx, CreateUserInput{
			Login: "sergei", Name: "Sergei", Surname: "Kozhukhov",
			Email: "sergei@ihna.ru", Password: "s3cret",
		})
		require.NoError(t, err)
		assert.NotZero(t, u.ID())
		assert.Equal(t, entity.StateSaved, u.State())

		stored, err := users.GetByLogin(ctx, "sergei")
		require.NoError(t, err)
		assert.NotEmpty(t, stored.PasswordHash)
		assert.NotEqual(t, "s3cret", stored.PasswordHash)
	})

	t.Run("duplicate login", func(t *testing.T) {
		users := NewMockUserRepository(&domain.User{ID: 1, Login: "sergei"})
		s := newTestUserService(t, users, &recordingMailer{})

		_, err := s.Create(ctx, CreateUserInput{Login: "sergei"})
		assert.ErrorIs(t, err, domain.ErrEntityDuplicated)
	})

	t.Run("invalid login", func(t *testing.T) {
		s := newTestUserService(t, NewMockUserRepository(), &recordingMailer{})
		_, err := s.Create(ctx, CreateUserInput{Login: "no spaces allowed"})
		assert.ErrorIs(t, err, domain.ErrFieldInvalid)
	})

	t.Run("mails the activation code on request", func(t *testing.T) {
		mailer := &recordingMailer{}
		users := NewMockUserRepository()
		s := newTestUserService(t, users, mailer)

		u, err := s.Create(ctx, CreateUserInput{
			Login: "ivan", Email: "ivan@ihna.ru", SendActivation: true,
		})
		require.NoError(t, err)
		require.Len(t, mailer.sent, 1)

		stored, err := users.GetByID(ctx, u.ID())
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ActivationCodeHash)
		assert.NotContains(t, mailer.sent[0].Text, stored.ActivationCodeHash,
			"only the cleartext code is mailed")
		require.NotNil(t, stored.ActivationCodeExpires)
		assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.ActivationCodeExpires, time.Minute)
	})
}

func TestUserService_SupportAccountRules(t *testing.T) {
	ctx := context.Background()
	support := &domain.User{ID: 1, Login: domain.SupportLogin, Name: "Support", IsSupport: true}
	users := NewMockUserRepository(support)
	s := newTestUserService(t, users, &recordingMailer{})

	t.Run("profile fields are immutable", func(t *testing.T) {
		name := "Renamed"
		_, err := s.Update(ctx, support.ID, UpdateUserInput{Name: &name})
		assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	})

	t.Run("only the lock flag changes", func(t *testing.T) {
		locked := true
		u, err := s.Update(ctx, support.ID, UpdateUserInput{IsLocked: &locked})
		require.NoError(t, err)
		assert.True(t, u.Model().IsLocked)
	})

	t.Run("password is immutable", func(t *testing.T) {
		err := s.SetPassword(ctx, support.ID, "newpass")
		assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	})

	t.Run("cannot be deleted", func(t *testing.T) {
		err := s.Delete(ctx, support.ID)
		assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	})
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	users := NewMockUserRepository()
	s := newTestUserService(t, users, &recordingMailer{})

	_, err := s.Create(ctx, CreateUserInput{Login: "sergei", Password: "s3cret"})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		u, err := s.Authenticate(ctx, "sergei", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "sergei", u.Login)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := s.Authenticate(ctx, "sergei", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown login is indistinguishable", func(t *testing.T) {
		_, err := s.Authenticate(ctx, "nobody", "s3cret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("locked account", func(t *testing.T) {
		stored, err := users.GetByLogin(ctx, "sergei")
		require.NoError(t, err)
		stored.IsLocked = true
		_, err = s.Authenticate(ctx, "sergei", "s3cret")
		assert.ErrorIs(t, err, ErrUserLocked)
		stored.IsLocked = false
	})
}

func TestUserService_Activate(t *testing.T) {
	ctx := context.Background()

	// issue returns the cleartext code pulled out of the activation mail.
	issue := func(t *testing.T, s *UserService, mailer *recordingMailer, id int64) string {
		t.Helper()
		require.NoError(t, s.IssueActivation(ctx, id, ""))
		require.NotEmpty(t, mailer.sent)
		text := mailer.sent[len(mailer.sent)-1].Text
		// Template body is "<login>: <code>\n".
		i := len(text) - 1
		for i > 0 && text[i-1] != ' ' {
			i--
		}
		code := text[i:]
		return code[:len(code)-1]
	}

	t.Run("activation sets the first password", func(t *testing.T) {
		mailer := &recordingMailer{}
		users := NewMockUserRepository()
		s := newTestUserService(t, users, mailer)
		u, err := s.Create(ctx, CreateUserInput{Login: "ivan", Email: "ivan@ihna.ru"})
		require.NoError(t, err)

		code := issue(t, s, mailer, u.ID())
		require.NoError(t, s.Activate(ctx, "ivan", code, "firstpass"))

		auth, err := s.Authenticate(ctx, "ivan", "firstpass")
		require.NoError(t, err)
		assert.Equal(t, "ivan", auth.Login)

		stored, err := users.GetByLogin(ctx, "ivan")
		require.NoError(t, err)
		assert.Empty(t, stored.ActivationCodeHash, "the code is single-use")
		assert.Nil(t, stored.ActivationCodeExpires)
	})

	t.Run("wrong code", func(t *testing.T) {
		mailer := &recordingMailer{}
		users := NewMockUserRepository()
		s := newTestUserService(t, users, mailer)
		u, err := s.Create(ctx, CreateUserInput{Login: "ivan", Email: "ivan@ihna.ru"})
		require.NoError(t, err)
		issue(t, s, mailer, u.ID())

		err = s.Activate(ctx, "ivan", "WRONGCODE12345678901", "firstpass")
		assert.ErrorIs(t, err, ErrActivationInvalid)
	})

	t.Run("expired code", func(t *testing.T) {
		mailer := &recordingMailer{}
		users := NewMockUserRepository()
		s := newTestUserService(t, users, mailer)
		u, err := s.Create(ctx, CreateUserInput{Login: "ivan", Email: "ivan@ihna.ru"})
		require.NoError(t, err)
		code := issue(t, s, mailer, u.ID())

		stored, err := users.GetByID(ctx, u.ID())
		require.NoError(t, err)
		past := time.Now().Add(-time.Minute)
		stored.ActivationCodeExpires = &past

		err = s.Activate(ctx, "ivan", code, "firstpass")
		assert.ErrorIs(t, err, ErrActivationInvalid)
	})

	t.Run("unknown login is indistinguishable", func(t *testing.T) {
		s := newTestUserService(t, NewMockUserRepository(), &recordingMailer{})
		err := s.Activate(ctx, "nobody", "SOMECODE", "firstpass")
		assert.ErrorIs(t, err, ErrActivationInvalid)
	})
}
