package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// MockTokenRepository is an in-memory repository.TokenRepository.
type MockTokenRepository struct {
	tokens map[int64]*domain.Token
	nextID int64
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{tokens: make(map[int64]*domain.Token), nextID: 1}
}

func (m *MockTokenRepository) Create(ctx context.Context, token *domain.Token) error {
	token.ID = m.nextID
	m.nextID++
	m.tokens[token.ID] = token
	return nil
}

func (m *MockTokenRepository) GetByID(ctx context.Context, id int64) (*domain.Token, error) {
	t, ok := m.tokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (m *MockTokenRepository) UpdateExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	t, ok := m.tokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.ExpiresAt = expiresAt
	return nil
}

func (m *MockTokenRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.tokens[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.tokens, id)
	return nil
}

func (m *MockTokenRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for id, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, t := range m.tokens {
		if t.IsExpired(now) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

var _ repository.TokenRepository = (*MockTokenRepository)(nil)

// MockUserRepository is an in-memory repository.UserRepository covering the
// lookups the token service performs.
type MockUserRepository struct {
	users  map[int64]*domain.User
	nextID int64
}

func NewMockUserRepository(users ...*domain.User) *MockUserRepository {
	m := &MockUserRepository{users: make(map[int64]*domain.User), nextID: 1}
	for _, u := range users {
		m.users[u.ID] = u
		if u.ID >= m.nextID {
			m.nextID = u.ID + 1
		}
	}
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	for _, u := range m.users {
		if u.Login == user.Login {
			return domain.ErrEntityDuplicated
		}
	}
	if user.ID == 0 {
		user.ID = m.nextID
	}
	if user.ID >= m.nextID {
		m.nextID = user.ID + 1
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return u, nil
}

func (m *MockUserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Login == login {
			return u, nil
		}
	}
	return nil, domain.ErrEntityNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, f repository.UserFilter,
	opts repository.ListOptions) ([]*domain.User, error) {
	return nil, nil
}

func (m *MockUserRepository) Count(ctx context.Context, f repository.UserFilter) (int64, error) {
	return 0, nil
}

func (m *MockUserRepository) ClearExpiredActivationCodes(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

var testAuthConfig = config.AuthConfig{
	TokenLength:    20,
	TokenLifetime:  time.Hour,
	CookieLifetime: 24 * time.Hour,
	CookieName:     "corefacility_session",
}

func newTestTokenService(tokens *MockTokenRepository, users *MockUserRepository) *TokenService {
	return NewTokenService(tokens, users, testAuthConfig, nil, zerolog.Nop())
}

func TestTokenService_IssueAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: 5, Login: "sergei"}
	tokens := NewMockTokenRepository()
	s := newTestTokenService(tokens, NewMockUserRepository(owner))

	out, err := s.Issue(ctx, owner, KindBearer)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Cleartext)
	assert.NotContains(t, out.Token.Hash, out.Cleartext, "only the hash is stored")
	assert.Empty(t, out.Token.CookieName)

	user, token, err := s.Authenticate(ctx, out.Cleartext)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, user.ID)
	assert.Equal(t, out.Token.ID, token.ID)
}

func TestTokenService_Issue_Anonymous(t *testing.T) {
	s := newTestTokenService(NewMockTokenRepository(), NewMockUserRepository())
	_, err := s.Issue(context.Background(), nil, KindBearer)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenService_Issue_CookieKind(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: 5, Login: "sergei"}
	s := newTestTokenService(NewMockTokenRepository(), NewMockUserRepository(owner))

	out, err := s.Issue(ctx, owner, KindCookie)
	require.NoError(t, err)
	assert.Equal(t, testAuthConfig.CookieName, out.Token.CookieName)
	assert.WithinDuration(t, time.Now().Add(testAuthConfig.CookieLifetime),
		out.Token.ExpiresAt, time.Minute)
}

func TestTokenService_Authenticate_Failures(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: 5, Login: "sergei"}
	locked := &domain.User{ID: 6, Login: "locked", IsLocked: true}
	tokens := NewMockTokenRepository()
	s := newTestTokenService(tokens, NewMockUserRepository(owner, locked))

	out, err := s.Issue(ctx, owner, KindBearer)
	require.NoError(t, err)

	t.Run("malformed cleartext", func(t *testing.T) {
		for _, cleartext := range []string{"", "nocolon", ":", "0:abc", "x:abc", "1:"} {
			_, _, err := s.Authenticate(ctx, cleartext)
			assert.ErrorIs(t, err, ErrInvalidCredentials, cleartext)
		}
	})

	t.Run("unknown token id", func(t *testing.T) {
		_, _, err := s.Authenticate(ctx, "999:whatever")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong random part", func(t *testing.T) {
		_, _, err := s.Authenticate(ctx, "1:wrongrandompart")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("expired token", func(t *testing.T) {
		tokens.tokens[out.Token.ID].ExpiresAt = time.Now().Add(-time.Minute)
		_, _, err := s.Authenticate(ctx, out.Cleartext)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "expiry is indistinguishable from a bad token")
		tokens.tokens[out.Token.ID].ExpiresAt = time.Now().Add(time.Hour)
	})

	t.Run("locked owner", func(t *testing.T) {
		lockedOut, err := s.Issue(ctx, locked, KindBearer)
		require.NoError(t, err)
		_, _, err = s.Authenticate(ctx, lockedOut.Cleartext)
		assert.ErrorIs(t, err, ErrUserLocked)
	})
}

func TestTokenService_Refresh(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: 5, Login: "sergei"}
	tokens := NewMockTokenRepository()
	s := newTestTokenService(tokens, NewMockUserRepository(owner))

	out, err := s.Issue(ctx, owner, KindBearer)
	require.NoError(t, err)

	stale := time.Now().Add(time.Minute)
	tokens.tokens[out.Token.ID].ExpiresAt = stale

	require.NoError(t, s.Refresh(ctx, out.Cleartext))
	assert.True(t, tokens.tokens[out.Token.ID].ExpiresAt.After(stale))
}

func TestTokenService_Revoke(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: 5, Login: "sergei"}
	tokens := NewMockTokenRepository()
	s := newTestTokenService(tokens, NewMockUserRepository(owner))

	out, err := s.Issue(ctx, owner, KindBearer)
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, out.Cleartext))
	_, _, err = s.Authenticate(ctx, out.Cleartext)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown and malformed credentials revoke silently.
	assert.NoError(t, s.Revoke(ctx, out.Cleartext))
	assert.NoError(t, s.Revoke(ctx, "garbage"))
}

func TestTokenService_RevokeAll(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: 5, Login: "sergei"}
	other := &domain.User{ID: 6, Login: "other"}
	tokens := NewMockTokenRepository()
	s := newTestTokenService(tokens, NewMockUserRepository(owner, other))

	for range 3 {
		_, err := s.Issue(ctx, owner, KindBearer)
		require.NoError(t, err)
	}
	kept, err := s.Issue(ctx, other, KindBearer)
	require.NoError(t, err)

	deleted, err := s.RevokeAll(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, _, err = s.Authenticate(ctx, kept.Cleartext)
	assert.NoError(t, err, "other users keep their sessions")
}
