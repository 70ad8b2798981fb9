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
	"github.com/serik1987/corefacility/internal/lock"
	"github.com/serik1987/corefacility/internal/repository"
)

// MockSessionRepository is an in-memory repository.SessionRepository.
type MockSessionRepository struct {
	sessions map[int64]*domain.ExternalSession
	nextID   int64
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[int64]*domain.ExternalSession), nextID: 1}
}

func (m *MockSessionRepository) Create(ctx context.Context, s *domain.ExternalSession) error {
	s.ID = m.nextID
	m.nextID++
	m.sessions[s.ID] = s
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id int64) (*domain.ExternalSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, id int64) error {
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

var _ repository.SessionRepository = (*MockSessionRepository)(nil)

func newTestSweeper(tokens *MockTokenRepository, sessions *MockSessionRepository,
	locker lock.Locker) *SweeperService {
	return NewSweeperService(tokens, sessions, NewMockUserRepository(), nil, locker,
		config.SweeperConfig{Interval: time.Minute}, zerolog.Nop())
}

func TestSweeperService_RunOnce(t *testing.T) {
	ctx := context.Background()
	tokens := NewMockTokenRepository()
	sessions := NewMockSessionRepository()

	stale := &domain.Token{UserID: 5, ExpiresAt: time.Now().Add(-time.Hour)}
	fresh := &domain.Token{UserID: 5, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, tokens.Create(ctx, stale))
	require.NoError(t, tokens.Create(ctx, fresh))

	require.NoError(t, sessions.Create(ctx, &domain.ExternalSession{
		ModuleUUID: "a", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, sessions.Create(ctx, &domain.ExternalSession{
		ModuleUUID: "b", ExpiresAt: time.Now().Add(time.Hour)}))

	s := newTestSweeper(tokens, sessions, lock.NewMemoryLocker())
	require.NoError(t, s.RunOnce(ctx))

	assert.NotContains(t, tokens.tokens, stale.ID)
	assert.Contains(t, tokens.tokens, fresh.ID)
	assert.Len(t, sessions.sessions, 1)
}

func TestSweeperService_LockSkipsPass(t *testing.T) {
	ctx := context.Background()
	tokens := NewMockTokenRepository()
	stale := &domain.Token{UserID: 5, ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, tokens.Create(ctx, stale))

	locker := lock.NewMemoryLocker()
	held, err := locker.Acquire(ctx, lock.Keys.Sweeper(), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	s := newTestSweeper(tokens, NewMockSessionRepository(), locker)
	require.NoError(t, s.RunOnce(ctx))

	assert.Contains(t, tokens.tokens, stale.ID, "another instance holds the sweeper lock")
}

func TestSweeperService_ReleasesLock(t *testing.T) {
	ctx := context.Background()
	locker := lock.NewMemoryLocker()
	s := newTestSweeper(NewMockTokenRepository(), NewMockSessionRepository(), locker)

	require.NoError(t, s.RunOnce(ctx))

	held, err := locker.IsHeld(ctx, lock.Keys.Sweeper())
	require.NoError(t, err)
	assert.False(t, held, "the pass releases the lock for the next one")
}

func TestSweeperService_StartStop(t *testing.T) {
	s := newTestSweeper(NewMockTokenRepository(), NewMockSessionRepository(), lock.NewMemoryLocker())
	s.Start(context.Background())
	s.Stop()
}
