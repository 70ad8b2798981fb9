package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/mail"
	"github.com/serik1987/corefacility/internal/repository"
)

// MockQueueRepository is an in-memory repository.PosixRequestRepository.
type MockQueueRepository struct {
	rows   map[int64]*domain.PosixRequest
	nextID int64
}

func NewMockQueueRepository() *MockQueueRepository {
	return &MockQueueRepository{rows: make(map[int64]*domain.PosixRequest), nextID: 1}
}

func (m *MockQueueRepository) Create(ctx context.Context, r *domain.PosixRequest) error {
	r.ID = m.nextID
	m.nextID++
	m.rows[r.ID] = r
	return nil
}

func (m *MockQueueRepository) GetByID(ctx context.Context, id int64) (*domain.PosixRequest, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (m *MockQueueRepository) ListByStatus(ctx context.Context, status domain.PosixRequestStatus,
	limit int) ([]*domain.PosixRequest, error) {
	var result []*domain.PosixRequest
	for id := int64(1); id < m.nextID; id++ {
		r, ok := m.rows[id]
		if !ok || r.Status != status {
			continue
		}
		result = append(result, r)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MockQueueRepository) UpdateStatus(ctx context.Context, id int64, status domain.PosixRequestStatus) error {
	r, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	return nil
}

func (m *MockQueueRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MockQueueRepository) CountByStatus(ctx context.Context, status domain.PosixRequestStatus) (int64, error) {
	var n int64
	for _, r := range m.rows {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

var _ repository.PosixRequestRepository = (*MockQueueRepository)(nil)

// recordingMailer counts deliveries for the alert tests.
type recordingMailer struct {
	sent []*mail.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to []string, msg *mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var _ mail.Mailer = (*recordingMailer)(nil)

func newAlertNotifier(t *testing.T, mailer mail.Mailer) *mail.Notifier {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posix_queue.en-GB.txt"),
		[]byte("Request {{.RequestID}} awaits confirmation\n\n{{.ActionClass}}.{{.Method}}\n"), 0o644))
	store := mail.NewTemplateStore(dir, "en-GB")
	cfg := config.MailConfig{Admins: []string{"root@ihna.ru"}}
	return mail.NewNotifier(cfg, store, mailer, zerolog.Nop())
}

func enqueue(t *testing.T, queue *MockQueueRepository, status domain.PosixRequestStatus) *domain.PosixRequest {
	t.Helper()
	r := &domain.PosixRequest{ActionClass: "posix.UserAccount", Method: "create", Status: status}
	require.NoError(t, queue.Create(context.Background(), r))
	return r
}

func TestQueueService_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("analyzed request confirms", func(t *testing.T) {
		queue := NewMockQueueRepository()
		s := NewQueueService(queue, nil, nil, zerolog.Nop())
		req := enqueue(t, queue, domain.PosixAnalyzed)

		require.NoError(t, s.Confirm(ctx, req.ID))
		assert.Equal(t, domain.PosixConfirmed, queue.rows[req.ID].Status)
	})

	t.Run("other bands refuse", func(t *testing.T) {
		queue := NewMockQueueRepository()
		s := NewQueueService(queue, nil, nil, zerolog.Nop())

		for _, status := range []domain.PosixRequestStatus{
			domain.PosixInitialized, domain.PosixConfirmed,
			domain.PosixExecuted, domain.PosixFailed,
		} {
			req := enqueue(t, queue, status)
			err := s.Confirm(ctx, req.ID)
			assert.ErrorIs(t, err, domain.ErrOperationNotPermitted, string(status))
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		s := NewQueueService(NewMockQueueRepository(), nil, nil, zerolog.Nop())
		assert.ErrorIs(t, s.Confirm(ctx, 999), repository.ErrNotFound)
	})
}

func TestQueueService_Purge(t *testing.T) {
	ctx := context.Background()
	queue := NewMockQueueRepository()
	s := NewQueueService(queue, nil, nil, zerolog.Nop())
	req := enqueue(t, queue, domain.PosixInitialized)

	require.NoError(t, s.Purge(ctx, req.ID))
	assert.NotContains(t, queue.rows, req.ID)
	assert.ErrorIs(t, s.Purge(ctx, req.ID), repository.ErrNotFound)
}

func TestQueueService_List(t *testing.T) {
	ctx := context.Background()
	queue := NewMockQueueRepository()
	s := NewQueueService(queue, nil, nil, zerolog.Nop())

	first := enqueue(t, queue, domain.PosixAnalyzed)
	enqueue(t, queue, domain.PosixInitialized)
	second := enqueue(t, queue, domain.PosixAnalyzed)

	rows, err := s.List(ctx, domain.PosixAnalyzed, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)

	rows, err = s.List(ctx, domain.PosixAnalyzed, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQueueService_AlertPending(t *testing.T) {
	ctx := context.Background()

	t.Run("each request alerts once", func(t *testing.T) {
		queue := NewMockQueueRepository()
		mailer := &recordingMailer{}
		s := NewQueueService(queue, newAlertNotifier(t, mailer), nil, zerolog.Nop())
		enqueue(t, queue, domain.PosixAnalyzed)
		enqueue(t, queue, domain.PosixAnalyzed)

		require.NoError(t, s.AlertPending(ctx))
		assert.Len(t, mailer.sent, 2)

		require.NoError(t, s.AlertPending(ctx))
		assert.Len(t, mailer.sent, 2, "already-alerted requests stay quiet")
	})

	t.Run("failed delivery retries on the next pass", func(t *testing.T) {
		queue := NewMockQueueRepository()
		mailer := &recordingMailer{err: assert.AnError}
		s := NewQueueService(queue, newAlertNotifier(t, mailer), nil, zerolog.Nop())
		enqueue(t, queue, domain.PosixAnalyzed)

		require.NoError(t, s.AlertPending(ctx))
		assert.Empty(t, mailer.sent)

		mailer.err = nil
		require.NoError(t, s.AlertPending(ctx))
		assert.Len(t, mailer.sent, 1)
	})

	t.Run("purged request alerts again when re-queued under the same id", func(t *testing.T) {
		queue := NewMockQueueRepository()
		mailer := &recordingMailer{}
		s := NewQueueService(queue, newAlertNotifier(t, mailer), nil, zerolog.Nop())
		req := enqueue(t, queue, domain.PosixAnalyzed)

		require.NoError(t, s.AlertPending(ctx))
		require.NoError(t, s.Purge(ctx, req.ID))

		queue.rows[req.ID] = &domain.PosixRequest{ID: req.ID, ActionClass: "posix.UserAccount",
			Method: "create", Status: domain.PosixAnalyzed}
		require.NoError(t, s.AlertPending(ctx))
		assert.Len(t, mailer.sent, 2)
	})
}
