package posix

import (
	"context"
	"encoding/json"
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
		return nil, domain.ErrEntityNotFound
	}
	return r, nil
}

func (m *MockQueueRepository) ListByStatus(ctx context.Context, status domain.PosixRequestStatus, limit int) ([]*domain.PosixRequest, error) {
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
		return domain.ErrEntityNotFound
	}
	r.Status = status
	return nil
}

func (m *MockQueueRepository) Delete(ctx context.Context, id int64) error {
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

// MockAuditRepository is an in-memory repository.AuditLogRepository.
type MockAuditRepository struct {
	rows map[int64]*domain.AuditLog
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{rows: make(map[int64]*domain.AuditLog)}
}

func (m *MockAuditRepository) Create(ctx context.Context, l *domain.AuditLog) error {
	m.rows[l.ID] = l
	return nil
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id int64) (*domain.AuditLog, error) {
	l, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return l, nil
}

func (m *MockAuditRepository) SetOperation(ctx context.Context, id int64, operation string) error {
	return nil
}

func (m *MockAuditRepository) SetResponse(ctx context.Context, id int64, status int, body string) error {
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.AuditLog, error) {
	return nil, nil
}

var _ repository.AuditLogRepository = (*MockAuditRepository)(nil)

// MockRunner records the commands the daemon would execute.
type MockRunner struct {
	commands []Command
	err      error
}

func (m *MockRunner) Run(ctx context.Context, cmd Command) error {
	m.commands = append(m.commands, cmd)
	return m.err
}

var _ Runner = (*MockRunner)(nil)

func userID(id int64) *int64 { return &id }

func queuedRequest(logID int64, status domain.PosixRequestStatus, age time.Duration) *domain.PosixRequest {
	return &domain.PosixRequest{
		ActionClass: ClassUserAccount,
		CtorArgs:    json.RawMessage(`{"account":"sergei","home_dir":"/home/u-sergei"}`),
		Method:      "create",
		LogID:       logID,
		Status:      status,
		CreatedAt:   time.Now().Add(-age),
	}
}

func newTestDaemon(cfg config.PosixConfig, queue *MockQueueRepository, audit *MockAuditRepository, runner *MockRunner) *Daemon {
	return NewDaemon(cfg, queue, audit, runner, lock.NewMemoryLocker(), zerolog.Nop())
}

func TestDaemon_SecurityCheck(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     config.PosixConfig
		log     *domain.AuditLog
		mutate  func(r *domain.PosixRequest)
		wantErr bool
	}{
		{
			name: "passes",
			log:  &domain.AuditLog{ID: 1, UserID: userID(5), IP: "10.0.0.1"},
		},
		{
			name:    "missing audit row",
			log:     nil,
			wantErr: true,
		},
		{
			name:    "anonymous principal",
			log:     &domain.AuditLog{ID: 1, IP: "10.0.0.1"},
			wantErr: true,
		},
		{
			name:    "disallowed address",
			cfg:     config.PosixConfig{AllowedIPs: []string{"192.168.1.1"}},
			log:     &domain.AuditLog{ID: 1, UserID: userID(5), IP: "10.0.0.1"},
			wantErr: true,
		},
		{
			name: "allowed address",
			cfg:  config.PosixConfig{AllowedIPs: []string{"10.0.0.1"}},
			log:  &domain.AuditLog{ID: 1, UserID: userID(5), IP: "10.0.0.1"},
		},
		{
			name: "unknown action class",
			log:  &domain.AuditLog{ID: 1, UserID: userID(5), IP: "10.0.0.1"},
			mutate: func(r *domain.PosixRequest) {
				r.ActionClass = "posix.Nonexistent"
			},
			wantErr: true,
		},
		{
			name: "unknown method",
			log:  &domain.AuditLog{ID: 1, UserID: userID(5), IP: "10.0.0.1"},
			mutate: func(r *domain.PosixRequest) {
				r.Method = "reboot"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := NewMockAuditRepository()
			if tt.log != nil {
				require.NoError(t, audit.Create(ctx, tt.log))
			}
			d := newTestDaemon(tt.cfg, NewMockQueueRepository(), audit, &MockRunner{})

			req := queuedRequest(1, domain.PosixInitialized, 0)
			if tt.mutate != nil {
				tt.mutate(req)
			}

			err := d.SecurityCheck(ctx, req)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrSecurityCheckFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDaemon_AnalyzeInitialized(t *testing.T) {
	ctx := context.Background()
	queue := NewMockQueueRepository()
	audit := NewMockAuditRepository()
	require.NoError(t, audit.Create(ctx, &domain.AuditLog{ID: 1, UserID: userID(5), IP: "10.0.0.1"}))

	good := queuedRequest(1, domain.PosixInitialized, 0)
	bad := queuedRequest(99, domain.PosixInitialized, 0) // no audit row
	require.NoError(t, queue.Create(ctx, good))
	require.NoError(t, queue.Create(ctx, bad))

	d := newTestDaemon(config.PosixConfig{}, queue, audit, &MockRunner{})
	d.analyzeInitialized(ctx)

	row, err := queue.GetByID(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PosixAnalyzed, row.Status)

	_, err = queue.GetByID(ctx, bad.ID)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound, "failed rows are purged")
}

func TestDaemon_ExecuteConfirmed(t *testing.T) {
	ctx := context.Background()

	t.Run("rows past the grace period run", func(t *testing.T) {
		queue := NewMockQueueRepository()
		audit := NewMockAuditRepository()
		runner := &MockRunner{}
		require.NoError(t, audit.Create(ctx, &domain.AuditLog{ID: 1, UserID: userID(5), IP: "10.0.0.1"}))

		old := queuedRequest(1, domain.PosixConfirmed, 2*time.Hour)
		fresh := queuedRequest(1, domain.PosixConfirmed, time.Minute)
		require.NoError(t, queue.Create(ctx, old))
		require.NoError(t, queue.Create(ctx, fresh))

		d := newTestDaemon(config.PosixConfig{GracePeriod: time.Hour}, queue, audit, runner)
		d.executeConfirmed(ctx)

		require.Len(t, runner.commands, 1)
		assert.Equal(t, "useradd", runner.commands[0].Path)

		row, err := queue.GetByID(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PosixExecuted, row.Status)

		row, err = queue.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PosixConfirmed, row.Status, "rows inside the grace period wait")
	})

	t.Run("runner failure marks the row failed", func(t *testing.T) {
		queue := NewMockQueueRepository()
		audit := NewMockAuditRepository()
		runner := &MockRunner{err: domain.ErrPosixCommandFailed}
		require.NoError(t, audit.Create(ctx, &domain.AuditLog{ID: 1, UserID: userID(5), IP: "10.0.0.1"}))

		req := queuedRequest(1, domain.PosixConfirmed, time.Hour)
		require.NoError(t, queue.Create(ctx, req))

		d := newTestDaemon(config.PosixConfig{}, queue, audit, runner)
		d.executeConfirmed(ctx)

		row, err := queue.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PosixFailed, row.Status)
	})
}
