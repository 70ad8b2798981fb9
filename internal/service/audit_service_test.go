package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// MockAuditLogRepository is an in-memory repository.AuditLogRepository.
type MockAuditLogRepository struct {
	rows   map[int64]*domain.AuditLog
	nextID int64
}

func NewMockAuditLogRepository() *MockAuditLogRepository {
	return &MockAuditLogRepository{rows: make(map[int64]*domain.AuditLog), nextID: 1}
}

func (m *MockAuditLogRepository) Create(ctx context.Context, l *domain.AuditLog) error {
	l.ID = m.nextID
	m.nextID++
	m.rows[l.ID] = l
	return nil
}

func (m *MockAuditLogRepository) GetByID(ctx context.Context, id int64) (*domain.AuditLog, error) {
	l, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return l, nil
}

func (m *MockAuditLogRepository) SetOperation(ctx context.Context, id int64, operation string) error {
	l, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Operation = operation
	return nil
}

func (m *MockAuditLogRepository) SetResponse(ctx context.Context, id int64, status int, body string) error {
	l, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.ResponseStatus = status
	l.ResponseBody = body
	return nil
}

func (m *MockAuditLogRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.AuditLog, error) {
	var result []*domain.AuditLog
	for id := int64(1); id < m.nextID; id++ {
		if l, ok := m.rows[id]; ok {
			result = append(result, l)
		}
	}
	return result, nil
}

var _ repository.AuditLogRepository = (*MockAuditLogRepository)(nil)

func newTestAuditService(logs *MockAuditLogRepository, bodyLimit int) *AuditService {
	return NewAuditService(logs, config.AuditConfig{BodyLimit: bodyLimit}, nil, zerolog.Nop())
}

func TestAuditService_TruncateBody(t *testing.T) {
	s := newTestAuditService(NewMockAuditLogRepository(), 16)

	tests := []struct {
		name string
		body []byte
		want string
	}{
		{name: "nil body", body: nil, want: ""},
		{name: "short body passes through", body: []byte("hello"), want: "hello"},
		{name: "long body clips at the limit", body: []byte(strings.Repeat("a", 40)),
			want: strings.Repeat("a", 16)},
		{name: "clip never splits a rune", body: []byte(strings.Repeat("a", 15) + "пример"),
			want: strings.Repeat("a", 15)},
		{name: "interior invalid bytes drop", body: []byte("ab\xffcd"), want: "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.TruncateBody(tt.body)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}

	t.Run("zero limit keeps the whole body", func(t *testing.T) {
		unbounded := newTestAuditService(NewMockAuditLogRepository(), 0)
		long := strings.Repeat("x", 1000)
		assert.Equal(t, long, unbounded.TruncateBody([]byte(long)))
	})
}

func TestAuditService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	logs := NewMockAuditLogRepository()
	s := newTestAuditService(logs, 64)

	owner := int64(5)
	row, err := s.Open(ctx, OpenInput{
		Address:     "/api/v1/users",
		Method:      "POST",
		IP:          "10.0.0.1",
		UserID:      &owner,
		RequestBody: []byte(`{"login":"sergei"}`),
	})
	require.NoError(t, err)
	require.NotZero(t, row.ID)
	assert.False(t, row.RequestDate.IsZero())
	assert.Equal(t, `{"login":"sergei"}`, row.RequestBody)

	require.NoError(t, s.SetOperation(ctx, row.ID, "POST /api/v1/users"))
	require.NoError(t, s.Close(ctx, row.ID, 201, []byte(`{"id":7}`)))

	stored, err := s.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 201, stored.ResponseStatus)
	assert.Equal(t, `{"id":7}`, stored.ResponseBody)
	assert.Equal(t, "POST /api/v1/users", stored.Operation)

	t.Run("sensitive close stores no body", func(t *testing.T) {
		row, err := s.Open(ctx, OpenInput{Address: "/api/v1/login", Method: "POST", IP: "10.0.0.1"})
		require.NoError(t, err)
		require.NoError(t, s.Close(ctx, row.ID, 200, nil))

		stored, err := s.Get(ctx, row.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.ResponseBody)
	})
}
