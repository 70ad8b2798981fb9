package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
	"github.com/serik1987/corefacility/internal/service"
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

func TestLoggable(t *testing.T) {
	tests := []struct {
		method string
		target string
		want   bool
	}{
		{http.MethodPost, "/api/v1/users", true},
		{http.MethodPut, "/api/v1/users/3", true},
		{http.MethodPatch, "/api/v1/users/3", true},
		{http.MethodDelete, "/api/v1/users/3", true},
		{http.MethodGet, "/api/v1/users", false},
		{http.MethodGet, "/api/v1/activate?activation_code=abc", true},
		{http.MethodHead, "/api/v1/users", false},
		{http.MethodOptions, "/api/v1/users", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		assert.Equal(t, tt.want, loggable(r), "%s %s", tt.method, tt.target)
	}
}

func TestClientIP(t *testing.T) {
	t.Run("remote address", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		assert.Equal(t, "10.0.0.1", clientIP(r))
	})

	t.Run("remote address without port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1"
		assert.Equal(t, "10.0.0.1", clientIP(r))
	})

	t.Run("forwarded header wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		r.Header.Set("X-Forwarded-For", "192.168.5.7, 10.0.0.1")
		assert.Equal(t, "192.168.5.7", clientIP(r))
	})
}

// newAuditedRouter mounts a chi router behind the audit middleware. The
// principal, when given, is injected ahead of it the way the auth middleware
// would.
func newAuditedRouter(audit *service.AuditService, user *domain.User, bodyLimit int) chi.Router {
	r := chi.NewRouter()
	if user != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := auth.WithPrincipal(req.Context(), &auth.Principal{User: user})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	r.Use(AuditMiddleware(audit, bodyLimit, zerolog.Nop()))
	return r
}

func newTestAuditService(logs *MockAuditLogRepository) *service.AuditService {
	return service.NewAuditService(logs, config.AuditConfig{BodyLimit: 16384}, nil, zerolog.Nop())
}

func TestAuditMiddleware_RecordsExchange(t *testing.T) {
	logs := NewMockAuditLogRepository()
	user := &domain.User{ID: 5, Login: "sergei"}
	r := newAuditedRouter(newTestAuditService(logs), user, 0)

	r.Post("/api/v1/users", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"login":"ivan"}`, string(body), "handler still reads the body")

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"login":"ivan"}`))
	req.RemoteAddr = "10.0.0.1:54321"
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	row, err := logs.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/users", row.Address)
	assert.Equal(t, http.MethodPost, row.Method)
	assert.Equal(t, "10.0.0.1", row.IP)
	require.NotNil(t, row.UserID)
	assert.Equal(t, user.ID, *row.UserID)
	assert.Equal(t, `{"login":"ivan"}`, row.RequestBody)
	assert.Equal(t, "POST /api/v1/users", row.Operation)
	assert.Equal(t, http.StatusCreated, row.ResponseStatus)
	assert.Equal(t, `{"id":7}`, row.ResponseBody)
}

func TestAuditMiddleware_SkipsSafeRequests(t *testing.T) {
	logs := NewMockAuditLogRepository()
	r := newAuditedRouter(newTestAuditService(logs), nil, 0)
	r.Get("/api/v1/users", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, logs.rows)
}

func TestAuditMiddleware_AnonymousPrincipal(t *testing.T) {
	logs := NewMockAuditLogRepository()
	r := newAuditedRouter(newTestAuditService(logs), nil, 0)
	r.Post("/api/v1/login", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/login", nil))

	row, err := logs.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, row.UserID)
	assert.Equal(t, http.StatusUnauthorized, row.ResponseStatus)
}

func TestAuditMiddleware_SensitiveBody(t *testing.T) {
	logs := NewMockAuditLogRepository()
	r := newAuditedRouter(newTestAuditService(logs), nil, 0)
	r.Post("/api/v1/login", func(w http.ResponseWriter, req *http.Request) {
		MarkSensitive(req)
		_, _ = w.Write([]byte(`{"token":"1:secret"}`))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/login", nil))

	assert.Equal(t, `{"token":"1:secret"}`, rec.Body.String(), "the client still receives the body")

	row, err := logs.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, row.ResponseBody, "the audit row does not")
	assert.Equal(t, http.StatusOK, row.ResponseStatus)
}

func TestAuditMiddleware_TruncatesCapturedBody(t *testing.T) {
	logs := NewMockAuditLogRepository()
	r := newAuditedRouter(newTestAuditService(logs), nil, 8)
	r.Post("/api/v1/users", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users",
		strings.NewReader(strings.Repeat("y", 100))))

	assert.Len(t, rec.Body.String(), 100, "the client response is never truncated")

	row, err := logs.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 8), row.ResponseBody)
	assert.Equal(t, strings.Repeat("y", 9), row.RequestBody,
		"the request capture stops one byte past the limit")
}
