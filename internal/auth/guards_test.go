package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/serik1987/corefacility/internal/domain"
)

// okHandler reports whether the guard let the request through.
func okHandler(reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusNoContent)
	})
}

// requestAs builds a request carrying the given principal, nil for anonymous.
func requestAs(user *domain.User) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	if user != nil {
		r = r.WithContext(WithPrincipal(r.Context(), &Principal{User: user}))
	}
	return r
}

// withURLParam injects a chi URL parameter into the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		wantStatus int
	}{
		{name: "anonymous rejected", user: nil, wantStatus: http.StatusUnauthorized},
		{name: "authenticated passes", user: &domain.User{ID: 3}, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			rec := httptest.NewRecorder()
			RequireAuth(okHandler(&reached)).ServeHTTP(rec, requestAs(tt.user))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusNoContent, reached)
		})
	}
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		wantStatus int
	}{
		{name: "anonymous rejected", user: nil, wantStatus: http.StatusUnauthorized},
		{name: "ordinary user rejected", user: &domain.User{ID: 3}, wantStatus: http.StatusForbidden},
		{name: "superuser passes", user: &domain.User{ID: 3, IsSuperuser: true},
			wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			rec := httptest.NewRecorder()
			AdminOnly(okHandler(&reached)).ServeHTTP(rec, requestAs(tt.user))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAdminOrSelf(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		id         string
		wantStatus int
	}{
		{name: "anonymous rejected", user: nil, id: "3", wantStatus: http.StatusUnauthorized},
		{name: "own account passes", user: &domain.User{ID: 3}, id: "3",
			wantStatus: http.StatusNoContent},
		{name: "foreign account rejected", user: &domain.User{ID: 3}, id: "4",
			wantStatus: http.StatusForbidden},
		{name: "malformed id rejected", user: &domain.User{ID: 3}, id: "abc",
			wantStatus: http.StatusForbidden},
		{name: "superuser reaches any account", user: &domain.User{ID: 3, IsSuperuser: true},
			id: "4", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			rec := httptest.NewRecorder()
			r := withURLParam(requestAs(tt.user), "id", tt.id)
			AdminOrSelf(okHandler(&reached)).ServeHTTP(rec, r)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestNoSupport(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		wantStatus int
	}{
		{name: "anonymous passes through", user: nil, wantStatus: http.StatusNoContent},
		{name: "ordinary user passes", user: &domain.User{ID: 3}, wantStatus: http.StatusNoContent},
		{name: "support account rejected", user: &domain.User{ID: 1, IsSupport: true},
			wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			rec := httptest.NewRecorder()
			NoSupport(okHandler(&reached)).ServeHTTP(rec, requestAs(tt.user))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
