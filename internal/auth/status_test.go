package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/service"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil error", err: nil, want: http.StatusOK},
		{name: "invalid credentials", err: service.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "locked user", err: service.ErrUserLocked, want: http.StatusForbidden},
		{name: "access denied", err: service.ErrAccessDenied, want: http.StatusForbidden},
		{name: "bad activation code", err: service.ErrActivationInvalid, want: http.StatusBadRequest},
		{name: "entity not found", err: domain.ErrEntityNotFound, want: http.StatusNotFound},
		{name: "duplicated entity", err: domain.ErrEntityDuplicated, want: http.StatusConflict},
		{name: "invalid field", err: domain.ErrFieldInvalid, want: http.StatusBadRequest},
		{name: "mail address undefined", err: domain.ErrMailAddressUndefined, want: http.StatusBadRequest},
		{name: "operation not permitted", err: domain.ErrOperationNotPermitted, want: http.StatusForbidden},
		{name: "configuration profile", err: domain.ErrConfigurationProfile, want: http.StatusForbidden},
		{name: "unknown error", err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}

	t.Run("wrapped errors unwrap", func(t *testing.T) {
		err := domain.NewDomainError(domain.ErrEntityNotFound, "no such project", "project")
		assert.Equal(t, http.StatusNotFound, StatusOf(err))
		assert.Equal(t, http.StatusBadRequest,
			StatusOf(domain.NewFieldError("login", "login is malformed")))
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestWriteError(t *testing.T) {
	t.Run("domain error keeps its message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, domain.NewDomainError(domain.ErrEntityNotFound, "no such project", "project"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, decodeError(t, rec), "no such project")
	})

	t.Run("internal error hides its message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeError(t, rec))
	})
}
