package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/service"
)

// StatusOf maps a service or domain error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserLocked):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrActivationInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEntityDuplicated):
		return http.StatusConflict
	case errors.Is(err, domain.ErrFieldInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMailAddressUndefined):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOperationNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConfigurationProfile):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope of the API.
type errorBody struct {
	Error string `json:"error"`
}

// WriteError writes the JSON error response for an error. Internal errors
// hide their details.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

// WriteStatus writes a bare JSON error with an explicit status.
func WriteStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
