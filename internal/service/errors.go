// Package service provides the business logic of corefacility: account and
// project management through the entity pipeline, access resolution, token
// authentication, the laboratory journal and the POSIX request queue.
package service

import (
	"errors"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// Common service errors.
var (
	// ErrInvalidCredentials covers every authentication failure: unknown
	// login, wrong password, malformed or expired token. Callers cannot
	// distinguish the cases.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserLocked rejects authentication of a locked account.
	ErrUserLocked = errors.New("user is locked")

	// ErrAccessDenied rejects a request whose principal holds a level too
	// weak for the method.
	ErrAccessDenied = errors.New("access denied")

	// ErrActivationInvalid covers unknown, mismatched and expired
	// activation codes.
	ErrActivationInvalid = errors.New("activation code invalid")

	// ErrInternalError wraps unexpected infrastructure failures.
	ErrInternalError = errors.New("internal server error")
)

// isNotFound matches the not-found sentinels of both the domain and the
// repository layer.
func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrEntityNotFound) || errors.Is(err, repository.ErrNotFound)
}
