package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
)

// Authenticator validates a cleartext credential. Implemented by the token
// service.
type Authenticator interface {
	Authenticate(ctx context.Context, cleartext string) (*domain.User, *domain.Token, error)
}

// credential extracts the presented credential of a request: the
// Authorization bearer header first, the session cookie second.
func credential(r *http.Request, cfg config.AuthConfig) (cleartext string, fromCookie, ok bool) {
	header := r.Header.Get("Authorization")
	if header != "" {
		scheme, rest, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest), false, true
		}
		return "", false, false
	}
	if cfg.CookieAuthEnabled {
		if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
			return cookie.Value, true, true
		}
	}
	return "", false, false
}

// Middleware authenticates requests. Requests without a credential pass
// through anonymous; the guards decide what anonymous may reach. Requests
// with an invalid credential are rejected outright.
func Middleware(authn Authenticator, cfg config.AuthConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cleartext, fromCookie, ok := credential(r, cfg)
			if !ok {
				if r.Header.Get("Authorization") != "" {
					WriteStatus(w, http.StatusUnauthorized, "malformed authorization header")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			user, token, err := authn.Authenticate(r.Context(), cleartext)
			if err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
				if fromCookie {
					// A stale session cookie degrades to anonymous; the
					// response finalizer deletes it.
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, err)
				return
			}

			p := &Principal{User: user, Token: token, Cleartext: cleartext, FromCookie: fromCookie}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
