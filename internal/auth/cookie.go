package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/serik1987/corefacility/internal/config"
)

// sameSiteOf parses the configured SameSite mode, defaulting to lax.
func sameSiteOf(cfg config.AuthConfig) http.SameSite {
	switch strings.ToLower(cfg.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// SetSessionCookie writes the session cookie with the configured features.
func SetSessionCookie(w http.ResponseWriter, cfg config.AuthConfig, cleartext string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    cleartext,
		Domain:   cfg.CookieDomain,
		Path:     cfg.CookiePath,
		Expires:  expiresAt,
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: sameSiteOf(cfg),
	})
}

// DeleteSessionCookie expires the session cookie.
func DeleteSessionCookie(w http.ResponseWriter, cfg config.AuthConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Domain:   cfg.CookieDomain,
		Path:     cfg.CookiePath,
		MaxAge:   -1,
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: sameSiteOf(cfg),
	})
}

// Refresher slides the server-side expiry of a presented credential.
// Implemented by the token service.
type Refresher interface {
	Refresh(ctx context.Context, cleartext string) error
}

// Finalizer drives the session cookie lifecycle. It runs after
// authentication: while cookie authentication is enabled, every response of
// an authenticated principal sets the cookie anew with a slid expiry, and
// cookie credentials slide their stored token too. Every other response
// deletes the cookie with matching features.
func Finalizer(tokens Refresher, cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if !cfg.CookieAuthEnabled || p == nil {
				DeleteSessionCookie(w, cfg)
				next.ServeHTTP(w, r)
				return
			}
			if p.FromCookie && tokens != nil {
				if err := tokens.Refresh(r.Context(), p.Cleartext); err != nil {
					DeleteSessionCookie(w, cfg)
					next.ServeHTTP(w, r)
					return
				}
			}
			SetSessionCookie(w, cfg, p.Cleartext, time.Now().Add(cfg.CookieLifetime))
			next.ServeHTTP(w, r)
		})
	}
}
