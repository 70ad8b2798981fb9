package auth

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()).IsAnonymous() {
			WriteStatus(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminOnly admits superusers only.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user.IsAnonymous() {
			WriteStatus(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsSuperuser {
			WriteStatus(w, http.StatusForbidden, "administrator rights required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminOrSelf admits superusers and the account addressed by the id URL
// parameter.
func AdminOrSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user.IsAnonymous() {
			WriteStatus(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsSuperuser {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil || id != user.ID {
				WriteStatus(w, http.StatusForbidden, "access denied")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// NoSupport rejects requests issued by the distinguished support account.
func NoSupport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if !user.IsAnonymous() && user.IsSupport {
			WriteStatus(w, http.StatusForbidden, "the support account cannot use this view")
			return
		}
		next.ServeHTTP(w, r)
	})
}
