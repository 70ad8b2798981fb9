package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/service"
)

// AuthHandler serves login, logout, session refresh and account activation.
type AuthHandler struct {
	users  *service.UserService
	tokens *service.TokenService
	cfg    config.AuthConfig
	logger zerolog.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(users *service.UserService, tokens *service.TokenService,
	cfg config.AuthConfig, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		logger: logger.With().Str("handler", "auth").Logger(),
	}
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

// Login authenticates with a password and issues a bearer token plus, when
// cookie authentication is enabled, a session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.users.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	bearer, err := h.tokens.Issue(r.Context(), user, service.KindBearer)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	if h.cfg.CookieAuthEnabled {
		cookie, err := h.tokens.Issue(r.Context(), user, service.KindCookie)
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		auth.SetSessionCookie(w, h.cfg, cookie.Cleartext, cookie.Token.ExpiresAt)
	}

	MarkSensitive(r)
	writeJSON(w, http.StatusOK, loginResponse{Token: bearer.Cleartext, User: user})
}

// Logout revokes the presented credential and deletes the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if p := auth.PrincipalFrom(r.Context()); p != nil {
		if err := h.tokens.Revoke(r.Context(), p.Cleartext); err != nil {
			auth.WriteError(w, err)
			return
		}
	}
	auth.DeleteSessionCookie(w, h.cfg)
	writeJSON(w, http.StatusNoContent, nil)
}

// LogoutAll revokes every credential of the principal.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	if _, err := h.tokens.RevokeAll(r.Context(), user.ID); err != nil {
		auth.WriteError(w, err)
		return
	}
	auth.DeleteSessionCookie(w, h.cfg)
	writeJSON(w, http.StatusNoContent, nil)
}

// Refresh extends the presented credential by its kind's lifetime.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if p == nil {
		auth.WriteStatus(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.tokens.Refresh(r.Context(), p.Cleartext); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// Profile returns the authenticated account.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.UserFrom(r.Context()))
}

type activateRequest struct {
	Login    string `json:"login"`
	Code     string `json:"activation_code"`
	Password string `json:"password"`
}

// Activate consumes a mailed activation code and sets the first password.
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.users.Activate(r.Context(), req.Login, req.Code, req.Password); err != nil {
		auth.WriteError(w, err)
		return
	}
	MarkSensitive(r)
	writeJSON(w, http.StatusNoContent, nil)
}
