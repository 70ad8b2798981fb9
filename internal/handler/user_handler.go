package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/service"
)

// UserHandler serves the account administration views.
type UserHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// NewUserHandler creates a user handler.
func NewUserHandler(users *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger.With().Str("handler", "user").Logger()}
}

// userView is the API shape of an account.
type userView struct {
	*domain.User
	AvatarURL string `json:"avatar_url"`
}

func viewOfUser(u *entity.User) userView {
	return userView{User: u.Model(), AvatarURL: u.Avatar.URL()}
}

func viewsOfUsers(users []*entity.User) []userView {
	views := make([]userView, len(users))
	for i, u := range users {
		views[i] = viewOfUser(u)
	}
	return views
}

type createUserRequest struct {
	Login          string `json:"login"`
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Password       string `json:"password"`
	SendActivation bool   `json:"send_activation"`
	Locale         string `json:"locale"`
}

// Create creates an account.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.users.Create(r.Context(), service.CreateUserInput{
		Login:          req.Login,
		Name:           req.Name,
		Surname:        req.Surname,
		Email:          req.Email,
		Phone:          req.Phone,
		Password:       req.Password,
		SendActivation: req.SendActivation,
		Locale:         req.Locale,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOfUser(u))
}

// Get retrieves one account.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed user id")
		return
	}
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOfUser(u))
}

type updateUserRequest struct {
	Login       *string `json:"login"`
	Name        *string `json:"name"`
	Surname     *string `json:"surname"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	IsLocked    *bool   `json:"is_locked"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// Update applies a partial account update.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed user id")
		return
	}
	var req updateUserRequest
	if !decode(w, r, &req) {
		return
	}

	// Flag changes stay administrative even on the principal's own account.
	principal := auth.UserFrom(r.Context())
	if !principal.IsSuperuser && (req.IsLocked != nil || req.IsSuperuser != nil) {
		auth.WriteStatus(w, http.StatusForbidden, "administrator rights required")
		return
	}

	u, err := h.users.Update(r.Context(), id, service.UpdateUserInput{
		Login:       req.Login,
		Name:        req.Name,
		Surname:     req.Surname,
		Email:       req.Email,
		Phone:       req.Phone,
		IsLocked:    req.IsLocked,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOfUser(u))
}

// Delete removes an account.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed user id")
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// SetPassword replaces an account password.
func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed user id")
		return
	}
	var req setPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.users.SetPassword(r.Context(), id, req.Password); err != nil {
		auth.WriteError(w, err)
		return
	}
	MarkSensitive(r)
	writeJSON(w, http.StatusNoContent, nil)
}

type issueActivationRequest struct {
	Locale string `json:"locale"`
}

// IssueActivation mails a fresh activation code to the account.
func (h *UserHandler) IssueActivation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed user id")
		return
	}
	var req issueActivationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.users.IssueActivation(r.Context(), id, req.Locale); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// List returns one page of accounts.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	var group int64
	if v := r.URL.Query().Get("group"); v != "" {
		if id, ok := parseID(v); ok {
			group = id
		}
	}
	out, err := h.users.List(r.Context(), service.ListUsersInput{
		NameSubstring: r.URL.Query().Get("q"),
		GroupID:       group,
		Offset:        offset,
		Limit:         limit,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope{Items: viewsOfUsers(out.Users), Total: out.Total})
}
