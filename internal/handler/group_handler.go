package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/service"
)

// GroupHandler serves the scientific group views.
type GroupHandler struct {
	groups *service.GroupService
	logger zerolog.Logger
}

// NewGroupHandler creates a group handler.
func NewGroupHandler(groups *service.GroupService, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, logger: logger.With().Str("handler", "group").Logger()}
}

func modelsOfGroups(groups []*entity.Group) []*domain.Group {
	models := make([]*domain.Group, len(groups))
	for i, g := range groups {
		models[i] = g.Model()
	}
	return models
}

type createGroupRequest struct {
	Name       string `json:"name"`
	GovernorID int64  `json:"governor_id"`
}

// Create creates a group. Non-administrators become the governor themselves.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decode(w, r, &req) {
		return
	}
	principal := auth.UserFrom(r.Context())
	if !principal.IsSuperuser || req.GovernorID == 0 {
		req.GovernorID = principal.ID
	}
	g, err := h.groups.Create(r.Context(), service.CreateGroupInput{
		Name:       req.Name,
		GovernorID: req.GovernorID,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g.Model())
}

// requireGovernorOrAdmin admits the group's governor and superusers.
func (h *GroupHandler) requireGovernorOrAdmin(w http.ResponseWriter, r *http.Request, id int64) *entity.Group {
	g, err := h.groups.GetByID(r.Context(), id)
	if err != nil {
		auth.WriteError(w, err)
		return nil
	}
	principal := auth.UserFrom(r.Context())
	if !principal.IsSuperuser && !g.Model().GovernedBy(principal.ID) {
		auth.WriteStatus(w, http.StatusForbidden, "governor rights required")
		return nil
	}
	return g
}

// Get retrieves one group.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed group id")
		return
	}
	g, err := h.groups.GetByID(r.Context(), id)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Model())
}

type updateGroupRequest struct {
	Name       *string `json:"name"`
	GovernorID *int64  `json:"governor_id"`
}

// Update applies a partial group update.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed group id")
		return
	}
	if h.requireGovernorOrAdmin(w, r, id) == nil {
		return
	}
	var req updateGroupRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := h.groups.Update(r.Context(), id, service.UpdateGroupInput{
		Name:       req.Name,
		GovernorID: req.GovernorID,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Model())
}

// Delete removes a group.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed group id")
		return
	}
	if h.requireGovernorOrAdmin(w, r, id) == nil {
		return
	}
	if err := h.groups.Delete(r.Context(), id); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type memberRequest struct {
	UserID int64 `json:"user_id"`
}

// AddMember enrolls a user.
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed group id")
		return
	}
	if h.requireGovernorOrAdmin(w, r, id) == nil {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.groups.AddMember(r.Context(), id, req.UserID); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// RemoveMember removes a user from the group. Members may leave on their
// own; removing someone else needs governor rights.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed group id")
		return
	}
	userID, ok := idParam(r, "userID")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed user id")
		return
	}
	principal := auth.UserFrom(r.Context())
	if userID != principal.ID {
		if h.requireGovernorOrAdmin(w, r, id) == nil {
			return
		}
	}
	if err := h.groups.RemoveMember(r.Context(), id, userID); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListMembers returns one page of member accounts.
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed group id")
		return
	}
	offset, limit := pagination(r)
	members, err := h.groups.ListMembers(r.Context(), id, offset, limit)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope{Items: members, Total: int64(len(members))})
}

// List returns one page of groups. Non-administrators see only their own
// groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	principal := auth.UserFrom(r.Context())

	input := service.ListGroupsInput{
		NameSubstring: r.URL.Query().Get("q"),
		Offset:        offset,
		Limit:         limit,
	}
	if !principal.IsSuperuser {
		input.MemberID = principal.ID
	}
	out, err := h.groups.List(r.Context(), input)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope{Items: modelsOfGroups(out.Groups), Total: out.Total})
}
