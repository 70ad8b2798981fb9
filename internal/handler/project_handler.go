package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/service"
)

// ProjectHandler serves the project and access control list views.
type ProjectHandler struct {
	projects *service.ProjectService
	access   *service.AccessService
	logger   zerolog.Logger
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(projects *service.ProjectService, access *service.AccessService,
	logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		access:   access,
		logger:   logger.With().Str("handler", "project").Logger(),
	}
}

// projectView is the API shape of a project, carrying the principal's
// resolved access level.
type projectView struct {
	*domain.Project
	AvatarURL string             `json:"avatar_url"`
	UserLevel domain.AccessLevel `json:"user_access_level"`
}

func viewOfProject(p *entity.Project, level domain.AccessLevel) projectView {
	return projectView{Project: p.Model(), AvatarURL: p.Avatar.URL(), UserLevel: level}
}

// resolveProject loads the project addressed by the alias URL parameter and
// resolves the principal's level. Principals without access are told the
// project does not exist.
func (h *ProjectHandler) resolveProject(w http.ResponseWriter, r *http.Request) (*entity.Project, domain.AccessLevel, bool) {
	alias := chi.URLParam(r, "alias")
	p, err := h.projects.GetByAlias(r.Context(), alias)
	if err != nil {
		auth.WriteError(w, err)
		return nil, domain.LevelNoAccess, false
	}
	level, err := h.access.Resolve(r.Context(), p.Model(), auth.UserFrom(r.Context()))
	if err != nil {
		auth.WriteError(w, err)
		return nil, domain.LevelNoAccess, false
	}
	if level == domain.LevelNoAccess {
		auth.WriteStatus(w, http.StatusNotFound, "project not found")
		return nil, domain.LevelNoAccess, false
	}
	return p, level, true
}

// requireFull gates the project settings views on the full level.
func (h *ProjectHandler) requireFull(w http.ResponseWriter, r *http.Request) (*entity.Project, bool) {
	p, level, ok := h.resolveProject(w, r)
	if !ok {
		return nil, false
	}
	if level != domain.LevelFull {
		auth.WriteStatus(w, http.StatusForbidden, "full project access required")
		return nil, false
	}
	return p, true
}

type createProjectRequest struct {
	Alias       string `json:"alias"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RootGroupID int64  `json:"root_group_id"`
}

// Create creates a project owned by a root group the principal governs.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.projects.Create(r.Context(), service.CreateProjectInput{
		Alias:       req.Alias,
		Name:        req.Name,
		Description: req.Description,
		RootGroupID: req.RootGroupID,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOfProject(p, domain.LevelFull))
}

// Get retrieves one project.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, level, ok := h.resolveProject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOfProject(p, level))
}

type updateProjectRequest struct {
	Alias       *string `json:"alias"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	RootGroupID *int64  `json:"root_group_id"`
}

// Update applies a partial project update.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireFull(w, r)
	if !ok {
		return
	}
	var req updateProjectRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.projects.Update(r.Context(), p.ID(), service.UpdateProjectInput{
		Alias:       req.Alias,
		Name:        req.Name,
		Description: req.Description,
		RootGroupID: req.RootGroupID,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOfProject(updated, domain.LevelFull))
}

// Delete removes a project.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireFull(w, r)
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), p.ID()); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// List returns one page of projects. Non-administrators see only projects
// they participate in.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	principal := auth.UserFrom(r.Context())

	input := service.ListProjectsInput{
		NameSubstring: r.URL.Query().Get("q"),
		Offset:        offset,
		Limit:         limit,
	}
	if !principal.IsSuperuser {
		input.ParticipantID = principal.ID
	}
	out, err := h.projects.List(r.Context(), input)
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	views := make([]projectView, len(out.Projects))
	for i, p := range out.Projects {
		level, err := h.access.Resolve(r.Context(), p.Model(), principal)
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		views[i] = viewOfProject(p, level)
	}
	writeJSON(w, http.StatusOK, pageEnvelope{Items: views, Total: out.Total})
}

// ACL returns the access control list of a project.
func (h *ProjectHandler) ACL(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireFull(w, r)
	if !ok {
		return
	}
	acl, err := h.access.ACL(r.Context(), p.Model())
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acl)
}

type setPermissionRequest struct {
	// GroupID is nil for the sentinel "all other users" entry.
	GroupID *int64             `json:"group_id"`
	Level   domain.AccessLevel `json:"level"`
}

// SetPermission upserts one ACL entry.
func (h *ProjectHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireFull(w, r)
	if !ok {
		return
	}
	var req setPermissionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.access.SetPermission(r.Context(), p.Model(), req.GroupID, req.Level); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// DeletePermission removes one stored ACL entry.
func (h *ProjectHandler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireFull(w, r)
	if !ok {
		return
	}
	groupID, ok := idParam(r, "groupID")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed group id")
		return
	}
	if err := h.access.DeletePermission(r.Context(), p.Model(), groupID); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
