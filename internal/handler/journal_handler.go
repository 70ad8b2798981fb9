package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/journal"
	"github.com/serik1987/corefacility/internal/service"
)

// JournalHandler serves the laboratory journal views of a project.
type JournalHandler struct {
	journal  *service.JournalService
	projects *service.ProjectService
	access   *service.AccessService
	logger   zerolog.Logger
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(j *service.JournalService, projects *service.ProjectService,
	access *service.AccessService, logger zerolog.Logger) *JournalHandler {
	return &JournalHandler{
		journal:  j,
		projects: projects,
		access:   access,
		logger:   logger.With().Str("handler", "journal").Logger(),
	}
}

// authorizeProject gates a journal request on the principal's level for the
// project addressed by the alias URL parameter. The journal gathers its
// data by upload.
func (h *JournalHandler) authorizeProject(w http.ResponseWriter, r *http.Request) (*domain.Project, bool) {
	alias := chi.URLParam(r, "alias")
	p, err := h.projects.GetByAlias(r.Context(), alias)
	if err != nil {
		auth.WriteError(w, err)
		return nil, false
	}
	user := auth.UserFrom(r.Context())
	if _, err := h.access.Authorize(r.Context(), p.Model(), user, domain.GatheringUploading, r.Method); err != nil {
		auth.WriteError(w, err)
		return nil, false
	}
	return p.Model(), true
}

// authorizeRecord gates a record-addressed request through the record's
// owning project.
func (h *JournalHandler) authorizeRecord(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed record id")
		return 0, false
	}
	rec, err := h.journal.GetRecord(r.Context(), id, principalID(r))
	if err != nil {
		auth.WriteError(w, err)
		return 0, false
	}
	p, err := h.projects.GetByID(r.Context(), rec.ProjectID)
	if err != nil {
		auth.WriteError(w, err)
		return 0, false
	}
	user := auth.UserFrom(r.Context())
	if _, err := h.access.Authorize(r.Context(), p.Model(), user, domain.GatheringUploading, r.Method); err != nil {
		auth.WriteError(w, err)
		return 0, false
	}
	return id, true
}

// ResolvePath resolves a slash-joined alias path to its hydrated record.
func (h *JournalHandler) ResolvePath(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authorizeProject(w, r)
	if !ok {
		return
	}
	rec, err := h.journal.ResolvePath(r.Context(), p.ID, r.URL.Query().Get("path"))
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	full, err := h.journal.GetRecord(r.Context(), rec.ID, principalID(r))
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, full)
}

type createRecordRequest struct {
	ParentID int64              `json:"parent_id"`
	Type     journal.RecordType `json:"type"`
	Alias    string             `json:"alias"`
	Name     string             `json:"name"`
	Comments string             `json:"comments"`
	Datetime *time.Time         `json:"datetime"`
}

// CreateRecord creates a record under a category.
func (h *JournalHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authorizeProject(w, r)
	if !ok {
		return
	}
	var req createRecordRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.journal.CreateRecord(r.Context(), service.CreateRecordInput{
		ProjectID: p.ID,
		ParentID:  req.ParentID,
		Type:      req.Type,
		Alias:     req.Alias,
		Name:      req.Name,
		Comments:  req.Comments,
		Datetime:  req.Datetime,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetRecord returns one hydrated record.
func (h *JournalHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	rec, err := h.journal.GetRecord(r.Context(), id, principalID(r))
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type updateRecordRequest struct {
	ParentID      *int64     `json:"parent_id"`
	Alias         *string    `json:"alias"`
	Name          *string    `json:"name"`
	Comments      *string    `json:"comments"`
	Datetime      *time.Time `json:"datetime"`
	ClearDatetime bool       `json:"clear_datetime"`
}

// UpdateRecord applies a partial record update.
func (h *JournalHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	var req updateRecordRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.journal.UpdateRecord(r.Context(), id, service.UpdateRecordInput{
		ParentID:      req.ParentID,
		Alias:         req.Alias,
		Name:          req.Name,
		Comments:      req.Comments,
		Datetime:      req.Datetime,
		ClearDatetime: req.ClearDatetime,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord removes a record and its subtree.
func (h *JournalHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	if err := h.journal.DeleteRecord(r.Context(), id); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// searchFilter assembles the record filter from query parameters.
func searchFilter(r *http.Request, projectID, userID int64) service.SearchInput {
	q := r.URL.Query()
	f := journal.NewFilter(projectID)
	f.UserID = userID
	if v := q.Get("parent"); v != "" {
		if id, ok := parseID(v); ok {
			f.ParentID = &id
		}
	}
	f.Alias = q.Get("alias")
	f.Name = q.Get("name")
	for _, t := range q["type"] {
		f.Types = append(f.Types, journal.RecordType(t))
	}
	f.Hashtags = q["hashtag"]
	if q.Get("logic") == string(journal.HashtagAnd) {
		f.Logic = journal.HashtagAnd
	}

	from, fromErr := time.Parse(time.RFC3339, q.Get("from"))
	to, toErr := time.Parse(time.RFC3339, q.Get("to"))
	switch {
	case fromErr == nil && toErr == nil:
		f.Datetime = journal.Range(from, to)
	case fromErr == nil:
		f.Datetime = journal.AtLeast(from)
	case toErr == nil:
		f.Datetime = journal.AtMost(to)
	}

	offset, limit := pagination(r)
	input := service.SearchInput{
		Filter:           f,
		RelativeHashtags: q["rel_hashtag"],
		Offset:           offset,
		Limit:            limit,
	}
	if d, err := time.ParseDuration(q.Get("min_gap")); err == nil {
		input.MinGap = d
	}
	if d, err := time.ParseDuration(q.Get("max_gap")); err == nil {
		input.MaxGap = d
	}
	return input
}

// Search runs a filtered record search.
func (h *JournalHandler) Search(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authorizeProject(w, r)
	if !ok {
		return
	}
	input := searchFilter(r, p.ID, principalID(r))
	out, err := h.journal.Search(r.Context(), input)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope{Items: out.Records, Total: out.Total})
}

type checkedRequest struct {
	Checked bool `json:"checked"`
}

// SetChecked stores the principal's checked flag on a record.
func (h *JournalHandler) SetChecked(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	var req checkedRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.journal.SetChecked(r.Context(), id, principalID(r), req.Checked); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type customValueRequest struct {
	Value any `json:"value"`
}

// SetCustomValue assigns a custom parameter value on a record.
func (h *JournalHandler) SetCustomValue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	var req customValueRequest
	if !decode(w, r, &req) {
		return
	}
	identifier := chi.URLParam(r, "identifier")
	if err := h.journal.SetCustomValue(r.Context(), id, identifier, req.Value); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// DeleteCustomValue removes a custom parameter value.
func (h *JournalHandler) DeleteCustomValue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	if err := h.journal.DeleteCustomValue(r.Context(), id, chi.URLParam(r, "identifier")); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type hashtagRequest struct {
	Description string `json:"description"`
}

// AttachHashtag tags a record.
func (h *JournalHandler) AttachHashtag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	var req hashtagRequest
	if !decode(w, r, &req) {
		return
	}
	tag, err := h.journal.AttachHashtag(r.Context(), id, req.Description)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// DetachHashtag untags a record.
func (h *JournalHandler) DetachHashtag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	if err := h.journal.DetachHashtag(r.Context(), id, chi.URLParam(r, "description")); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListHashtags returns the hashtags of the project.
func (h *JournalHandler) ListHashtags(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authorizeProject(w, r)
	if !ok {
		return
	}
	tags, err := h.journal.ListHashtags(r.Context(), p.ID)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

type createDescriptorRequest struct {
	Identifier string                 `json:"identifier"`
	Type       journal.DescriptorType `json:"type"`
	Default    string                 `json:"default"`
	Values     []string               `json:"values"`
}

// CreateDescriptor declares a custom parameter on a category record.
func (h *JournalHandler) CreateDescriptor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	var req createDescriptorRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.journal.CreateDescriptor(r.Context(), service.CreateDescriptorInput{
		CategoryID: id,
		Identifier: req.Identifier,
		Type:       req.Type,
		Default:    req.Default,
		Values:     req.Values,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListDescriptors returns the effective descriptors of a record.
func (h *JournalHandler) ListDescriptors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeRecord(w, r)
	if !ok {
		return
	}
	descriptors, err := h.journal.ListDescriptors(r.Context(), id)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, descriptors)
}

// DeleteDescriptor removes a custom parameter declaration.
func (h *JournalHandler) DeleteDescriptor(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorizeRecord(w, r); !ok {
		return
	}
	descriptorID, ok := idParam(r, "descriptorID")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed descriptor id")
		return
	}
	if err := h.journal.DeleteDescriptor(r.Context(), descriptorID); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
