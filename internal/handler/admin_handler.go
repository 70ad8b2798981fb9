package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/service"
)

// AdminHandler serves the administrative views: the privileged command
// queue and the audit log. Every route is superuser-gated.
type AdminHandler struct {
	queue  *service.QueueService
	audit  *service.AuditService
	logger zerolog.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(queue *service.QueueService, audit *service.AuditService,
	logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		queue:  queue,
		audit:  audit,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// ListQueue returns queued POSIX requests in one status band.
func (h *AdminHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := domain.PosixRequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.PosixAnalyzed
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.queue.List(r.Context(), status, limit)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope{Items: rows, Total: int64(len(rows))})
}

// GetQueued returns one queued request.
func (h *AdminHandler) GetQueued(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed request id")
		return
	}
	row, err := h.queue.Get(r.Context(), id)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// ConfirmQueued releases an analyzed request for execution.
func (h *AdminHandler) ConfirmQueued(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed request id")
		return
	}
	if err := h.queue.Confirm(r.Context(), id); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// PurgeQueued removes a queued request without executing it.
func (h *AdminHandler) PurgeQueued(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed request id")
		return
	}
	if err := h.queue.Purge(r.Context(), id); err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListAuditLog returns audit rows in arrival order.
func (h *AdminHandler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	rows, err := h.audit.List(r.Context(), offset, limit)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope{Items: rows, Total: int64(len(rows))})
}

// GetAuditRow returns one audit row.
func (h *AdminHandler) GetAuditRow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed log id")
		return
	}
	row, err := h.audit.Get(r.Context(), id)
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
