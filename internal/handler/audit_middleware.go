package handler

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/posix"
	"github.com/serik1987/corefacility/internal/service"
)

// sensitiveFlag marks responses whose body must not reach the audit log.
type sensitiveFlag struct{ set bool }

type sensitiveKey struct{}

// MarkSensitive excludes the response body of the current exchange from the
// audit log. Handlers returning credentials call this before writing.
func MarkSensitive(r *http.Request) {
	if f, ok := r.Context().Value(sensitiveKey{}).(*sensitiveFlag); ok {
		f.set = true
	}
}

// auditRecorder captures the response for the audit row.
type auditRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
	limit  int
}

func (rec *auditRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *auditRecorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	if rec.body.Len() < rec.limit {
		rec.body.Write(p[:min(len(p), rec.limit-rec.body.Len())])
	}
	return rec.ResponseWriter.Write(p)
}

// clientIP extracts the client address, honouring the first X-Forwarded-For
// hop when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// loggable reports whether the exchange is audited: every non-idempotent
// request plus activation-code-bearing GETs.
func loggable(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	case http.MethodGet:
		return r.URL.Query().Has("activation_code")
	default:
		return false
	}
}

// AuditMiddleware records loggable exchanges. The row opens before the
// handler runs so queued POSIX requests can reference it, and closes with
// the final status and the truncated response body.
func AuditMiddleware(audit *service.AuditService, bodyLimit int, logger zerolog.Logger) func(http.Handler) http.Handler {
	if bodyLimit <= 0 {
		bodyLimit = 16384
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !loggable(r) {
				next.ServeHTTP(w, r)
				return
			}

			var reqBody []byte
			if r.Body != nil {
				reqBody, _ = io.ReadAll(io.LimitReader(r.Body, int64(bodyLimit)+1))
				rest, _ := io.ReadAll(r.Body)
				_ = r.Body.Close()
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBody), bytes.NewReader(rest)))
			}

			var userID *int64
			if user := auth.UserFrom(r.Context()); !user.IsAnonymous() {
				id := user.ID
				userID = &id
			}

			row, err := audit.Open(r.Context(), service.OpenInput{
				Address:     r.URL.Path,
				Method:      r.Method,
				IP:          clientIP(r),
				UserID:      userID,
				RequestBody: reqBody,
			})
			if err != nil {
				logger.Error().Err(err).Str("path", r.URL.Path).Msg("failed to open audit row")
				next.ServeHTTP(w, r)
				return
			}

			flag := &sensitiveFlag{}
			ctx := posix.WithLogID(r.Context(), row.ID)
			ctx = context.WithValue(ctx, sensitiveKey{}, flag)
			rec := &auditRecorder{ResponseWriter: w, limit: bodyLimit}

			next.ServeHTTP(rec, r.WithContext(ctx))

			if pattern := chi.RouteContext(ctx).RoutePattern(); pattern != "" {
				if err := audit.SetOperation(ctx, row.ID, r.Method+" "+pattern); err != nil {
					logger.Error().Err(err).Int64("log_id", row.ID).Msg("failed to record operation")
				}
			}
			respBody := rec.body.Bytes()
			if flag.set {
				respBody = nil
			}
			if err := audit.Close(ctx, row.ID, rec.status, respBody); err != nil {
				logger.Error().Err(err).Int64("log_id", row.ID).Msg("failed to close audit row")
			}
		})
	}
}
