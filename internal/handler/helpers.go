// Package handler provides the HTTP API of the corefacility server.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/serik1987/corefacility/internal/auth"
)

// maxRequestBody bounds decoded JSON request bodies.
const maxRequestBody = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decode reads a JSON request body. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		auth.WriteStatus(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// parseID parses a positive integer identifier.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

// idParam reads an integer URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// pagination reads the offset/limit query parameters. A missing limit means
// unbounded.
func pagination(r *http.Request) (offset, limit int64) {
	q := r.URL.Query()
	offset, _ = strconv.ParseInt(q.Get("offset"), 10, 64)
	limit, _ = strconv.ParseInt(q.Get("limit"), 10, 64)
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	return offset, limit
}

// principalID returns the authenticated user's id, zero for anonymous.
func principalID(r *http.Request) int64 {
	if u := auth.UserFrom(r.Context()); !u.IsAnonymous() {
		return u.ID
	}
	return 0
}

// pageEnvelope is the uniform list response shape.
type pageEnvelope struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
}
