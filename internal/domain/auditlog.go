package domain

import "time"

// AuditLog is one recorded request/response exchange. A row is written for
// every non-idempotent request and for activation-code-bearing GETs.
type AuditLog struct {
	// ID is the unique identifier for the log row (auto-generated).
	ID int64 `json:"id"`

	// RequestDate is the arrival instant of the request.
	RequestDate time.Time `json:"request_date"`

	// Address is the request path.
	Address string `json:"log_address"`

	// Method is the HTTP request method.
	Method string `json:"request_method"`

	// IP is the client address, honouring X-Forwarded-For when present.
	IP string `json:"ip_address"`

	// UserID is the authenticated principal, nil for anonymous requests.
	UserID *int64 `json:"user_id"`

	// ResponseStatus is the final HTTP status, zero until the response
	// has been written.
	ResponseStatus int `json:"response_status"`

	// RequestBody and ResponseBody hold the UTF-8 decoded bodies,
	// truncated to the configured limit. ResponseBody stays empty when the
	// handler marked the body sensitive.
	RequestBody  string `json:"request_body"`
	ResponseBody string `json:"response_body"`

	// Operation is the human-readable operation description taken from the
	// handler registration.
	Operation string `json:"operation_description"`

	// CorrelationID ties the log row to POSIX requests queued while the
	// request was processed.
	CorrelationID string `json:"correlation_id,omitempty"`
}
