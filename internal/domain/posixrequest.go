package domain

import (
	"encoding/json"
	"time"
)

// PosixRequestStatus is the processing band of a queued POSIX request.
type PosixRequestStatus string

// Queue status bands. The daemon advances rows initialized -> analyzed
// (suggest mode) or confirmed (full mode) -> executed or failed.
const (
	PosixInitialized PosixRequestStatus = "initialized"
	PosixAnalyzed    PosixRequestStatus = "analyzed"
	PosixConfirmed   PosixRequestStatus = "confirmed"
	PosixExecuted    PosixRequestStatus = "executed"
	PosixFailed      PosixRequestStatus = "failed"
)

// PosixRequest is a persisted privileged OS command. In suggest mode the
// posix provider enqueues these rows instead of executing commands inline;
// a separate daemon running as root picks them up in id order.
type PosixRequest struct {
	// ID is the unique identifier for the request (auto-generated).
	ID int64 `json:"id"`

	// ActionClass is the fully qualified name of the action to instantiate.
	ActionClass string `json:"action_class"`

	// CtorArgs are the serialized constructor arguments of the action.
	CtorArgs json.RawMessage `json:"ctor_args"`

	// Method is the action method the daemon invokes.
	Method string `json:"method"`

	// MethodArgs are the serialized method arguments.
	MethodArgs json.RawMessage `json:"method_args"`

	// LogID ties the request to the audit log row of the HTTP exchange
	// that produced it. Requests without a live log row fail the
	// security check.
	LogID int64 `json:"log_id"`

	// Status is the current processing band.
	Status PosixRequestStatus `json:"status"`

	// CreatedAt is the enqueue instant.
	CreatedAt time.Time `json:"created_at"`
}
