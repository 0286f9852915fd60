package classify

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Error is a failure that has been mapped into the taxonomy. It wraps the
// original cause, so errors.Is/As keep working through it.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int    // 0 when the failure never reached an HTTP exchange
	Op         string // operation context, e.g. "ledger.submitBatch"
	cause      error
}

// NewError builds a classified error with no underlying cause, for failures
// the system detects itself (missing mappings, malformed responses).
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the failure may clear up on its own.
func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// MarshalZerologObject lets classified errors be logged as structured fields
// via Event.Object.
func (e *Error) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("kind", string(e.Kind)).
		Str("message", e.Message).
		Bool("retryable", e.Retryable())
	if e.Op != "" {
		ev.Str("op", e.Op)
	}
	if e.HTTPStatus != 0 {
		ev.Int("http_status", e.HTTPStatus)
	}
}

// StatusError carries a non-success HTTP response from a collaborator so the
// classifier can map it by status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("http status %d: %s", e.Code, body)
}
