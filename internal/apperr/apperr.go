// Package apperr classifies request failures into the stable categories the
// API reports to clients, each with a fixed HTTP status code.
package apperr

import (
	"errors"
	"net/http"
)

// Kind identifies a failure category.
type Kind int

const (
	// KindInternal is the catch-all for unclassified failures.
	KindInternal Kind = iota

	// KindValidation covers malformed input: missing fields, bad addresses,
	// invalid base64, oversized attachments.
	KindValidation

	// KindAuth covers SMTP credential rejection.
	KindAuth

	// KindTransport covers connection-level failures: unreachable server,
	// timeouts, TLS negotiation errors.
	KindTransport

	// KindSendRejected covers server-side rejection of a recipient.
	KindSendRejected

	// KindSendFailed covers send-phase failures that are not address-related.
	KindSendFailed
)

// Error is a classified failure. The public message is safe to return to
// clients; the wrapped cause is for logs only.
type Error struct {
	kind   Kind
	public string
	cause  error
}

// New creates a classified error with a client-safe message.
func New(kind Kind, public string) *Error {
	return &Error{kind: kind, public: public}
}

// Wrap creates a classified error that keeps the underlying cause for logging.
func Wrap(kind Kind, public string, cause error) *Error {
	return &Error{kind: kind, public: public, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.public + ": " + e.cause.Error()
	}
	return e.public
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the failure category.
func (e *Error) Kind() Kind {
	return e.kind
}

// Public returns the sanitized message for the response envelope.
// The underlying cause is never exposed.
func (e *Error) Public() string {
	return e.public
}

// StatusCode returns the HTTP status for the failure category.
func (e *Error) StatusCode() int {
	switch e.kind {
	case KindValidation, KindSendRejected:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode maps any error to an HTTP status. Unclassified errors map to 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}

// KindOf returns the failure category of any error. Unclassified errors
// report as KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

// Public maps any error to a client-safe message. Unclassified errors get a
// generic description so internals never leak.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Public()
	}
	return "internal server error"
}
