// Package status implements the gateway's uniform error taxonomy. Every
// back-end (local filesystem, RAWX HTTP, Kinetic) and the gateway front-end
// itself communicate failures as a *Status rather than ad-hoc errors, so
// the HTTP layer can map any failure to an HTTP status code and a stable
// internal status code without knowing which back-end produced it.
package status

import "fmt"

// Kind is the back-end-agnostic failure category. Every operation in this
// module reports success or failure in terms of Kind; HTTP status mapping
// is derived from it.
type Kind int

const (
	// OK indicates success.
	OK Kind = iota
	// Already indicates the content already exists in a committed state.
	Already
	// NotFound indicates the content is absent when required.
	NotFound
	// Forbidden indicates a policy, permission, or range mismatch.
	Forbidden
	// NetworkError indicates a transport failure to a back-end.
	NetworkError
	// ProtocolError indicates a malformed back-end reply.
	ProtocolError
	// Unsupported indicates the operation is not supported by the back-end.
	Unsupported
	// InternalError indicates a precondition or state-machine violation.
	InternalError
)

// String renders the Kind the way it appears in log fields and the JSON
// error body's "message" default text.
func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case Already:
		return "already"
	case NotFound:
		return "not found"
	case Forbidden:
		return "forbidden"
	case NetworkError:
		return "network error"
	case ProtocolError:
		return "protocol error"
	case Unsupported:
		return "unsupported"
	case InternalError:
		return "internal error"
	default:
		return "unknown"
	}
}

// HTTPStatus returns the HTTP status code this Kind maps to, per spec §7.
func (k Kind) HTTPStatus() int {
	switch k {
	case OK:
		return 200
	case Already:
		return 406
	case NotFound:
		return 404
	case Forbidden:
		return 403
	case NetworkError:
		return 503
	case ProtocolError:
		return 502
	case Unsupported:
		return 501
	default:
		return 500
	}
}

// Status is the error type every operation in this module returns instead
// of a bare error. It carries an internal status code (used by operational
// dashboards, independent of the HTTP status) plus a human-readable
// message, and wraps an optional underlying cause for errors.Is/As.
type Status struct {
	Kind    Kind
	Code    int
	Message string
	Cause   error
}

// Error satisfies the error interface.
func (s *Status) Error() string {
	if s.Cause != nil {
		return fmt.Sprintf("%s (code=%d): %s: %v", s.Kind, s.Code, s.Message, s.Cause)
	}
	return fmt.Sprintf("%s (code=%d): %s", s.Kind, s.Code, s.Message)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (s *Status) Unwrap() error { return s.Cause }

// Is supports errors.Is(err, status.New(SomeKind, ...)) comparisons by
// Kind+Code rather than pointer identity.
func (s *Status) Is(target error) bool {
	t, ok := target.(*Status)
	if !ok {
		return false
	}
	return s.Kind == t.Kind && s.Code == t.Code
}

// New constructs a Status with no wrapped cause.
func New(kind Kind, code int, message string) *Status {
	return &Status{Kind: kind, Code: code, Message: message}
}

// Wrap constructs a Status wrapping an underlying error.
func Wrap(kind Kind, code int, message string, cause error) *Status {
	return &Status{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Well-known internal status codes referenced by spec.md §8's end-to-end
// scenarios (e.g. the "406 / internal 421" / "404 / internal 420" pairs).
const (
	CodeAlreadyExists  = 421
	CodeNotFoundChunk  = 420
	CodeNotFoundRange  = 402
	CodeForbiddenRange = 403
	CodeInternal       = 500
)

// Standard sentinel statuses used across backends and the gateway.
var (
	ErrAlreadyExists = New(Already, CodeAlreadyExists, "blobs found")
	ErrNotFound      = New(NotFound, CodeNotFoundChunk, "blobs not found")
	ErrNoData        = New(NotFound, CodeNotFoundRange, "no data for requested range")
)
