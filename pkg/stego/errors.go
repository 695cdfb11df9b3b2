// errors.go — Structured codec errors.
package stego

import "errors"

// Kind is a stable category for programmatic error handling.
// Callers should branch on Kind (or errors.Is against the sentinels
// below) rather than matching error strings.
type Kind string

const (
	KindPayloadTooLarge          Kind = "PayloadTooLarge"
	KindCapacityExceeded         Kind = "CapacityExceeded"
	KindTruncatedHeader          Kind = "TruncatedHeader"
	KindTruncatedPayload         Kind = "TruncatedPayload"
	KindCorruptHeader            Kind = "CorruptHeader"
	KindUnsupportedCarrierFormat Kind = "UnsupportedCarrierFormat"
)

// Sentinels for errors.Is. A *Error matches a sentinel when the kinds agree.
var (
	ErrPayloadTooLarge          = &Error{Kind: KindPayloadTooLarge, Message: "payload too large"}
	ErrCapacityExceeded         = &Error{Kind: KindCapacityExceeded, Message: "capacity exceeded"}
	ErrTruncatedHeader          = &Error{Kind: KindTruncatedHeader, Message: "truncated header"}
	ErrTruncatedPayload         = &Error{Kind: KindTruncatedPayload, Message: "truncated payload"}
	ErrCorruptHeader            = &Error{Kind: KindCorruptHeader, Message: "corrupt header"}
	ErrUnsupportedCarrierFormat = &Error{Kind: KindUnsupportedCarrierFormat, Message: "unsupported carrier format"}
)

// Error is the codec's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports kind equality so that errors.Is(err, ErrCapacityExceeded)
// holds for any capacity error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind Kind, msg string, cause error) error {
	if cause == nil {
		return newError(kind, msg)
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
