package lifecycle

import (
	"errors"
	"fmt"
)

// Kind is the stable error classification surfaced to clients. The HTTP layer
// owns the mapping to status codes; nothing here depends on transport.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindInvalidState Kind = "invalid_state"
	KindCapacity     Kind = "capacity"
	KindNotAMember   Kind = "not_a_member"
)

// Error is a typed lifecycle failure with a stable kind and a human-readable
// message. Lifecycle operations never leak raw storage errors as Error values.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func errNotFound() *Error {
	return &Error{Kind: KindNotFound, Message: "Session not found"}
}

func errForbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func errInvalidState() *Error {
	return &Error{Kind: KindInvalidState, Message: "Session is not active"}
}

func errCapacity() *Error {
	return &Error{Kind: KindCapacity, Message: "Session is full"}
}

func errNotAMember() *Error {
	return &Error{Kind: KindNotAMember, Message: "You are not a member of this session"}
}

// KindOf extracts the lifecycle kind from an error chain, or "" for errors
// that did not originate here.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsKind reports whether err carries the given lifecycle kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
