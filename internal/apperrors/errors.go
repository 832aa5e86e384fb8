package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for HTTP mapping and client presentation.
type Kind int

const (
	KindNotFound Kind = iota
	KindUnauthorized
	KindForbidden
	KindConflict
	KindQuotaExceeded
	KindIOFailure
)

// Error carries a user-presentable message plus an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err. Anything that is not an *Error is
// treated as an I/O failure: unclassified errors come from the storage
// or database layer and must not leak detail in production.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindIOFailure
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindQuotaExceeded:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the message presented to the client. I/O failure
// detail is suppressed unless debug mode is on; the full error is still
// available to the caller for logging.
func UserMessage(err error, debug bool) string {
	kind := KindOf(err)
	if kind == KindIOFailure && !debug {
		return "internal storage error"
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		if kind == KindIOFailure && debug {
			return appErr.Error()
		}
		return appErr.Message
	}
	return err.Error()
}
