// Package apperr classifies the failures surfaced by the booking core so
// callers can react per category instead of matching error strings.
package apperr

import "errors"

type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindCapacity       Kind = "capacity"
	KindCredit         Kind = "credit"
	KindState          Kind = "state"
	KindForbidden      Kind = "forbidden"
	KindConflict       Kind = "conflict"
	KindInfrastructure Kind = "infrastructure"
)

// Error is a sentinel failure with a stable machine-readable code.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func (e *Error) Error() string {
	return e.Msg
}

// Classified is implemented by errors that carry their own kind, such as
// errors with remediation payloads.
type Classified interface {
	error
	ErrorKind() Kind
}

func (e *Error) ErrorKind() Kind {
	return e.Kind
}

// KindOf walks the chain of err and returns the first kind found.
// Unclassified errors are treated as infrastructure failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var c Classified
	if errors.As(err, &c) {
		return c.ErrorKind()
	}
	return KindInfrastructure
}

func (e *Error) ErrorCode() string {
	return e.Code
}

type coded interface {
	ErrorCode() string
}

// CodeOf returns the code of the first coded error in the chain, or "internal".
func CodeOf(err error) string {
	var c coded
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return "internal"
}

// Detailed is implemented by errors that carry remediation data the caller
// can act on in the same request.
type Detailed interface {
	Details() map[string]any
}

func DetailsOf(err error) map[string]any {
	var d Detailed
	if errors.As(err, &d) {
		return d.Details()
	}
	return nil
}

// Retryable reports whether the caller may retry the operation.
func Retryable(err error) bool {
	return KindOf(err) == KindInfrastructure
}
