// Package apperr defines the error taxonomy shared by the domain services.
// Every failure a lifecycle operation reports to its caller is an *Error with
// a stable Kind and Code so that an outer layer can map it to a response
// without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how the caller should react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindStateConflict Kind = "state_conflict"
	KindNotFound      Kind = "not_found"
	KindForbidden     Kind = "forbidden"
	KindExternal      Kind = "external"
	KindDuplicate     Kind = "duplicate"
)

// Stable error codes.
const (
	CodeMissingBloodType        = "MISSING_BLOOD_TYPE"
	CodeInvalidBloodType        = "INVALID_BLOOD_TYPE"
	CodeInvalidCoordinates      = "INVALID_COORDINATES"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeInvalidStateTransition  = "INVALID_STATE_TRANSITION"
	CodeNoHospitalAvailable     = "NO_HOSPITAL_AVAILABLE"
	CodeMissingLocation         = "MISSING_LOCATION"
	CodeDuplicatePendingRequest = "DUPLICATE_PENDING_REQUEST"
	CodeForbidden               = "FORBIDDEN"
	CodeNotFound                = "NOT_FOUND"
	CodePushFailed              = "PUSH_FAILED"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind           `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail returns a copy of e carrying an extra detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func StateConflict(message string) *Error {
	return New(KindStateConflict, CodeInvalidStateTransition, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, CodeNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, CodeForbidden, message)
}

func Duplicate(code, message string) *Error {
	return New(KindDuplicate, code, message)
}

// External wraps a failure of an outside collaborator.
func External(code, message string, cause error) *Error {
	return &Error{Kind: KindExternal, Code: code, Message: message, Cause: cause}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// CodeOf returns the code of the *Error in err's chain, or "" if there is none.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}
