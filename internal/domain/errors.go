package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmployeeNotFound     = errors.New("employee not found")
	ErrDepartmentNotFound   = errors.New("department not found")
	ErrShiftNotFound        = errors.New("shift not found")
	ErrScheduleNotFound     = errors.New("schedule not found")
	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrRuleNotFound         = errors.New("rule not found")
	ErrNotificationNotFound = errors.New("notification not found")

	ErrEmailTaken          = errors.New("email already registered")
	ErrDepartmentNameTaken = errors.New("department name already in use")
	ErrTokenInvalid        = errors.New("token is invalid or expired")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrAccountLocked       = errors.New("account is locked")
	ErrAccountInactive     = errors.New("account is deactivated")
	ErrBadCredentials      = errors.New("invalid email or password")
	ErrBadCursor           = errors.New("invalid pagination cursor")
	ErrVersionMismatch     = errors.New("schedule version mismatch")
)

// Kind is the language-neutral error class the HTTP boundary maps to a
// status code.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindUnauthenticated  Kind = "unauthenticated"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindLocked           Kind = "locked"
	KindRateLimited      Kind = "rate_limited"
	KindDeadlineExceeded Kind = "deadline_exceeded"
	KindSolverInfeasible Kind = "solver_infeasible"
	KindSolverTimeout    Kind = "solver_timeout"
	KindCancelled        Kind = "cancelled"
	KindDependency       Kind = "dependency_unavailable"
	KindInternal         Kind = "internal"
)

// Conflict sub-kinds and assignment pipeline codes.
const (
	CodeDuplicateAssignment  = "duplicate_assignment"
	CodeOverlapConflict      = "overlap_conflict"
	CodeQualificationMissing = "qualification_missing"
	CodeAvailabilityViolation = "availability_violation"
	CodeScheduleNotEditable  = "schedule_not_editable"
	CodeEmployeeInactive     = "employee_inactive"
	CodeShiftNotFound        = "shift_not_found"
	CodeAuthorizationDenied  = "authorization_denied"
)

// Error is a typed domain error carrying a kind, a stable machine code and a
// human message. Fields holds per-field validation detail when applicable.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// E builds a typed error.
func E(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a validation error with per-field messages.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf extracts the Kind from err, unwrapping as needed. Plain errors map
// to KindInternal; the well-known sentinels map to their natural kinds.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrEmployeeNotFound),
		errors.Is(err, ErrDepartmentNotFound),
		errors.Is(err, ErrShiftNotFound),
		errors.Is(err, ErrScheduleNotFound),
		errors.Is(err, ErrAssignmentNotFound),
		errors.Is(err, ErrRuleNotFound),
		errors.Is(err, ErrNotificationNotFound):
		return KindNotFound
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrDepartmentNameTaken),
		errors.Is(err, ErrVersionMismatch):
		return KindConflict
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrBadCredentials):
		return KindUnauthenticated
	case errors.Is(err, ErrAccountLocked):
		return KindLocked
	case errors.Is(err, ErrBadCursor):
		return KindValidation
	}
	return KindInternal
}

// Retryable reports whether a client may retry the failed request without
// modifying it.
func Retryable(k Kind) bool {
	switch k {
	case KindRateLimited, KindDependency, KindSolverTimeout:
		return true
	}
	return false
}
