// Package apperr classifies the failures the household and task engine
// reports to its callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindUnauthenticated
	KindUnauthorized
	KindInvalidArgument
	KindInvalidTaskAssignment
	KindIllegalState
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidTaskAssignment:
		return "invalid_task_assignment"
	case KindIllegalState:
		return "illegal_state"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a classified failure. Two errors match under errors.Is when they
// share a non-empty Code, so the sentinels below can be compared against
// errors carrying a more specific message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy of e with err attached as its cause.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

var (
	ErrUserNotFound        = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}
	ErrHouseholdNotFound   = &Error{Kind: KindNotFound, Code: "household_not_found", Message: "household not found"}
	ErrTaskNotFound        = &Error{Kind: KindNotFound, Code: "task_not_found", Message: "task not found"}
	ErrJoinRequestNotFound = &Error{Kind: KindNotFound, Code: "join_request_not_found", Message: "join request not found"}
	ErrInvalidInviteCode   = &Error{Kind: KindNotFound, Code: "invalid_invite_code", Message: "invalid group code, try again"}

	ErrAlreadyInHousehold = &Error{Kind: KindConflict, Code: "already_in_household", Message: "you are already in a household; leave your current household first"}
	ErrUsernameTaken      = &Error{Kind: KindConflict, Code: "username_taken", Message: "username already taken"}

	ErrNotInHousehold  = &Error{Kind: KindIllegalState, Code: "not_in_household", Message: "you must be in a household"}
	ErrRequestResolved = &Error{Kind: KindIllegalState, Code: "request_resolved", Message: "this request has already been processed"}

	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: "only the host can perform this action"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Code: "invalid_credentials", Message: "invalid username or password"}

	ErrInvalidTaskAssignment = &Error{Kind: KindInvalidTaskAssignment, Code: "invalid_task_assignment", Message: "invalid task assignment"}

	ErrFetchTimeout        = &Error{Kind: KindUnavailable, Code: "fetch_timeout", Message: "failed to fetch household data, try again"}
	ErrInviteCodeExhausted = &Error{Kind: KindUnavailable, Code: "invite_code_exhausted", Message: "could not allocate an invite code, try again"}

	ErrIntegrity = &Error{Kind: KindInternal, Code: "integrity", Message: "data integrity violation"}
)

// InvalidField reports a structurally valid input that was rejected on its
// value, naming the offending field.
func InvalidField(field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindInvalidArgument,
		Code:    "invalid_argument",
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	}
}

// KindOf classifies err. Anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
