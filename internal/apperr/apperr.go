// Package apperr defines the error taxonomy surfaced to callers of the
// request engine and the identity provider.
//
// Every failure carries a Kind (what the caller can do about it) and a Code
// (which specific condition occurred). Errors with the same Code match each
// other under errors.Is, so callers can compare against the sentinels
// regardless of the operation that produced them.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuth              Kind = "auth"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindNetwork           Kind = "network"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound, Code: "not_found", Message: "not found"}
	ErrAlreadyAccepted   = &Error{Kind: KindConflict, Code: "already_accepted", Message: "request already accepted"}
	ErrLimitReached      = &Error{Kind: KindConflict, Code: "limit_reached", Message: "too many requests in progress"}
	ErrDuplicateRating   = &Error{Kind: KindConflict, Code: "duplicate_rating", Message: "request already rated"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Code: "invalid_transition", Message: "invalid status transition"}
	ErrTimeout           = &Error{Kind: KindNetwork, Code: "timeout", Message: "operation timed out"}
	ErrUnavailable       = &Error{Kind: KindNetwork, Code: "unavailable", Message: "store unavailable"}
	ErrInvalidCredential = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "invalid email or password"}
	ErrUnauthenticated   = &Error{Kind: KindAuth, Code: "unauthenticated", Message: "not signed in"}
)

// E returns a copy of sentinel annotated with op.
func E(op string, sentinel *Error) *Error {
	e := *sentinel
	e.Op = op
	return &e
}

// Wrap returns a copy of sentinel annotated with op and cause.
func Wrap(op string, sentinel *Error, cause error) *Error {
	e := E(op, sentinel)
	e.Err = cause
	return e
}

func Validation(op, code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Op: op, Message: message}
}

func Conflict(op, code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Op: op, Message: message}
}

func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Code: ErrNotFound.Code, Op: op, Message: message}
}

func Transition(op, message string) *Error {
	return &Error{Kind: KindInvalidTransition, Code: ErrInvalidTransition.Code, Op: op, Message: message}
}

func Auth(op, message string, cause error) *Error {
	return &Error{Kind: KindAuth, Code: "auth", Op: op, Message: message, Err: cause}
}

func Internal(op string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Op: op, Message: "internal error", Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// StepError reports which step of a multi-step operation failed. Earlier
// steps are not rolled back.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
