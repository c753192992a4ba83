// Package apperr holds the error taxonomy shared by the ledger, the game
// engine and the session coordinator. Errors carry a Code and match each
// other through errors.Is by code, so callers can wrap freely with %w.
package apperr

import "errors"

// Code is a machine-readable error class.
type Code string

const (
	CodeUnauthorized      Code = "unauthorized"
	CodeNotFound          Code = "not_found"
	CodeInvalidState      Code = "invalid_state"
	CodeInvalidAction     Code = "invalid_action"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeDuplicate         Code = "duplicate"
	CodeConflict          Code = "conflict"
	CodeInvalidArgument   Code = "invalid_argument"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == t.Code
}

// Sentinels for errors.Is checks.
var (
	ErrUnauthorized      = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidState      = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrInvalidAction     = &Error{Code: CodeInvalidAction, Message: "invalid action"}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrDuplicate         = &Error{Code: CodeDuplicate, Message: "duplicate"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
)

// New creates a coded error with a message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ""
}
