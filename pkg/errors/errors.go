package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache entry not found")

	ErrActivityNotFound  = New("ACTIVITY_NOT_FOUND", http.StatusNotFound, "activity not found")
	ErrActivityNotOpen   = New("ACTIVITY_NOT_OPEN", http.StatusPreconditionFailed, "activity is not open for this operation")
	ErrSignupNotFound    = New("SIGNUP_NOT_FOUND", http.StatusNotFound, "signup not found")
	ErrSignupNotApproved = New("SIGNUP_NOT_APPROVED", http.StatusPreconditionFailed, "signup has not been approved")
	ErrSignupNotPending  = New("SIGNUP_NOT_PENDING", http.StatusConflict, "signup is no longer pending")
	ErrAlreadySignedUp   = New("ALREADY_SIGNED_UP", http.StatusConflict, "already signed up for this activity")
	ErrAlreadySignedIn   = New("ALREADY_SIGNED_IN", http.StatusConflict, "already checked in")
	ErrAlreadySignedOut  = New("ALREADY_SIGNED_OUT", http.StatusConflict, "already checked out")
	ErrNotSignedIn       = New("NOT_SIGNED_IN", http.StatusPreconditionFailed, "not checked in yet")
	ErrNotSignedOut      = New("NOT_SIGNED_OUT", http.StatusPreconditionFailed, "not checked out yet")
	ErrTokenInvalid      = New("TOKEN_INVALID", http.StatusBadRequest, "check token is invalid")
	ErrTokenExpired      = New("TOKEN_EXPIRED", http.StatusGone, "check token has expired")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the given code.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
