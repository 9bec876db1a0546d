// Package errors is the application error taxonomy shared by services and handlers.
// Every failure a caller can observe carries a Code; handlers map the code to a
// transport status and only ever expose Message, never the wrapped cause.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure
type Code string

const (
	ErrCodeNotFound                 Code = "NOT_FOUND"
	ErrCodeAlreadyRegistered        Code = "ALREADY_REGISTERED"
	ErrCodeAlreadyVerified          Code = "ALREADY_VERIFIED"
	ErrCodeInvalidOrExpiredOTP      Code = "INVALID_OR_EXPIRED_OTP"
	ErrCodeInvalidCredentials       Code = "INVALID_CREDENTIALS"
	ErrCodeIncorrectOldPassword     Code = "INCORRECT_OLD_PASSWORD"
	ErrCodePasswordMismatch         Code = "PASSWORD_MISMATCH"
	ErrCodeNotVerified              Code = "NOT_VERIFIED"
	ErrCodeMissingOrMalformedHeader Code = "MISSING_OR_MALFORMED_HEADER"
	ErrCodeUnauthorized             Code = "UNAUTHORIZED"
	ErrCodeForbidden                Code = "FORBIDDEN"
	ErrCodeValidation               Code = "VALIDATION"
	ErrCodeInternal                 Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	ErrCodeNotFound:                 http.StatusNotFound,
	ErrCodeAlreadyRegistered:        http.StatusBadRequest,
	ErrCodeAlreadyVerified:          http.StatusBadRequest,
	ErrCodeInvalidOrExpiredOTP:      http.StatusBadRequest,
	ErrCodeInvalidCredentials:       http.StatusUnauthorized,
	ErrCodeIncorrectOldPassword:     http.StatusBadRequest,
	ErrCodePasswordMismatch:         http.StatusBadRequest,
	ErrCodeNotVerified:              http.StatusUnauthorized,
	ErrCodeMissingOrMalformedHeader: http.StatusUnauthorized,
	ErrCodeUnauthorized:             http.StatusUnauthorized,
	ErrCodeForbidden:                http.StatusForbidden,
	ErrCodeValidation:               http.StatusBadRequest,
	ErrCodeInternal:                 http.StatusInternalServerError,
}

// AppError is an error with a stable code and a caller-safe message
type AppError struct {
	Code    Code
	Message string
	Details map[string]string
	// Status overrides the default status for the code when non-zero
	Status int
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus returns the transport status for the error
func (e *AppError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithStatus returns a copy of the error reported with a different status
func (e *AppError) WithStatus(status int) *AppError {
	cp := *e
	cp.Status = status
	return &cp
}

// New creates an error with the given code and message
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and caller-safe message to an underlying error
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NotFound reports a missing entity
func NotFound(entity, id string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]string{"entity": entity, "id": id},
	}
}

// Unauthorized reports a failed authentication check
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

// Forbidden reports an authenticated caller lacking permission
func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

// Validation reports rejected input; fields maps field name to reason
func Validation(message string, fields map[string]string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Details: fields}
}

// Internal reports an unexpected failure; message must be generic
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

// As extracts an AppError from the chain. Errors without one are reported as
// internal failures so a raw cause never reaches the caller.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}

// CodeOf returns the code of err, or ErrCodeInternal
func CodeOf(err error) Code {
	return As(err).Code
}

// HasCode reports whether err carries code
func HasCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
