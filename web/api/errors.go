package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/screwyprof/airdrop/airdrop"
)

// Sentinel errors for error classification
var (
	ErrBadRequest          = errors.New(http.StatusText(http.StatusBadRequest))
	ErrInternalServerError = errors.New(http.StatusText(http.StatusInternalServerError))
)

// Error represents a structured API error response
type Error struct {
	cause    error  // The original error (for logging/debugging)
	message  string // Safe user-facing message
	httpCode int    // HTTP status code (also used as API error code)
}

// HTTPCode returns the HTTP status code for this error
func (e *Error) HTTPCode() int {
	return e.httpCode
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.message
}

// Unwrap returns the underlying cause for error unwrapping
func (e *Error) Unwrap() error {
	return e.cause
}

// Is implements error checking for sentinel errors
func (e *Error) Is(target error) bool {
	return errors.Is(e.cause, target)
}

// Cause returns the original error for logging purposes
func (e *Error) Cause() error {
	return e.cause
}

// MarshalJSON implements json.Marshaler interface
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"code":    e.httpCode,
		"message": e.message,
	})
}

// 4xx errors carry the cause's message; it names only what the caller sent.

func BadRequest(cause error) *Error {
	return clientError(cause, http.StatusBadRequest)
}

func Forbidden(cause error) *Error {
	return clientError(cause, http.StatusForbidden)
}

func NotFound(cause error) *Error {
	return clientError(cause, http.StatusNotFound)
}

func Conflict(cause error) *Error {
	return clientError(cause, http.StatusConflict)
}

func UnprocessableEntity(cause error) *Error {
	return clientError(cause, http.StatusUnprocessableEntity)
}

func TooManyRequests(cause error) *Error {
	return clientError(cause, http.StatusTooManyRequests)
}

func InternalServerError(cause error) *Error {
	return &Error{
		cause:    cause,
		message:  http.StatusText(http.StatusInternalServerError), // Never expose internal error details
		httpCode: http.StatusInternalServerError,
	}
}

func clientError(cause error, code int) *Error {
	return &Error{
		cause:    cause,
		message:  cause.Error(),
		httpCode: code,
	}
}

// Wrap transforms any error into a safe API error.
// Distribution rejections map to client errors; collaborator failures stay internal.
// If the error is already an API error, it returns it unchanged.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, airdrop.ErrInvalidAmount):
		return BadRequest(err)
	case errors.Is(err, airdrop.ErrOnlyGovernor):
		return Forbidden(err)
	case errors.Is(err, airdrop.ErrNotInMerkle):
		return UnprocessableEntity(err)
	case errors.Is(err, airdrop.ErrExpired),
		errors.Is(err, airdrop.ErrNotExpired),
		errors.Is(err, airdrop.ErrAlreadyClaimed),
		errors.Is(err, airdrop.ErrInsufficientPool),
		errors.Is(err, airdrop.ErrTransferRefused):
		return Conflict(err)
	default:
		return InternalServerError(err)
	}
}
