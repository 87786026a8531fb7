// Package errors provides the application error type used across the
// pipeline. Errors carry a machine-readable code, a message a DM can act on,
// and an HTTP status for the web layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried by the caller.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// As extracts an *AppError from err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}

// --- Pipeline error constructors ---

// TranscriptionFailed creates an AppError for a failed transcription run.
// The reason should name what went wrong in non-engineer terms.
func TranscriptionFailed(reason string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTranscriptionFailed, Message: fmt.Sprintf("transcription failed: %s", reason),
		HTTPStatus: http.StatusBadGateway, Retryable: false, Cause: cause,
	}
}

// SpeakerSubmissionInvalid creates an AppError for a rejected speaker submission.
func SpeakerSubmissionInvalid(reason string) *AppError {
	return &AppError{
		Code: ErrCodeSpeakerSubmissionInvalid, Message: fmt.Sprintf("speaker submission rejected: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// RecapGenerationFailed creates an AppError for a failed recap generation.
func RecapGenerationFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeRecapGenerationFailed, Message: "recap generation failed",
		HTTPStatus: http.StatusBadGateway, Retryable: false, Cause: cause,
	}
}

// WikiPushFailed creates an AppError for a failed wiki push.
func WikiPushFailed(reason string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeWikiPushFailed, Message: fmt.Sprintf("wiki push failed: %s", reason),
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// PersistenceFailed creates an AppError for a failed session store write.
func PersistenceFailed(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePersistenceFailed, Message: fmt.Sprintf("could not save session (%s)", operation),
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// --- Generic constructors ---

// NotFound creates an AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	msg := fmt.Sprintf("%s not found", resource)
	if id != "" {
		msg = fmt.Sprintf("%s %q not found", resource, id)
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: msg,
		HTTPStatus: http.StatusNotFound, Retryable: false,
	}
}

// Conflict creates an AppError for a conflict with the current state.
func Conflict(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: reason,
		HTTPStatus: http.StatusConflict, Retryable: false,
	}
}

// InvalidInput creates an AppError for invalid input.
func InvalidInput(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Internal creates an AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
