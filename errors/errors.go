// Package errors provides the error taxonomy shared by the geminilive packages.
//
// ContextualError captures the component and operation that failed, plus an
// optional status code and details. Sentinel kinds classify failures so callers
// can branch with errors.Is regardless of how deeply the cause is wrapped.
//
// Usage:
//
//	err := errors.Wrap(errors.ErrTransport, "live", "SendAudio", writeErr)
//	if errors.Is(err, errors.ErrTransport) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Failure kinds.
var (
	// ErrInvalidEndpoint indicates the service URL could not be constructed.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrTransport indicates a connect, send or receive failure on the duplex stream.
	ErrTransport = errors.New("transport error")

	// ErrProtocolDecode indicates a malformed or unexpectedly shaped inbound payload.
	ErrProtocolDecode = errors.New("protocol decode error")

	// ErrUploadFailed indicates a media upload was rejected.
	ErrUploadFailed = errors.New("upload failed")

	// ErrFileNotReady indicates an uploaded file never reached the active state.
	ErrFileNotReady = errors.New("file not ready")

	// ErrGenerationFailed indicates the service reported a failed generation.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidResponse indicates a response body that could not be interpreted.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrRequestFailed indicates a non-success status from a request/response call.
	ErrRequestFailed = errors.New("request failed")
)

// ContextualError is a structured error that records where and why a failure occurred.
type ContextualError struct {
	// Component identifies the package that produced the error (e.g. "live", "transport").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP or close-frame status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Wrap creates a ContextualError whose cause matches both kind and cause under errors.Is.
// A nil cause yields an error that matches only kind.
func Wrap(kind error, component, operation string, cause error) *ContextualError {
	if cause == nil {
		return New(component, operation, kind)
	}
	return New(component, operation, fmt.Errorf("%w: %w", kind, cause))
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns the same error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the same error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// StatusCode extracts the status code of the first ContextualError in err's chain.
func StatusCode(err error) int {
	var ce *ContextualError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}

// IsRetryable reports whether err is worth another attempt.
// Authentication and malformed-request rejections are permanent; everything else,
// including transport failures and 429/5xx statuses, may be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidEndpoint) {
		return false
	}
	switch StatusCode(err) {
	case 400, 401, 403, 404:
		return false
	}
	return true
}

// Is reports whether any error in err's chain matches target. It mirrors the
// standard library so callers need only one errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
