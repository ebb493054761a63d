// Package apierr defines the closed error taxonomy for the price backend
// and its mapping to wire-level status/code pairs.
//
// Every error surfaced to a caller is one of the kinds below. Internal
// error text never reaches the wire for unknown errors, and API keys are
// masked before they appear in any message.
package apierr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error into the backend's taxonomy.
type Kind string

const (
	// KindValidation covers malformed input: unsupported symbol, empty
	// symbol list, empty API key.
	KindValidation Kind = "validation"

	// KindAuthentication covers missing, unknown, or disabled API keys.
	KindAuthentication Kind = "authentication"

	// KindRateLimit covers requests rejected by the per-key limiter.
	KindRateLimit Kind = "rate_limit"

	// KindExternalService covers upstream fetches that exhausted retries
	// or returned unusable data.
	KindExternalService Kind = "external_service"

	// KindInternal covers store failures and unexpected defects.
	KindInternal Kind = "internal"
)

// Error is the error type carried through the serving pipeline.
type Error struct {
	Kind    Kind
	Message string

	// RetryAfter is set for rate limit errors: the remaining time in
	// the current minute bucket.
	RetryAfter time.Duration

	// Details holds optional machine-readable context (never internal
	// exception text).
	Details map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a validation error with the given user-facing message.
func Validation(message string, details map[string]any) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// Authentication returns an authentication error.
func Authentication(message string) *Error {
	if message == "" {
		message = "Invalid API key"
	}
	return &Error{Kind: KindAuthentication, Message: message}
}

// RateLimited returns a rate limit error carrying a retry-after hint.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Message:    "Rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// ExternalService returns an upstream failure error wrapping its cause.
func ExternalService(message string, err error) *Error {
	return &Error{Kind: KindExternalService, Message: message, Err: err}
}

// Internal returns an internal error wrapping its cause. The message on
// the wire is generic; the cause is only for logs.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// KindOf extracts the Kind from any error. Errors outside the taxonomy
// classify as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns the taxonomy error inside err, wrapping unknown errors
// as internal so no call site surfaces raw error text.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
