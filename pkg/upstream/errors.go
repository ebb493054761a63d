package upstream

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the client.
var (
	// ErrRetryExhausted is returned when all fetch attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled
	// during the retry loop.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoValidEntries is returned when the provider responded but no
	// requested symbol passed schema validation.
	ErrNoValidEntries = errors.New("no valid price entries in response")
)

// ErrorClass classifies a fetch failure for retry decisions and metrics.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassServer represents upstream 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents upstream 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassMalformed represents empty or unparseable response bodies.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassClient represents upstream 4xx responses other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassContract represents responses that parse but fail schema
	// validation for every requested symbol, which indicates a provider
	// contract change rather than transient corruption.
	ErrorClassContract ErrorClass = "contract"
)

// FetchError is a classified upstream failure.
type FetchError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the class is worth retrying. Permanent
// failures (plain 4xx, contract changes) fail the fetch immediately.
func (c ErrorClass) Transient() bool {
	switch c {
	case ErrorClassNetwork, ErrorClassServer, ErrorClassRateLimit, ErrorClassMalformed:
		return true
	default:
		return false
	}
}

// classOf extracts the ErrorClass from an error, defaulting to network
// for unclassified failures (raw transport errors).
func classOf(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ErrorClassNetwork
}
