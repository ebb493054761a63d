package apierr

import (
	"net/http"
	"time"
)

// Stable machine-readable codes surfaced in error responses.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	CodeExternalService = "EXTERNAL_API_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

// Response is the wire-level error body. Every error response carries a
// stable code, a human-readable message, a timestamp, and the request id.
type Response struct {
	Error      string         `json:"error"`
	Code       string         `json:"code"`
	Timestamp  string         `json:"timestamp"`
	RequestID  string         `json:"requestId"`
	RetryAfter int            `json:"retryAfter,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindExternalService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code maps an error kind to its stable wire code.
func Code(kind Kind) string {
	switch kind {
	case KindValidation:
		return CodeValidation
	case KindAuthentication:
		return CodeUnauthorized
	case KindRateLimit:
		return CodeRateLimited
	case KindExternalService:
		return CodeExternalService
	default:
		return CodeInternal
	}
}

// Map converts any error into its HTTP status and wire body. Unknown
// errors map to a generic internal response so no internal text leaks.
func Map(err error, requestID string, now time.Time) (int, Response) {
	e := AsError(err)

	resp := Response{
		Error:     e.Message,
		Code:      Code(e.Kind),
		Timestamp: now.UTC().Format(time.RFC3339),
		RequestID: requestID,
		Details:   e.Details,
	}

	if e.Kind == KindRateLimit {
		retryAfter := int(e.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		resp.RetryAfter = retryAfter
	}

	return HTTPStatus(e.Kind), resp
}
