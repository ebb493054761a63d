package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"validation", Validation("unsupported symbol", nil), KindValidation},
		{"authentication", Authentication(""), KindAuthentication},
		{"rate_limit", RateLimited(30 * time.Second), KindRateLimit},
		{"external", ExternalService("fetch failed", errors.New("timeout")), KindExternalService},
		{"internal", Internal(errors.New("redis down")), KindInternal},
		{"unknown_error_is_internal", errors.New("surprise"), KindInternal},
		{"wrapped", fmt.Errorf("handler: %w", Authentication("")), KindAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := ExternalService("fetch failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestAuthenticationDefaultMessage(t *testing.T) {
	err := Authentication("")
	if err.Message != "Invalid API key" {
		t.Errorf("Message = %q, want default", err.Message)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAuthentication, http.StatusUnauthorized},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindExternalService, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := HTTPStatus(tt.kind); got != tt.expected {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.expected)
			}
		})
	}
}

func TestMap_RateLimit(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC)
	status, resp := Map(RateLimited(30*time.Second), "req-1", now)

	if status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", status)
	}
	if resp.Code != CodeRateLimited {
		t.Errorf("code = %s, want %s", resp.Code, CodeRateLimited)
	}
	if resp.RetryAfter != 30 {
		t.Errorf("retryAfter = %d, want 30", resp.RetryAfter)
	}
	if resp.RequestID != "req-1" {
		t.Errorf("requestId = %s, want req-1", resp.RequestID)
	}
	if resp.Timestamp != "2024-03-01T12:00:30Z" {
		t.Errorf("timestamp = %s, want RFC3339 UTC", resp.Timestamp)
	}
}

func TestMap_RateLimitMinimumRetryAfter(t *testing.T) {
	_, resp := Map(RateLimited(200*time.Millisecond), "req-1", time.Now())
	if resp.RetryAfter != 1 {
		t.Errorf("retryAfter = %d, want floor of 1", resp.RetryAfter)
	}
}

func TestMap_UnknownErrorDoesNotLeak(t *testing.T) {
	secret := "redis password Hunter2 rejected"
	status, resp := Map(errors.New(secret), "req-2", time.Now())

	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if resp.Code != CodeInternal {
		t.Errorf("code = %s, want %s", resp.Code, CodeInternal)
	}
	if strings.Contains(resp.Error, "Hunter2") {
		t.Error("internal error text must not leak to the wire")
	}
}

func TestMap_Validation(t *testing.T) {
	err := Validation("Unsupported symbols", map[string]any{"symbols": []string{"ZZZZZZZZZZZ"}})
	status, resp := Map(err, "req-3", time.Now())

	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if resp.Details == nil {
		t.Error("details should carry the offending symbols")
	}
}
