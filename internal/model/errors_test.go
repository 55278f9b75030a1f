package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err:  &APIError{Code: "TEST_ERROR", Message: "something went wrong"},
			want: "TEST_ERROR: something went wrong",
		},
		{
			name: "with wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
				Err:     errors.New("underlying cause"),
			},
			want: "TEST_ERROR: something went wrong (underlying cause)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NewNotFoundError("cart item"), "NOT_FOUND", 404, ErrNotFound},
		{"validation", NewValidationError("quantity", "must be at least 1"), "VALIDATION_ERROR", 400, ErrInvalidRequest},
		{"unauthorized", NewUnauthorizedError("token expired"), "UNAUTHORIZED", 401, ErrUnauthorized},
		{"upstream", NewUpstreamError("Leaf Shop API", errors.New("connection refused")), "UPSTREAM_ERROR", 502, ErrUpstreamError},
		{"rate limited", NewRateLimitError("Leaf Shop API"), "RATE_LIMITED", 429, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.status)
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("error should wrap %v", tt.sentinel)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("quantity", "must be at least 1")
	if err.Message != "invalid quantity: must be at least 1" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestIsNetworkFailure(t *testing.T) {
	wrapped := fmt.Errorf("fetching cart: %w", NewUpstreamError("Leaf Shop API", errors.New("timeout")))

	if !IsNetworkFailure(wrapped) {
		t.Error("wrapped upstream error should be a network failure")
	}
	if !IsNetworkFailure(NewRateLimitError("Leaf Shop API")) {
		t.Error("rate limit should be a network failure")
	}
	if IsNetworkFailure(NewValidationError("quantity", "bad")) {
		t.Error("validation error is not a network failure")
	}
	if IsNetworkFailure(nil) {
		t.Error("nil is not a network failure")
	}
}

func TestNewInternalError(t *testing.T) {
	cause := errors.New("boom")
	err := NewInternalError(cause)

	if err.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", err.StatusCode)
	}
	if !errors.Is(err, cause) {
		t.Error("internal error should wrap its cause")
	}
}
