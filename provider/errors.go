package provider

import (
	"context"
	"errors"
	"fmt"
)

// ProviderError is the base type for backend failures. The concrete types below
// carry the classification the orchestrator uses for fallback decisions:
// transport, authentication, rate-limit, and malformed-response failures all
// advance to the next configured endpoint.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] %s (status=%d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// TransportError covers connection failures, timeouts, and 5xx responses.
type TransportError struct{ ProviderError }

// AuthError covers rejected or missing credentials (401/403).
type AuthError struct{ ProviderError }

// RateLimitError covers 429 responses and quota exhaustion.
type RateLimitError struct{ ProviderError }

// MalformedResponseError covers responses the engine could not interpret.
type MalformedResponseError struct{ ProviderError }

// FromStatusCode maps an HTTP status to the appropriate error type.
func FromStatusCode(providerName string, status int, message string, cause error) error {
	base := ProviderError{Provider: providerName, StatusCode: status, Message: message, Cause: cause}
	switch {
	case status == 401 || status == 403:
		return &AuthError{base}
	case status == 429:
		return &RateLimitError{base}
	case status >= 500 || status == 408:
		return &TransportError{base}
	default:
		return &TransportError{base}
	}
}

// IsFallback reports whether a failure should advance the orchestrator to
// the next configured endpoint. Cancellation is never a fallback trigger:
// it terminates the session instead.
func IsFallback(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var (
		transport *TransportError
		auth      *AuthError
		rate      *RateLimitError
		malformed *MalformedResponseError
		base      *ProviderError
	)
	switch {
	case errors.As(err, &transport), errors.As(err, &auth),
		errors.As(err, &rate), errors.As(err, &malformed), errors.As(err, &base):
		return true
	}
	// Unknown failures are treated as transport-level: trying the next
	// backend is safe for an idempotent completion request.
	return true
}
