package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// Each classified failure type must satisfy error through the promoted
// method, not shadow it with a field.
var (
	_ error = (*ProviderError)(nil)
	_ error = (*TransportError)(nil)
	_ error = (*AuthError)(nil)
	_ error = (*RateLimitError)(nil)
	_ error = (*MalformedResponseError)(nil)
)

func TestClassifiedTypesFormatThroughErrorInterface(t *testing.T) {
	var err error = &TransportError{ProviderError{Provider: "p", Message: "down"}}
	if err.Error() != "[p] down" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestFromStatusCode(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{401, "auth"},
		{403, "auth"},
		{429, "rate_limit"},
		{500, "transport"},
		{503, "transport"},
		{408, "transport"},
		{418, "transport"},
	}
	for _, tc := range cases {
		err := FromStatusCode("openai", tc.status, "boom", nil)
		got := classify(err)
		if got != tc.want {
			t.Errorf("status %d classified as %s, want %s", tc.status, got, tc.want)
		}
	}
}

func classify(err error) string {
	var auth *AuthError
	var rate *RateLimitError
	var transport *TransportError
	var malformed *MalformedResponseError
	switch {
	case errors.As(err, &auth):
		return "auth"
	case errors.As(err, &rate):
		return "rate_limit"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &transport):
		return "transport"
	}
	return "unknown"
}

func TestIsFallback(t *testing.T) {
	base := ProviderError{Provider: "p", Message: "m"}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"wrapped cancelled", fmt.Errorf("call: %w", context.Canceled), false},
		{"transport", &TransportError{base}, true},
		{"auth", &AuthError{base}, true},
		{"rate limit", &RateLimitError{base}, true},
		{"malformed", &MalformedResponseError{base}, true},
		{"unknown", errors.New("mystery"), true},
	}
	for _, tc := range cases {
		if got := IsFallback(tc.err); got != tc.want {
			t.Errorf("%s: IsFallback = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestErrorMessageFormat(t *testing.T) {
	err := &AuthError{ProviderError{Provider: "anthropic", StatusCode: 401, Message: "invalid key"}}
	want := "[anthropic] invalid key (status=401)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("tcp reset")
	err := &TransportError{ProviderError{Provider: "p", Message: "m", Cause: cause}}
	if !errors.Is(err, cause) {
		t.Error("Unwrap chain does not reach the cause")
	}
}
