package services_test

import (
	"errors"
	"strings"
	"testing"

	"paradiso/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "confirm", "generate", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"confirm", "generate", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", services.Wrap(services.ErrTransient, "extract", "generate", "503", nil), true},
		{"rate limited", services.Wrap(services.ErrRateLimited, "confirm", "generate", "429", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "extract", "generate", "deadline", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "extract", "generate", "bad request", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "backend", "init", "missing key", nil), false},
		{"plain", errors.New("plain"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRateLimited(t *testing.T) {
	if !services.RateLimited(services.Wrap(services.ErrRateLimited, "", "", "429", nil)) {
		t.Fatal("expected rate limit marker to be detected")
	}
	if services.RateLimited(services.Wrap(services.ErrTransient, "", "", "500", nil)) {
		t.Fatal("transient error should not be a rate limit")
	}
}
