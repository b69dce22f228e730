package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError records a non-success HTTP response from an external service.
// It unwraps to the marker matching its status so callers can classify it
// with errors.Is: 429 is ErrRateLimited, 408 and 5xx are ErrTransient, 404 is
// ErrNotFound, 401/403 are ErrConfiguration and other 4xx are ErrValidation.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	service := strings.TrimSpace(e.Service)
	if service == "" {
		service = "request"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: http %d", service, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", service, e.StatusCode, body)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode >= http.StatusInternalServerError:
		return ErrTransient
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrConfiguration
	default:
		return ErrValidation
	}
}

// NewStatusError builds a StatusError from a response status, body and
// Retry-After header value.
func NewStatusError(service string, status int, body []byte, retryAfter string) *StatusError {
	delay, _ := ParseRetryAfter(retryAfter)
	return &StatusError{
		Service:    service,
		StatusCode: status,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: delay,
	}
}

// StatusCode extracts the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// RetryAfter extracts the server-provided retry hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RetryAfter
	}
	return 0
}

// ClassifyTransport tags a failed round trip. Per-call deadlines and network
// timeouts become ErrTimeout, other network failures ErrTransient. Caller
// cancellation is returned untouched so it is never retried.
func ClassifyTransport(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrTimeout, service, "request", "deadline exceeded", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(ErrTimeout, service, "request", "network timeout", err)
		}
		return Wrap(ErrTransient, service, "request", "network error", err)
	}
	return Wrap(ErrTransient, service, "request", "transport error", err)
}

// ParseRetryAfter interprets a Retry-After header in seconds or HTTP-date form.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
