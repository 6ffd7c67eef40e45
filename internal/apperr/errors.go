package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUpstreamUnavailable marks failures talking to an upstream API.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrResponseTooLarge marks an upstream body over the read limit.
var ErrResponseTooLarge = errors.New("response body too large")

// UpstreamError describes a failed upstream request. Status is zero when no
// response was received.
type UpstreamError struct {
	URL    string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s: unexpected status %d", e.URL, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
	}
	return "upstream " + e.URL + ": failed"
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstreamUnavailable}
	}
	return []error{ErrUpstreamUnavailable, e.Err}
}

// Retryable reports whether a later attempt may succeed.
func (e *UpstreamError) Retryable() bool {
	if errors.Is(e.Err, ErrResponseTooLarge) {
		return false
	}
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

func NewUpstream(url string, err error) *UpstreamError {
	return &UpstreamError{URL: url, Err: err}
}

func NewUpstreamStatus(url string, status int) *UpstreamError {
	return &UpstreamError{URL: url, Status: status}
}

// IsRetryable reports whether err carries a retryable upstream failure.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return false
}

type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidation(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}
