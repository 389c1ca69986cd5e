package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrorKind - failure classes of a generative service call
type ErrorKind string

const (
	KindRateLimited      ErrorKind = "rate_limited"
	KindTransient        ErrorKind = "transient_service_error"
	KindInvalidInput     ErrorKind = "invalid_input"
	KindContentPolicy    ErrorKind = "content_policy_violation"
	KindMalformed        ErrorKind = "malformed_response"
	KindRetriesExhausted ErrorKind = "retries_exhausted"
	KindCancelled        ErrorKind = "cancelled"
)

// ServiceError - typed error for one service call
type ServiceError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable - rate limits and transient failures may be retried, everything
// else aborts immediately
func (e *ServiceError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransient
}

// IsKind - check the kind of any error in the chain
func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}

// KindOf - extract the kind, or empty string for untyped errors
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Classify - map a raw error from the genai SDK or the transport onto the
// taxonomy. Already-classified errors pass through unchanged.
func Classify(err error) *ServiceError {
	if err == nil {
		return nil
	}

	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}

	if errors.Is(err, context.Canceled) {
		return &ServiceError{Kind: KindCancelled, Msg: "request cancelled", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Kind: KindTransient, Msg: "request timed out", Err: err}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return &ServiceError{Kind: KindRateLimited, Msg: "rate limit exceeded", Err: err}
		case apiErr.Code >= 500:
			return &ServiceError{Kind: KindTransient, Msg: fmt.Sprintf("service error %d", apiErr.Code), Err: err}
		case apiErr.Code >= 400:
			return &ServiceError{Kind: KindInvalidInput, Msg: fmt.Sprintf("request rejected with %d", apiErr.Code), Err: err}
		}
	}

	// Fallback on error text, same patterns the API is known to surface
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "429"), strings.Contains(s, "rate limit"), strings.Contains(s, "quota"), strings.Contains(s, "resource_exhausted"):
		return &ServiceError{Kind: KindRateLimited, Msg: "rate limit exceeded", Err: err}
	case strings.Contains(s, "safety"), strings.Contains(s, "blocked"), strings.Contains(s, "prohibited"):
		return &ServiceError{Kind: KindContentPolicy, Msg: "content blocked by safety policy", Err: err}
	case strings.Contains(s, "invalid"), strings.Contains(s, "400"), strings.Contains(s, "unsupported"):
		return &ServiceError{Kind: KindInvalidInput, Msg: "request rejected", Err: err}
	}

	// Unknown transport failures (EOF, connection reset, 5xx text) are
	// treated as transient; the retry bound caps the damage
	return &ServiceError{Kind: KindTransient, Msg: "service call failed", Err: err}
}
