package gemini

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryPolicy - bounded retry configuration for one service call
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy - 3 attempts with linear 5s/10s backoff, matching
// the observed quota refill behavior of the Gemini API
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
	}
}

// Attempt - record of a single call attempt, kept for the audit trail
type Attempt struct {
	Number  int
	Elapsed time.Duration
	Err     error
}

// sleepFn - cancellable sleep between attempts, swapped out in tests
var sleepFn = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CallWithRetry - run fn up to MaxAttempts times. Rate-limit and
// transient errors back off linearly (BaseDelay * attempt number) and
// retry; fatal errors return immediately; exhaustion wraps the last
// retryable error. Every attempt is returned so callers can record it.
func CallWithRetry(ctx context.Context, policy RetryPolicy, fn func(context.Context) (*TransformResult, error)) (*TransformResult, []Attempt, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	attempts := make([]Attempt, 0, policy.MaxAttempts)
	var lastErr *ServiceError

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		start := time.Now()
		result, err := fn(ctx)
		record := Attempt{Number: attempt, Elapsed: time.Since(start)}

		if err == nil {
			attempts = append(attempts, record)
			return result, attempts, nil
		}

		serviceErr := Classify(err)
		record.Err = serviceErr
		attempts = append(attempts, record)

		if !serviceErr.Retryable() {
			return nil, attempts, serviceErr
		}
		lastErr = serviceErr

		if attempt < policy.MaxAttempts {
			delay := policy.BaseDelay * time.Duration(attempt)
			log.Printf("⏳ [Gemini Retry] Attempt %d/%d failed (%s), retrying in %s...",
				attempt, policy.MaxAttempts, serviceErr.Kind, delay)
			if sleepErr := sleepFn(ctx, delay); sleepErr != nil {
				return nil, attempts, &ServiceError{Kind: KindCancelled, Msg: "cancelled during backoff", Err: sleepErr}
			}
		}
	}

	return nil, attempts, &ServiceError{
		Kind: KindRetriesExhausted,
		Msg:  fmt.Sprintf("all %d attempts failed", policy.MaxAttempts),
		Err:  lastErr,
	}
}
