package cancel

import (
	"context"
	"log"
)

// Checker - reports whether a running request has been cancelled
type Checker interface {
	IsJobCancelled(requestID string) bool
}

// Probe - build the between-stage cancel check for one request. The
// probe covers both context cancellation and the user-raised flag.
func Probe(ctx context.Context, checker Checker, requestID string) func() bool {
	return func() bool {
		if ctx.Err() != nil {
			return true
		}
		if checker != nil && checker.IsJobCancelled(requestID) {
			log.Printf("🛑 Request %s cancelled by user", requestID)
			return true
		}
		return false
	}
}
