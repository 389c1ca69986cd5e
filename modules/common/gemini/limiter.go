package gemini

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter - process-wide gate in front of the Gemini API. The external
// quota is global, so every concurrently running pipeline shares one
// Limiter: it bounds in-flight calls and enforces a minimum spacing
// between call starts. This is independent of the per-call retry backoff.
type Limiter struct {
	sem         *semaphore.Weighted
	minInterval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewLimiter - maxConcurrent in-flight calls, minInterval between starts
func NewLimiter(maxConcurrent int, minInterval time.Duration) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		minInterval: minInterval,
	}
}

// Acquire - block until a slot is free and the spacing interval has
// passed. Cancellable; a cancelled wait leaves no slot held.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	wait := l.reserve()
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		l.sem.Release(1)
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Release - return the slot after the call finishes
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// reserve - claim the next start slot on the spacing schedule
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.next.Before(now) {
		l.next = now
	}
	wait := l.next.Sub(now)
	l.next = l.next.Add(l.minInterval)
	return wait
}
