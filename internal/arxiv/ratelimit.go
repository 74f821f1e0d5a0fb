package arxiv

import (
	"context"
	"sync"
	"time"
)

// Limiter serializes upstream calls process-wide: every fetch path shares one
// instance, and the lock is held across the sleep so concurrent callers queue
// single-file at the network boundary.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

func NewLimiter(minInterval time.Duration) *Limiter {
	return &Limiter{minInterval: minInterval}
}

// Wait blocks until at least minInterval has elapsed since the previous call
// released, then records the current time as the new baseline.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		if wait := l.minInterval - time.Since(l.last); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	l.last = time.Now()
	return nil
}
