// Package ratelimit gates outbound provider calls with a token bucket that
// refills fully at fixed window boundaries (no proportional trickle).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Defaults match the provider's free-tier burst tolerance.
const (
	DefaultTokens = 10
	DefaultWindow = time.Second

	// minWait bounds how often an exhausted waiter re-checks the bucket.
	minWait = 100 * time.Millisecond
)

// Bucket is a full-reset token bucket: every window the token count snaps
// back to capacity. There is no fairness guarantee across waiters beyond
// the scheduler's own ordering.
type Bucket struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	tokens   int
	resetAt  time.Time

	now func() time.Time
}

// New returns a bucket with the given capacity and refill window.
// Non-positive values fall back to the defaults.
func New(capacity int, window time.Duration) *Bucket {
	if capacity <= 0 {
		capacity = DefaultTokens
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Bucket{
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// Acquire consumes one token, blocking until a token is available or the
// context is done. When the bucket is exhausted it sleeps out the remainder
// of the current window (at least minWait) and retries.
func (b *Bucket) Acquire(ctx context.Context) error {
	for {
		wait, ok := b.tryTake()
		if ok {
			return nil
		}
		if wait < minWait {
			wait = minWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryTake attempts to consume a token. On failure it returns how long until
// the current window resets.
func (b *Bucket) tryTake() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if !now.Before(b.resetAt) {
		b.tokens = b.capacity
		b.resetAt = now.Add(b.window)
	}
	if b.tokens > 0 {
		b.tokens--
		return 0, true
	}
	return b.resetAt.Sub(now), false
}

// Tokens reports the tokens remaining in the current window.
func (b *Bucket) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.now().Before(b.resetAt) {
		return b.capacity
	}
	return b.tokens
}
