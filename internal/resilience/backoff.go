// Package resilience provides transient-error classification and capped
// geometric backoff for polling external services.
package resilience

import (
	"context"
	"time"
)

const (
	// DefaultPollBase is the starting wait between poll attempts.
	DefaultPollBase = 1 * time.Second
	// DefaultPollCap bounds how far the wait can grow under failures.
	DefaultPollCap = 20 * time.Second
)

// Backoff tracks the wait interval for a poll loop. Each failure doubles
// the interval up to the cap; a success resets it to the base. The zero
// value is not usable — construct with NewBackoff.
type Backoff struct {
	base time.Duration
	cap  time.Duration
	next time.Duration
}

// NewBackoff creates a Backoff starting at base and capped at cap.
// Non-positive values fall back to the defaults.
func NewBackoff(base, cap time.Duration) *Backoff {
	if base <= 0 {
		base = DefaultPollBase
	}
	if cap <= 0 {
		cap = DefaultPollCap
	}
	if cap < base {
		cap = base
	}
	return &Backoff{base: base, cap: cap, next: base}
}

// Interval returns the wait before the next attempt.
func (b *Backoff) Interval() time.Duration {
	return b.next
}

// Fail doubles the interval, capped. Intervals under failure are therefore
// non-decreasing: base, 2*base, 4*base, ..., cap, cap.
func (b *Backoff) Fail() {
	b.next *= 2
	if b.next > b.cap {
		b.next = b.cap
	}
}

// Succeed resets the interval to the base.
func (b *Backoff) Succeed() {
	b.next = b.base
}

// Sleep waits for the current interval or until ctx is done, whichever
// comes first.
func (b *Backoff) Sleep(ctx context.Context) error {
	timer := time.NewTimer(b.next)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
