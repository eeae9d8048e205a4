package link

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fixedExponential implements backoff.BackOff with the exact delay
// sequence the spec's reconnect invariant requires: min(1000*2^k, 30000)
// ms for attempt k, with no jitter. cenkalti's stock ExponentialBackOff
// applies randomization by default, which would make scenario 4's
// deterministic delays untestable; this type keeps the cenkalti
// interface (so callers and tests can use backoff.Retry /
// backoff.PermanentError uniformly) while pinning the formula.
type fixedExponential struct {
	attempt    int
	maxRetries int // -1 means unlimited
}

func newFixedExponential(maxRetries int) *fixedExponential {
	return &fixedExponential{maxRetries: maxRetries}
}

// NextBackOff returns the delay before the next attempt, or
// backoff.Stop once maxRetries has been reached.
func (b *fixedExponential) NextBackOff() time.Duration {
	if b.maxRetries >= 0 && b.attempt >= b.maxRetries {
		return backoff.Stop
	}
	// 2^5 * 1000ms already exceeds the 30s ceiling, so capping the
	// exponent here avoids an undefined shift for very large attempt
	// counts under an unlimited retry budget.
	exp := b.attempt
	if exp > 5 {
		exp = 5
	}
	d := time.Duration(1000*(int64(1)<<uint(exp))) * time.Millisecond
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	b.attempt++
	return d
}

// Reset zeroes the attempt counter, called on every successful connect.
func (b *fixedExponential) Reset() {
	b.attempt = 0
}
