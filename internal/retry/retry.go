// Package retry runs an operation under a bounded, fixed-delay retry policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultAttempts is the total number of tries, first attempt included.
	DefaultAttempts = 5
	// DefaultDelay is the fixed wait between tries.
	DefaultDelay = 5 * time.Second
)

// Policy retries an operation up to Attempts times in total, sleeping Delay
// between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, exhausts the
// policy, or ctx is cancelled. The last error is returned on exhaustion.
// notify, when non-nil, is called before each retry with the failed
// attempt's error.
func (p Policy) Do(ctx context.Context, op func() error, notify func(err error, attempt int, wait time.Duration)) error {
	attempts := max(p.Attempts, 1)

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, b, func(err error, wait time.Duration) {
		if notify != nil {
			notify(err, attempt, wait)
		}
	})
}
