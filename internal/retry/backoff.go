// Package retry wraps cenkalti/backoff with the specific exponential policy
// used by the relay submitter: base 100ms, factor 2, +/-25% jitter, capped
// attempt count.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures a bounded exponential backoff run.
type Policy struct {
	BaseDelay   time.Duration
	Factor      float64
	JitterFrac  float64
	MaxAttempts int
}

// DefaultPolicy matches §4.8's retry policy: base 100ms, factor 2, jitter
// +/-25%, cap 3 attempts.
func DefaultPolicy() Policy {
	return Policy{BaseDelay: 100 * time.Millisecond, Factor: 2, JitterFrac: 0.25, MaxAttempts: 3}
}

func (p Policy) backoffFactory() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.Multiplier = p.Factor
	eb.RandomizationFactor = p.JitterFrac
	eb.MaxElapsedTime = 0 // bounded by MaxAttempts via WithMaxRetries below
	return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
}

// Transient classifies every non-nil error as retryable. Do stops early only
// on a backoff.Permanent error, and no call site in this repository wraps
// errors that way, so a relay rejection is retried like a network failure
// until the attempt budget is spent.
func Transient(err error) bool {
	return err != nil
}

// Do runs op with exponential backoff per Policy, stopping early if ctx is
// cancelled or op returns a backoff.Permanent error. It returns the last
// error if all attempts are exhausted.
func Do(ctx context.Context, p Policy, op func(attempt int) error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		return op(attempt)
	}
	return backoff.Retry(wrapped, backoff.WithContext(p.backoffFactory(), ctx))
}
