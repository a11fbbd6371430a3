// Package relay submits Bundles to private order-flow relays and reports
// submission outcomes, retrying transient failures with the shared backoff
// policy rather than each transport inventing its own.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/internal/retry"
)

// Submitter sends one Bundle's transactions to a specific relay and returns
// the relay's request id for later correlation with landing outcomes.
type Submitter interface {
	Name() string
	Submit(ctx context.Context, bundle *sandwichcore.Bundle) (requestID string, err error)
}

// SubmitWithRetry wraps a Submitter with the standard exponential backoff
// policy (§4.8: base 100ms, factor 2, jitter 25%, 3 attempts) and returns one
// RelaySubmission record per attempt, so a caller can report every retry
// against a single bundle.
func SubmitWithRetry(ctx context.Context, s Submitter, bundle *sandwichcore.Bundle) ([]sandwichcore.RelaySubmission, error) {
	var submissions []sandwichcore.RelaySubmission
	var finalErr error

	err := retry.Do(ctx, retry.DefaultPolicy(), func(attempt int) error {
		start := time.Now()
		requestID, err := s.Submit(ctx, bundle)
		latency := time.Since(start)

		submissions = append(submissions, sandwichcore.RelaySubmission{
			BundleID:  bundle.ID,
			RelayName: s.Name(),
			RequestID: requestID,
			Attempt:   attempt,
			LatencyMS: latency.Milliseconds(),
			Err:       err,
		})
		finalErr = err
		return err
	})
	if err != nil {
		return submissions, fmt.Errorf("relay: submit to %s: %w", s.Name(), err)
	}
	return submissions, finalErr
}

// Router holds one Submitter per relay, in the priority order the chain's
// configuration names them. It does not submit anything itself; callers
// iterate Submitters and run SubmitWithRetry on each.
type Router struct {
	submitters []Submitter
}

// NewRouter builds a Router over submitters, submitted to in order; callers
// that want a true race should invoke SubmitWithRetry per-submitter
// concurrently themselves and take the Router's ordering as a priority list.
func NewRouter(submitters ...Submitter) *Router {
	return &Router{submitters: submitters}
}

// Submitters returns the configured relay submitters in priority order.
func (r *Router) Submitters() []Submitter { return r.submitters }
