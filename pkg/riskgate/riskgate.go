// Package riskgate defines the external risk-approval collaborator contract.
// The Core never implements risk policy itself; it calls out to whatever
// Gate the operator wires in and honors the verdict.
package riskgate

import (
	"context"
	"math/big"

	"github.com/hulrap/sandwichcore"
)

// Verdict is the risk gate's decision on one Opportunity.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictReduce  Verdict = "reduce"
)

// Decision is the full result of a risk evaluation.
type Decision struct {
	Verdict   Verdict
	Reason    sandwichcore.RejectReason // populated when Verdict == VerdictReject
	MaxAmount *big.Int                  // populated when Verdict == VerdictReduce
}

// Gate is the external collaborator that approves, rejects, or caps an
// Opportunity's front-run size before it reaches the builder. A Gate may
// consult portfolio exposure, per-chain capital limits, or anything else
// outside the Core's own view of a single opportunity.
type Gate interface {
	Evaluate(ctx context.Context, opp *sandwichcore.Opportunity) (Decision, error)
}

// AllowAll is a permissive Gate that approves every opportunity unmodified,
// useful for local testing and as the default when no Gate is configured.
type AllowAll struct{}

// Evaluate implements Gate.
func (AllowAll) Evaluate(ctx context.Context, opp *sandwichcore.Opportunity) (Decision, error) {
	return Decision{Verdict: VerdictApprove}, nil
}
