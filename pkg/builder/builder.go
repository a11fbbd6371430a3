// Package builder assembles the front-run/victim/back-run transaction triple
// for a detected Opportunity and advances it through the Bundle state
// machine defined in the root package.
package builder

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/hulrap/sandwichcore"
)

// Signer is the external signing collaborator: it holds keys, the core
// never does. unsignedTx is an unsigned, chain-specific transaction request
// (an *types.Transaction for EVM, a *solana.Transaction for Solana) that the
// builder constructs and hands off opaquely.
type Signer interface {
	Sign(ctx context.Context, chain sandwichcore.Chain, unsignedTx any) ([]byte, string, error)
}

// TxFactory builds the unsigned front-run and back-run transactions for an
// Opportunity. Chain-specific (EVM vs Solana) implementations live in
// sibling files; the builder only orchestrates.
type TxFactory interface {
	FrontRunTx(ctx context.Context, opp *sandwichcore.Opportunity, gas GasPlan) (unsigned any, err error)
	BackRunTx(ctx context.Context, opp *sandwichcore.Opportunity, gas GasPlan) (unsigned any, err error)
}

// GasPlan is the fee/tip parameters a strategy picked for one bundle's pair
// of transactions.
type GasPlan struct {
	FrontRunPriorityFee string // decimal wei or lamports, chain-dependent encoding owned by TxFactory
	BackRunPriorityFee  string
	TipAmount           uint64 // native units, 0 for chains without an explicit validator tip
}

// Strategy computes a GasPlan for an Opportunity given the chain's current
// base fee.
type Strategy interface {
	Plan(ctx context.Context, opp *sandwichcore.Opportunity, baseFee uint64) (GasPlan, error)
}

// Builder assembles Bundles. One Builder serves one chain; the root
// orchestrator holds one per configured chain.
type Builder struct {
	chain    sandwichcore.Chain
	factory  TxFactory
	strategy Strategy
	signer   Signer

	// MinProfitNative/MaxFrontRunFraction re-check spec.md §8 invariant 2 at
	// build time: Resimulate and Risk Gate reduce can change an
	// Opportunity's sizing after detection, so Build guards against ever
	// signing a bundle whose invariants no longer hold.
	MinProfitNative     *big.Int
	MaxFrontRunFraction float64
}

// New builds a Builder for chain.
func New(chain sandwichcore.Chain, factory TxFactory, strategy Strategy, signer Signer) *Builder {
	return &Builder{chain: chain, factory: factory, strategy: strategy, signer: signer}
}

// Build constructs and signs the front-run/back-run legs, splices in the
// victim's already-signed bytes verbatim, and returns a Bundle in state
// Pending, ready for a relay submitter.
func (b *Builder) Build(ctx context.Context, opp *sandwichcore.Opportunity, baseFee uint64, targetBlockOrSlot uint64) (*sandwichcore.Bundle, error) {
	if b.MinProfitNative != nil {
		if err := opp.Validate(b.MinProfitNative, b.MaxFrontRunFraction); err != nil {
			return nil, fmt.Errorf("builder: opportunity invariant check: %w", err)
		}
	}

	plan, err := b.strategy.Plan(ctx, opp, baseFee)
	if err != nil {
		return nil, fmt.Errorf("builder: gas plan: %w", err)
	}

	frontUnsigned, err := b.factory.FrontRunTx(ctx, opp, plan)
	if err != nil {
		return nil, fmt.Errorf("builder: front-run tx: %w", err)
	}
	frontSigned, frontHash, err := b.signer.Sign(ctx, b.chain, frontUnsigned)
	if err != nil {
		return nil, fmt.Errorf("builder: sign front-run: %w", err)
	}

	backUnsigned, err := b.factory.BackRunTx(ctx, opp, plan)
	if err != nil {
		return nil, fmt.Errorf("builder: back-run tx: %w", err)
	}
	backSigned, backHash, err := b.signer.Sign(ctx, b.chain, backUnsigned)
	if err != nil {
		return nil, fmt.Errorf("builder: sign back-run: %w", err)
	}

	now := time.Now().UnixNano()
	bundle := &sandwichcore.Bundle{
		ID:                fmt.Sprintf("%s-%d", opp.ID, now),
		Chain:             b.chain,
		OpportunityID:     opp.ID,
		FrontRun:          sandwichcore.BundleTx{Signed: frontSigned, Hash: frontHash},
		Victim:            sandwichcore.BundleTx{Signed: opp.Victim.Raw, Hash: opp.Victim.TxHash},
		BackRun:           sandwichcore.BundleTx{Signed: backSigned, Hash: backHash},
		TargetBlockOrSlot: targetBlockOrSlot,
		TipAmount:         tipAsBigInt(plan.TipAmount),
		State:             sandwichcore.BundlePending,
		CreatedAt:         now,
	}
	return bundle, nil
}
