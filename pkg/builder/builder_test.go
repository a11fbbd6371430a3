package builder

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hulrap/sandwichcore"
)

func TestBuild_rejectsOpportunityBelowProfitFloorAfterResimulate(t *testing.T) {
	b := New(sandwichcore.ChainEthereum, nil, nil, nil)
	b.MinProfitNative = big.NewInt(1_000_000_000_000_000_000) // 1 ETH floor
	b.MaxFrontRunFraction = 0.3

	opp := &sandwichcore.Opportunity{
		EstimatedProfitNative: big.NewInt(1), // far below the floor, as if Resimulate shrank it post-detection
		FrontRunAmount:        big.NewInt(1),
		Victim: sandwichcore.PendingSwap{
			AmountIn: big.NewInt(1_000_000_000_000_000_000),
		},
	}

	_, err := b.Build(context.Background(), opp, 30_000_000_000, 100)
	require.Error(t, err, "Build must re-check the profit floor/front-run-fraction invariants before signing")
}

func TestBuild_rejectsFrontRunAboveMaxFraction(t *testing.T) {
	b := New(sandwichcore.ChainEthereum, nil, nil, nil)
	b.MinProfitNative = big.NewInt(1)
	b.MaxFrontRunFraction = 0.3

	opp := &sandwichcore.Opportunity{
		EstimatedProfitNative: big.NewInt(1_000_000_000_000_000_000),
		FrontRunAmount:        big.NewInt(999_000_000_000_000_000), // ~1 ETH, far above 0.3 * 1 ETH victim
		Victim: sandwichcore.PendingSwap{
			AmountIn: big.NewInt(1_000_000_000_000_000_000),
		},
	}

	_, err := b.Build(context.Background(), opp, 30_000_000_000, 100)
	require.Error(t, err)
}
