package builder

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hulrap/sandwichcore"
)

func opportunityWithProfit(profit, victimAmountIn *big.Int) *sandwichcore.Opportunity {
	return &sandwichcore.Opportunity{
		EstimatedProfitNative: profit,
		Victim: sandwichcore.PendingSwap{
			AmountIn: victimAmountIn,
		},
	}
}

func TestEVMGasStrategy_bidNeverExceedsProfitMargin(t *testing.T) {
	opp := opportunityWithProfit(big.NewInt(1_000_000_000_000_000), big.NewInt(1_000_000_000_000_000_000)) // 0.001 ETH profit, 1 ETH trade
	s := EVMGasStrategy{Mode: GasAdaptive, GasLimit: 300_000, MinProfitMargin: 0.3}

	plan, err := s.Plan(context.Background(), opp, 30_000_000_000) // 30 gwei base fee
	require.NoError(t, err)

	bid, ok := new(big.Int).SetString(plan.FrontRunPriorityFee, 10)
	require.True(t, ok)
	totalCost := new(big.Int).Mul(bid, big.NewInt(300_000))
	maxBudget := new(big.Int).Mul(opp.EstimatedProfitNative, big.NewInt(7))
	maxBudget.Div(maxBudget, big.NewInt(10)) // profit * (1 - 0.3)

	require.True(t, totalCost.Cmp(maxBudget) <= 0, "gas bid * gas_limit must never exceed profit * (1 - min_profit_margin)")
}

func TestEVMGasStrategy_competitionMultiplierCappedAtThree(t *testing.T) {
	// Large profit relative to trade size (>5% => +0.5) and large trade size
	// (>=10 ETH-equivalent => +0.3) plus full congestion (+1.0) sum to 2.8, so
	// the bid must stay within the 3.0 cap: at most base fee x 1.6
	// (aggressive) x 3.0 = 48 gwei.
	opp := opportunityWithProfit(big.NewInt(2_000_000_000_000_000_000), new(big.Int).Mul(big.NewInt(20), big.NewInt(1_000_000_000_000_000_000)))
	s := EVMGasStrategy{
		Mode:             GasAggressive,
		GasLimit:         300_000,
		MinProfitMargin:  0.3,
		CongestionSignal: func() float64 { return 2.0 }, // deliberately out of [0,1], must clamp
	}

	plan, err := s.Plan(context.Background(), opp, 10_000_000_000)
	require.NoError(t, err)
	require.NotEmpty(t, plan.FrontRunPriorityFee)
	bid, ok := new(big.Int).SetString(plan.FrontRunPriorityFee, 10)
	require.True(t, ok)
	require.True(t, bid.Cmp(big.NewInt(48_000_000_000)) <= 0, "competition multiplier must not push the bid past base x 1.6 x 3.0")
}

func TestSolanaTipStrategy_tipFractionAndCongestionMultiplier(t *testing.T) {
	opp := opportunityWithProfit(big.NewInt(1_000_000_000), nil) // 1 SOL profit in lamports
	s := SolanaTipStrategy{
		ProfitShareBps:       2000, // 20%
		CongestionMultiplier: func() float64 { return 1.5 },
	}

	plan, err := s.Plan(context.Background(), opp, 0)
	require.NoError(t, err)

	// 1_000_000_000 * 0.2 * 1.5 = 300_000_000
	require.Equal(t, uint64(300_000_000), plan.TipAmount)
}

func TestSolanaTipStrategy_capsAtMaxTipLamports(t *testing.T) {
	opp := opportunityWithProfit(big.NewInt(1_000_000_000_000), nil)
	s := SolanaTipStrategy{ProfitShareBps: 2000, MaxTipLamports: 1_000}

	plan, err := s.Plan(context.Background(), opp, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), plan.TipAmount)
}
