package builder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hulrap/sandwichcore"
)

func tipAsBigInt(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// GasMode selects how aggressively an EVM strategy bids priority fee above
// base fee.
type GasMode string

const (
	GasConservative GasMode = "conservative"
	GasAdaptive     GasMode = "adaptive"
	GasAggressive   GasMode = "aggressive"
)

// baseMultiplier implements spec.md §4.7's `base_multiplier[mode]` table:
// base priority fee = base_fee_next × (1 + base_multiplier[mode]).
var baseMultiplier = map[GasMode]float64{
	GasConservative: 0.1,
	GasAdaptive:     0.3,
	GasAggressive:   0.6,
}

// tenNativeEquivalent is the spec.md §4.7 "trade size ≥ 10 ETH-equivalent"
// threshold, expressed in wei; BSC is also 18-decimal wei-denominated so the
// same constant applies there too.
var tenNativeEquivalent = new(big.Int).Mul(big.NewInt(10), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// EVMGasStrategy implements spec.md §4.7's EVM gas/tip bidding: a
// max_gas_budget derived from the opportunity's own profit margin, a base
// priority fee scaled by mode, and a competition multiplier assembled from
// the mechanically available signals (profit_bps, trade size) plus an
// optional externally observed congestion component. The final bid is
// capped at the budget; bids that would still exceed it after capping are
// rejected at build time, per spec.md §4.7's closing rule.
type EVMGasStrategy struct {
	Mode GasMode

	GasLimit         uint64         // gas_limit for the front-run/back-run pair, used to convert a wei bid into a budget check
	MinProfitMargin  float64        // default 0.3 per spec.md §4.7
	CongestionSignal func() float64 // optional: relay congestion reading in [0,1]; nil treated as 0 (no congestion data available)
}

// Plan implements Strategy.
func (s EVMGasStrategy) Plan(ctx context.Context, opp *sandwichcore.Opportunity, baseFee uint64) (GasPlan, error) {
	margin := s.MinProfitMargin
	if margin <= 0 {
		margin = 0.3
	}
	gasLimit := s.GasLimit
	if gasLimit == 0 {
		gasLimit = 300_000
	}

	// marginBps converts the float margin to an integer-safe basis-point
	// scale so max_gas_budget and the final budget check are exact big.Int
	// arithmetic, not Float64()-rounded approximations that could let a bid
	// slip a wei past the invariant this check exists to enforce.
	marginBps := int64(margin * 10000)
	maxBudget := new(big.Int).Mul(opp.EstimatedProfitNative, big.NewInt(10000-marginBps))
	maxBudget.Div(maxBudget, big.NewInt(10000))
	if maxBudget.Sign() < 0 {
		maxBudget.SetInt64(0)
	}
	maxPerGas := new(big.Int).Div(maxBudget, new(big.Int).SetUint64(gasLimit))

	base := float64(baseFee) * (1.0 + baseMultiplier[s.Mode])

	competition := 1.0
	if profitBps(opp) >= 500 { // 5%
		competition += 0.5
	}
	if opp.Victim.AmountIn != nil && opp.Victim.AmountIn.Cmp(tenNativeEquivalent) >= 0 {
		competition += 0.3
	}
	if s.CongestionSignal != nil {
		congestion := s.CongestionSignal()
		if congestion < 0 {
			congestion = 0
		} else if congestion > 1 {
			congestion = 1
		}
		competition += congestion // up to +1.0
	}
	if competition > 3.0 {
		competition = 3.0
	}

	bidFloat := base * competition
	if bidFloat < 0 {
		bidFloat = 0
	}
	bid, _ := big.NewFloat(bidFloat).Int(nil) // truncates toward zero, never rounds up

	if bid.Cmp(maxPerGas) > 0 {
		bid = maxPerGas
	}

	totalCost := new(big.Int).Mul(bid, new(big.Int).SetUint64(gasLimit))
	if totalCost.Cmp(maxBudget) > 0 {
		return GasPlan{}, fmt.Errorf("builder: gas bid %s*%d exceeds profit margin budget", bid, gasLimit)
	}

	return GasPlan{FrontRunPriorityFee: bid.String(), BackRunPriorityFee: bid.String()}, nil
}

// profitBps estimates the opportunity's profit in basis points of the
// victim's trade size, the signal spec.md §4.7 names as
// "profit_bps ≥ 5% (+0.5)".
func profitBps(opp *sandwichcore.Opportunity) int64 {
	if opp.Victim.AmountIn == nil || opp.Victim.AmountIn.Sign() == 0 {
		return 0
	}
	bps := new(big.Int).Mul(opp.EstimatedProfitNative, big.NewInt(10000))
	bps.Div(bps, opp.Victim.AmountIn)
	if !bps.IsInt64() {
		return 10000
	}
	return bps.Int64()
}
