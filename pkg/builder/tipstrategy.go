package builder

import (
	"context"
	"math/big"

	"github.com/hulrap/sandwichcore"
)

// SolanaTipStrategy implements spec.md §4.7's Jito tip formula:
// `tip_lamports = floor(profit_lamports × tip_fraction × congestion_multiplier)`,
// capped by MaxTipLamports.
type SolanaTipStrategy struct {
	ProfitShareBps uint32 // tip_fraction in bps, default 2000 (0.2) per spec.md §4.7
	MinTipLamports uint64
	MaxTipLamports uint64 // 0 means uncapped

	// CongestionMultiplier optionally reports recent network congestion as
	// a multiplier in [1,3], sourced from getRecentPerformanceSamples. Nil
	// is treated as the neutral 1.0 (no congestion data available).
	CongestionMultiplier func() float64
}

// Plan implements Strategy. baseFee is ignored; Solana has no base-fee
// concept, Jito bundles are prioritized purely by tip.
func (s SolanaTipStrategy) Plan(ctx context.Context, opp *sandwichcore.Opportunity, baseFee uint64) (GasPlan, error) {
	share := s.ProfitShareBps
	if share == 0 {
		share = 2000 // 20% default per spec.md §4.7
	}

	congestion := 1.0
	if s.CongestionMultiplier != nil {
		congestion = s.CongestionMultiplier()
		if congestion < 1.0 {
			congestion = 1.0
		} else if congestion > 3.0 {
			congestion = 3.0
		}
	}

	tip := new(big.Float).SetInt(opp.EstimatedProfitNative)
	tip.Mul(tip, big.NewFloat(float64(share)/10000.0))
	tip.Mul(tip, big.NewFloat(congestion))
	tipInt, _ := tip.Int(nil) // floor, per spec.md §4.7

	minTip := s.MinTipLamports
	if minTip == 0 {
		minTip = 1000
	}
	tipLamports := minTip
	if tipInt.IsUint64() && tipInt.Uint64() > minTip {
		tipLamports = tipInt.Uint64()
	}
	if s.MaxTipLamports > 0 && tipLamports > s.MaxTipLamports {
		tipLamports = s.MaxTipLamports
	}

	return GasPlan{TipAmount: tipLamports}, nil
}
