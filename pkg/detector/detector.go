// Package detector turns a validated PendingSwap into a scored Opportunity,
// or a structured RejectReason, by resolving pool and token state and
// handing sizing off to the simulator.
package detector

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/poolcache"
	"github.com/hulrap/sandwichcore/pkg/simulator"
	"github.com/hulrap/sandwichcore/pkg/tokenmeta"
)

// Config carries the risk/profitability floors the detector enforces. These
// come from the operator's configuration, never hardcoded per chain.
type Config struct {
	MinProfitNative     *big.Int
	MinPriority         float64
	MaxTaxBps           uint32
	MaxFrontRunFraction float64
	MaxSlippageBps      uint32

	// MinDetectionSlippageBps is the pre-simulation detection floor: a victim
	// whose own min_amount_out leaves this little room between their
	// unperturbed fill and their floor isn't worth evaluating further,
	// because no front-run size can fit before pushing them into a revert.
	// Distinct from MaxSlippageBps above, which caps the price impact our
	// own front-run imposes on the victim after simulation.
	MinDetectionSlippageBps uint32
}

// bpsDenominator is the fee/slippage denominator, matching
// pkg/simulator's unexported constant of the same name.
const bpsDenominator = 10000

// Rejection pairs a structured reason with the victim hash it applied to, for
// the opportunity_rejected event.
type Rejection struct {
	VictimHash string
	Reason     sandwichcore.RejectReason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("detector: rejected %s: %s", r.VictimHash, r.Reason)
}

// Detector resolves opportunities for one chain.
type Detector struct {
	cfg       Config
	pools     *poolcache.Cache
	tokens    *tokenmeta.Cache
	poolIndex PoolIndexer
}

// PoolIndexer resolves the PoolID backing a (protocol, token pair) path hop,
// since a PendingSwap names tokens, not pool addresses.
type PoolIndexer interface {
	PoolID(protocol sandwichcore.Protocol, tokenA, tokenB string) (string, bool)
}

// New builds a Detector.
func New(cfg Config, pools *poolcache.Cache, tokens *tokenmeta.Cache, index PoolIndexer) *Detector {
	return &Detector{cfg: cfg, pools: pools, tokens: tokens, poolIndex: index}
}

// Detect evaluates one validated PendingSwap against its first hop's pool and
// either returns a scored Opportunity or a *Rejection explaining why not.
// Multi-hop paths are evaluated against their first hop only; see the design
// notes for the documented limitation this implies for multi-hop victims.
func (d *Detector) Detect(ctx context.Context, victim *sandwichcore.PendingSwap) (*sandwichcore.Opportunity, error) {
	if err := victim.Validate(); err != nil {
		return nil, fmt.Errorf("detector: invalid pending swap: %w", err)
	}

	poolID, ok := d.poolIndex.PoolID(victim.Protocol, victim.TokenIn, victim.TokenOut)
	if !ok {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectNoPool}
	}

	tokenIn, err := d.tokens.Get(ctx, victim.Chain, victim.TokenIn)
	if err != nil {
		return nil, fmt.Errorf("detector: resolve token_in: %w", err)
	}
	tokenOut, err := d.tokens.Get(ctx, victim.Chain, victim.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("detector: resolve token_out: %w", err)
	}
	if tokenIn.IsBlacklisted || tokenOut.IsBlacklisted {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectBlacklist}
	}
	if tokenIn.ExceedsTax(d.cfg.MaxTaxBps) || tokenOut.ExceedsTax(d.cfg.MaxTaxBps) {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectTax}
	}

	pool, err := d.pools.Get(ctx, victim.Protocol, poolID)
	if err != nil {
		return nil, fmt.Errorf("detector: resolve pool: %w", err)
	}
	if pool.IsConcentrated() {
		return d.detectV3(victim, pool, tokenIn, tokenOut)
	}
	return d.detectV2(victim, pool, tokenIn, tokenOut)
}

func (d *Detector) detectV2(victim *sandwichcore.PendingSwap, pool *sandwichcore.Pool, tokenIn, tokenOut *sandwichcore.TokenMeta) (*sandwichcore.Opportunity, error) {
	if !pool.ReservesValid() {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectNoPool}
	}

	tolBps, err := minDetectionSlippageBps(victim, pool)
	if err != nil {
		return nil, fmt.Errorf("detector: compute detection slippage: %w", err)
	}
	if tolBps < d.cfg.MinDetectionSlippageBps {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectSlippageFloor}
	}

	frontRun, err := simulator.V2OptimalFrontRun(victim, pool.ReserveA, pool.ReserveB, pool.FeeBps, d.cfg.MaxFrontRunFraction)
	if err != nil || frontRun.Sign() <= 0 {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}

	result, err := simulator.SimulateV2Sandwich(pool, victim, frontRun, tokenOut.TaxSellBps)
	if err != nil {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	if result.VictimSlippageBps > d.cfg.MaxSlippageBps {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	if result.ProfitNative.Cmp(d.cfg.MinProfitNative) < 0 {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}

	opp := d.buildOpportunity(victim, *pool, result, frontRun, tokenIn, tokenOut)
	if opp.PriorityScore < d.cfg.MinPriority {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	return opp, nil
}

// minDetectionSlippageBps returns how much room victim left themselves
// between what they'd receive from the pool right now, unperturbed, and
// their own min_amount_out floor. A victim with little or no room here isn't
// worth evaluating further: any front-run at all would push them into a
// revert, so the sandwich can never be sized above zero. Returns
// math.MaxUint32 when victim set no floor (unlimited room).
func minDetectionSlippageBps(victim *sandwichcore.PendingSwap, pool *sandwichcore.Pool) (uint32, error) {
	if victim.MinAmountOut == nil || victim.MinAmountOut.Sign() <= 0 {
		return math.MaxUint32, nil
	}
	unperturbed, err := simulator.V2SwapOut(victim.AmountIn, pool.ReserveA, pool.ReserveB, pool.FeeBps)
	if err != nil {
		return 0, err
	}
	if unperturbed.Sign() <= 0 || victim.MinAmountOut.Cmp(unperturbed) >= 0 {
		return 0, nil
	}
	diff := new(big.Int).Sub(unperturbed, victim.MinAmountOut)
	bps := new(big.Int).Mul(diff, big.NewInt(bpsDenominator))
	bps.Div(bps, unperturbed)
	if !bps.IsInt64() || bps.Int64() > math.MaxUint32 {
		return math.MaxUint32, nil
	}
	return uint32(bps.Int64()), nil
}

func (d *Detector) detectV3(victim *sandwichcore.PendingSwap, pool *sandwichcore.Pool, tokenIn, tokenOut *sandwichcore.TokenMeta) (*sandwichcore.Opportunity, error) {
	if !pool.ReservesValid() {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectNoPool}
	}

	tolBps, err := minDetectionSlippageBps(victim, pool)
	if err != nil {
		return nil, fmt.Errorf("detector: compute detection slippage: %w", err)
	}
	if tolBps < d.cfg.MinDetectionSlippageBps {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectSlippageFloor}
	}

	maxFrontRun := new(big.Float).Mul(new(big.Float).SetInt(victim.AmountIn), big.NewFloat(d.cfg.MaxFrontRunFraction))
	maxFrontRunInt, _ := maxFrontRun.Int(nil)
	if maxFrontRunInt.Sign() <= 0 {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}

	// Each candidate is scored with constant-product math over the pool's
	// reserves; ticks are not walked and the tick window is not checked.
	profitFn := func(frontRunAmountIn *big.Int) (*big.Int, error) {
		result, err := simulator.SimulateV2Sandwich(pool, victim, frontRunAmountIn, tokenOut.TaxSellBps)
		if err != nil {
			return nil, err
		}
		return result.ProfitNative, nil
	}

	bestAmt, bestProfit, err := simulator.V3OptimalFrontRun(maxFrontRunInt, profitFn)
	if err != nil {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	if bestProfit.Cmp(d.cfg.MinProfitNative) < 0 {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}

	result, err := simulator.SimulateV2Sandwich(pool, victim, bestAmt, tokenOut.TaxSellBps)
	if err != nil {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	opp := d.buildOpportunity(victim, *pool, result, bestAmt, tokenIn, tokenOut)
	if opp.PriorityScore < d.cfg.MinPriority {
		return nil, &Rejection{VictimHash: victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	return opp, nil
}

// Resimulate re-evaluates profit and back-run sizing for an Opportunity
// whose front-run amount a Risk Gate `reduce` verdict shrank, per spec.md
// §6: "The Core respects reduce by re-simulating at the reduced amount."
// Reusing the original Opportunity's cached Pool keeps this a pure
// recomputation rather than a fresh pool fetch, since the pool state hasn't
// changed since detection — only the sizing decision has.
func (d *Detector) Resimulate(ctx context.Context, opp *sandwichcore.Opportunity, reducedFrontRun *big.Int) (*sandwichcore.Opportunity, error) {
	if reducedFrontRun == nil || reducedFrontRun.Sign() <= 0 {
		return nil, &Rejection{VictimHash: opp.Victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}

	tokenIn, err := d.tokens.Get(ctx, opp.Victim.Chain, opp.Victim.TokenIn)
	if err != nil {
		return nil, fmt.Errorf("detector: resimulate resolve token_in: %w", err)
	}
	tokenOut, err := d.tokens.Get(ctx, opp.Victim.Chain, opp.Victim.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("detector: resimulate resolve token_out: %w", err)
	}

	result, err := simulator.SimulateV2Sandwich(&opp.Pool, &opp.Victim, reducedFrontRun, tokenOut.TaxSellBps)
	if err != nil {
		return nil, &Rejection{VictimHash: opp.Victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	if result.VictimSlippageBps > d.cfg.MaxSlippageBps {
		return nil, &Rejection{VictimHash: opp.Victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	if result.ProfitNative.Cmp(d.cfg.MinProfitNative) < 0 {
		return nil, &Rejection{VictimHash: opp.Victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}

	resimmed := d.buildOpportunity(&opp.Victim, opp.Pool, result, reducedFrontRun, tokenIn, tokenOut)
	if resimmed.PriorityScore < d.cfg.MinPriority {
		return nil, &Rejection{VictimHash: opp.Victim.TxHash, Reason: sandwichcore.RejectUnprofitable}
	}
	return resimmed, nil
}

func (d *Detector) buildOpportunity(victim *sandwichcore.PendingSwap, pool sandwichcore.Pool, result *simulator.SandwichResult, frontRun *big.Int, tokenIn, tokenOut *sandwichcore.TokenMeta) *sandwichcore.Opportunity {
	confidence := confidenceScore(victim, pool, tokenIn, tokenOut)
	priority := priorityScore(result.ProfitNative, confidence, victim.ObservedAt)

	return &sandwichcore.Opportunity{
		ID:                    fmt.Sprintf("%s-%s", victim.TxHash, pool.PoolID),
		Victim:                *victim,
		Pool:                  pool,
		EstimatedProfitNative: result.ProfitNative,
		FrontRunAmount:        frontRun,
		BackRunAmount:         result.BackRunAmountIn,
		PriceImpactBps:        result.VictimSlippageBps,
		Confidence:            confidence,
		PriorityScore:         priority,
		DetectedAt:            time.Now().UnixNano(),
	}
}

// minLiquidityTierUSD is the min-side liquidity spec.md §4.4 names for the
// "+0.2 above $1M min-side" confidence factor.
const minLiquidityTierUSD = 1_000_000.0

// priorityHalfLifeNS is the half-life used by time_decay(observed_at): a
// victim observed this long ago has its priority halved, modeling that
// stale opportunities are increasingly likely to have already been acted on
// or to have fallen out of the mempool.
const priorityHalfLifeNS = float64(2 * time.Second)

// confidenceScore implements spec.md §4.4's five independent +weight
// factors, capped at 1.0: both tokens verified (+0.3), min-side liquidity
// above minLiquidityTierUSD (+0.2), tax-free on both legs (+0.2), validated
// decoding (+0.2 — always true here, since only a PendingSwap that already
// passed Validate() and router-ABI decoding reaches the detector), and
// single-hop path (+0.1).
func confidenceScore(victim *sandwichcore.PendingSwap, pool sandwichcore.Pool, tokenIn, tokenOut *sandwichcore.TokenMeta) float64 {
	score := 0.0
	if tokenIn.Verified && tokenOut.Verified {
		score += 0.3
	}
	if pool.LiquidityUSDEstimate >= minLiquidityTierUSD {
		score += 0.2
	}
	if tokenIn.TaxBuyBps == 0 && tokenIn.TaxSellBps == 0 && tokenOut.TaxBuyBps == 0 && tokenOut.TaxSellBps == 0 {
		score += 0.2
	}
	score += 0.2 // validated decoding: guaranteed by the time a PendingSwap reaches Detect
	if len(victim.Path) == 2 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// priorityScore implements spec.md §4.4's
// `priority_score = estimated_profit_usd × confidence × (1 − time_decay(observed_at))`.
// This repo has no price-feed collaborator wired into the detector, so
// profit is scored in native units rather than USD (documented narrowing,
// consistent with DESIGN.md's Open Question decisions); time_decay is an
// exponential decay with a priorityHalfLifeNS half-life against the current
// time.
func priorityScore(profitNative *big.Int, confidence float64, observedAtNS int64) float64 {
	profitF := new(big.Float).SetInt(profitNative)
	profit, _ := profitF.Float64()

	ageNS := float64(time.Now().UnixNano() - observedAtNS)
	if ageNS < 0 {
		ageNS = 0
	}
	decay := 1.0 - math.Exp2(-ageNS/priorityHalfLifeNS)

	return profit * confidence * (1.0 - decay)
}
