package detector

import (
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/simulator"
	"github.com/hulrap/sandwichcore/pkg/tokenmeta"
)

type stubResolver struct {
	metas map[string]*sandwichcore.TokenMeta
}

func (s stubResolver) Resolve(ctx context.Context, chain sandwichcore.Chain, address string) (*sandwichcore.TokenMeta, error) {
	return s.metas[address], nil
}

func TestConfidenceScore_allFactorsPresent(t *testing.T) {
	victim := &sandwichcore.PendingSwap{Path: []string{"WETH", "USDC"}}
	pool := sandwichcore.Pool{LiquidityUSDEstimate: 2_000_000}
	tokenIn := &sandwichcore.TokenMeta{Verified: true}
	tokenOut := &sandwichcore.TokenMeta{Verified: true}

	score := confidenceScore(victim, pool, tokenIn, tokenOut)
	require.InDelta(t, 1.0, score, 1e-9, "all five factors present must saturate at the 1.0 cap")
}

func TestConfidenceScore_taxAndUnverifiedLowerScore(t *testing.T) {
	victim := &sandwichcore.PendingSwap{Path: []string{"TOKEN_A", "TOKEN_B", "TOKEN_C"}} // multi-hop, no single-hop bonus
	pool := sandwichcore.Pool{LiquidityUSDEstimate: 10_000}                              // below $1M tier
	tokenIn := &sandwichcore.TokenMeta{Verified: false, TaxBuyBps: 100}
	tokenOut := &sandwichcore.TokenMeta{Verified: false}

	score := confidenceScore(victim, pool, tokenIn, tokenOut)
	// only the constant validated-decoding factor (+0.2) applies.
	require.InDelta(t, 0.2, score, 1e-9)
}

func TestPriorityScore_decaysWithAge(t *testing.T) {
	profit := big.NewInt(1_000_000)

	fresh := priorityScore(profit, 1.0, time.Now().UnixNano())
	stale := priorityScore(profit, 1.0, time.Now().Add(-10*time.Second).UnixNano())

	require.True(t, stale < fresh, "an older observation must score lower priority than a fresh one of equal profit and confidence")
	require.True(t, stale >= 0, "priority score must never go negative")
}

func TestPriorityScore_deterministicForSameInputs(t *testing.T) {
	profit := big.NewInt(42_000)
	observedAt := time.Now().Add(-time.Second).UnixNano()

	a := priorityScore(profit, 0.75, observedAt)
	b := priorityScore(profit, 0.75, observedAt)
	require.Equal(t, a, b, "same inputs must yield the same priority score")
}

func TestResimulate_shrinksProfitAndEnforcesFloor(t *testing.T) {
	resolver := stubResolver{metas: map[string]*sandwichcore.TokenMeta{
		"WETH": {Verified: true},
		"USDC": {Verified: true},
	}}
	tokens, err := tokenmeta.New(resolver)
	require.NoError(t, err)

	d := New(Config{
		MinProfitNative: big.NewInt(1),
		MaxSlippageBps:  10000,
	}, nil, tokens, nil)

	pool := sandwichcore.Pool{
		ReserveA: new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)), // 1000 ETH
		ReserveB: big.NewInt(2_000_000_000_000),             // 2,000,000 USDC
		FeeBps:   30,
	}
	victim := sandwichcore.PendingSwap{
		Chain:        sandwichcore.ChainEthereum,
		TokenIn:      "WETH",
		TokenOut:     "USDC",
		AmountIn:     new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)), // 10 ETH
		MinAmountOut: big.NewInt(1),
		Path:         []string{"WETH", "USDC"},
	}
	original := &sandwichcore.Opportunity{
		Victim:                victim,
		Pool:                  pool,
		FrontRunAmount:        big.NewInt(4_000_000_000_000_000_000), // 4 ETH
		EstimatedProfitNative: big.NewInt(1_000_000_000_000_000_000),
	}

	reduced := new(big.Int).Div(original.FrontRunAmount, big.NewInt(2))
	resimmed, err := d.Resimulate(context.Background(), original, reduced)
	require.NoError(t, err)
	require.Equal(t, 0, resimmed.FrontRunAmount.Cmp(reduced))
	require.True(t, resimmed.EstimatedProfitNative.Cmp(original.EstimatedProfitNative) < 0,
		"re-simulating at a smaller front-run amount must not silently keep the original, larger profit estimate")
}

func TestMinDetectionSlippageBps_noFloorIsUnlimitedRoom(t *testing.T) {
	pool := &sandwichcore.Pool{
		ReserveA: new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)),
		ReserveB: big.NewInt(2_000_000_000_000),
		FeeBps:   30,
	}
	victim := &sandwichcore.PendingSwap{AmountIn: new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000))}

	bps, err := minDetectionSlippageBps(victim, pool)
	require.NoError(t, err)
	require.Equal(t, uint32(math.MaxUint32), bps)
}

func TestMinDetectionSlippageBps_tightFloorYieldsLowTolerance(t *testing.T) {
	pool := &sandwichcore.Pool{
		ReserveA: new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)),
		ReserveB: big.NewInt(2_000_000_000_000),
		FeeBps:   30,
	}
	victim := &sandwichcore.PendingSwap{
		AmountIn: new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)),
	}

	unperturbed, err := simulator.V2SwapOut(victim.AmountIn, pool.ReserveA, pool.ReserveB, pool.FeeBps)
	require.NoError(t, err)

	// min_amount_out 1bp below the unperturbed fill: almost no room at all.
	tight := new(big.Int).Mul(unperturbed, big.NewInt(9999))
	tight.Div(tight, big.NewInt(10000))
	victim.MinAmountOut = tight

	bps, err := minDetectionSlippageBps(victim, pool)
	require.NoError(t, err)
	require.True(t, bps < 30, "a floor this close to the unperturbed fill must report a low tolerance, got %d bps", bps)
}

func TestDetectV2_rejectsBelowDetectionSlippageFloor(t *testing.T) {
	resolver := stubResolver{metas: map[string]*sandwichcore.TokenMeta{
		"WETH": {Verified: true},
		"USDC": {Verified: true},
	}}
	tokens, err := tokenmeta.New(resolver)
	require.NoError(t, err)

	d := New(Config{
		MinProfitNative:         big.NewInt(1),
		MaxSlippageBps:          10000,
		MaxFrontRunFraction:     0.3,
		MinDetectionSlippageBps: 30,
	}, nil, tokens, nil)

	pool := sandwichcore.Pool{
		ReserveA: new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)),
		ReserveB: big.NewInt(2_000_000_000_000),
		FeeBps:   30,
	}
	victim := sandwichcore.PendingSwap{
		Chain:    sandwichcore.ChainEthereum,
		TokenIn:  "WETH",
		TokenOut: "USDC",
		AmountIn: new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)),
		Path:     []string{"WETH", "USDC"},
	}

	unperturbed, err := simulator.V2SwapOut(victim.AmountIn, pool.ReserveA, pool.ReserveB, pool.FeeBps)
	require.NoError(t, err)
	tight := new(big.Int).Mul(unperturbed, big.NewInt(9999))
	tight.Div(tight, big.NewInt(10000))
	victim.MinAmountOut = tight

	tokenIn := &sandwichcore.TokenMeta{Verified: true}
	tokenOut := &sandwichcore.TokenMeta{Verified: true}

	_, err = d.detectV2(&victim, &pool, tokenIn, tokenOut)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, sandwichcore.RejectSlippageFloor, rej.Reason)
}

func TestResimulate_rejectsNonPositiveAmount(t *testing.T) {
	resolver := stubResolver{metas: map[string]*sandwichcore.TokenMeta{}}
	tokens, err := tokenmeta.New(resolver)
	require.NoError(t, err)

	d := New(Config{MinProfitNative: big.NewInt(1)}, nil, tokens, nil)
	opp := &sandwichcore.Opportunity{Victim: sandwichcore.PendingSwap{TxHash: "0xabc"}}

	_, err = d.Resimulate(context.Background(), opp, big.NewInt(0))
	require.Error(t, err)
}
