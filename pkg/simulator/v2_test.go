package simulator

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hulrap/sandwichcore"
)

func TestV2SwapOut(t *testing.T) {
	out, err := V2SwapOut(big.NewInt(1_000_000), big.NewInt(1_000_000_000), big.NewInt(2_000_000_000), 30)
	require.NoError(t, err)
	require.True(t, out.Sign() > 0)
	require.True(t, out.Cmp(big.NewInt(2_000_000)) < 0, "output must be less than naive proportional amount due to fee and slippage")
}

func TestV2SwapOut_rejectsNonPositiveInput(t *testing.T) {
	_, err := V2SwapOut(big.NewInt(0), big.NewInt(1000), big.NewInt(1000), 30)
	require.Error(t, err)

	_, err = V2SwapOut(big.NewInt(10), big.NewInt(0), big.NewInt(1000), 30)
	require.Error(t, err)
}

func TestV2OptimalFrontRun_boundedByMaxFraction(t *testing.T) {
	victim := &sandwichcore.PendingSwap{
		AmountIn:     big.NewInt(10_000_000_000), // 10 ETH-equivalent, 9 decimals for test compactness
		MinAmountOut: big.NewInt(1),              // essentially no slippage protection, so the fraction cap binds
	}
	reserveIn := big.NewInt(1_000_000_000_000)
	reserveOut := big.NewInt(2_000_000_000_000_000)

	optimal, err := V2OptimalFrontRun(victim, reserveIn, reserveOut, 30, 0.3)
	require.NoError(t, err)
	require.True(t, optimal.Sign() > 0)

	maxAllowed := new(big.Int).Mul(victim.AmountIn, big.NewInt(3))
	maxAllowed.Div(maxAllowed, big.NewInt(10))
	require.True(t, optimal.Cmp(maxAllowed) <= 0, "front-run amount must not exceed max_front_run_fraction * victim amount")
}

func TestV2OptimalFrontRun_zeroFractionYieldsZero(t *testing.T) {
	victim := &sandwichcore.PendingSwap{
		AmountIn:     big.NewInt(10_000_000_000),
		MinAmountOut: big.NewInt(1),
	}
	reserveIn := big.NewInt(1_000_000_000_000)
	reserveOut := big.NewInt(2_000_000_000_000_000)

	optimal, err := V2OptimalFrontRun(victim, reserveIn, reserveOut, 30, 0)
	require.NoError(t, err)
	require.Equal(t, 0, optimal.Sign())
}

func TestV2OptimalFrontRun_boundedByVictimMinAmountOut(t *testing.T) {
	reserveIn := new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)) // 1000 ETH
	reserveOut := big.NewInt(2_000_000_000_000)             // 2,000,000 USDC
	victim := &sandwichcore.PendingSwap{
		AmountIn:     new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)), // 10 ETH
		MinAmountOut: big.NewInt(19_500_000_000),              // 19,500 USDC floor
	}

	optimal, err := V2OptimalFrontRun(victim, reserveIn, reserveOut, 30, 1.0)
	require.NoError(t, err)
	require.True(t, optimal.Sign() > 0)

	result, err := SimulateV2Sandwich(&sandwichcore.Pool{ReserveA: reserveIn, ReserveB: reserveOut, FeeBps: 30}, victim, optimal, 0)
	require.NoError(t, err, "the derived front-run must not push the victim below its own floor")
	require.True(t, result.VictimAmountOut.Cmp(victim.MinAmountOut) > 0, "boundary solve must leave a strict margin above MinAmountOut")

	oneMore := new(big.Int).Add(optimal, big.NewInt(1_000_000_000_000_000)) // +0.001 ETH past the derived boundary
	_, err = SimulateV2Sandwich(&sandwichcore.Pool{ReserveA: reserveIn, ReserveB: reserveOut, FeeBps: 30}, victim, oneMore, 0)
	require.Error(t, err, "front-running any larger than the derived boundary should push the victim into reverting")
}

func TestV2OptimalFrontRun_noMinAmountOutBoundedOnlyByFraction(t *testing.T) {
	victim := &sandwichcore.PendingSwap{AmountIn: big.NewInt(10_000_000_000)}
	reserveIn := big.NewInt(1_000_000_000_000)
	reserveOut := big.NewInt(2_000_000_000_000_000)

	optimal, err := V2OptimalFrontRun(victim, reserveIn, reserveOut, 30, 0.3)
	require.NoError(t, err)
	expected := new(big.Int).Mul(victim.AmountIn, big.NewInt(3))
	expected.Div(expected, big.NewInt(10))
	require.Equal(t, 0, optimal.Cmp(expected), "with no MinAmountOut there is no revert boundary, so the cap applies directly")
}

func TestSimulateV2Sandwich_profitablePath(t *testing.T) {
	pool := &sandwichcore.Pool{
		Chain:    sandwichcore.ChainEthereum,
		Protocol: sandwichcore.ProtocolUniswapV2,
		ReserveA: new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)), // 1000 ETH
		ReserveB: big.NewInt(2_000_000_000_000),              // 2,000,000 USDC (6dp)
		FeeBps:   30,
	}
	victim := &sandwichcore.PendingSwap{
		AmountIn:     new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)), // 10 ETH
		MinAmountOut: big.NewInt(19_500_000_000),              // 19,500 USDC
	}

	frontRun := big.NewInt(4_000_000_000_000_000_000) // 4 ETH
	result, err := SimulateV2Sandwich(pool, victim, frontRun, 0)
	require.NoError(t, err)
	require.True(t, result.ProfitNative.Sign() > 0, "expected the happy-path sandwich to be profitable")
	require.True(t, result.VictimAmountOut.Cmp(victim.MinAmountOut) >= 0, "victim must not revert")
}

func TestSimulateV2Sandwich_rejectsVictimRevert(t *testing.T) {
	pool := &sandwichcore.Pool{
		ReserveA: new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)),
		ReserveB: big.NewInt(2_000_000_000_000),
		FeeBps:   30,
	}
	victim := &sandwichcore.PendingSwap{
		AmountIn:     new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)),
		MinAmountOut: big.NewInt(19_900_000_000), // too tight; front-run pushes output below this
	}

	_, err := SimulateV2Sandwich(pool, victim, big.NewInt(4_000_000_000_000_000_000), 0)
	require.Error(t, err)
}

func TestSimulateV2Sandwich_rejectsExactEqualityAtMinAmountOut(t *testing.T) {
	pool := &sandwichcore.Pool{
		ReserveA: new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)),
		ReserveB: big.NewInt(2_000_000_000_000),
		FeeBps:   30,
	}
	victim := &sandwichcore.PendingSwap{
		AmountIn: new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)),
	}
	frontRun := big.NewInt(4_000_000_000_000_000_000)

	// First, find exactly what the victim would receive at this front-run
	// size, then set MinAmountOut to that exact figure: the victim's own
	// floor is satisfied with zero room to spare, which must still count as
	// a revert per the strict-margin boundary rule.
	baseline, err := SimulateV2Sandwich(pool, victim, frontRun, 0)
	require.NoError(t, err)
	victim.MinAmountOut = new(big.Int).Set(baseline.VictimAmountOut)

	_, err = SimulateV2Sandwich(pool, victim, frontRun, 0)
	require.Error(t, err, "victim output exactly equal to MinAmountOut must still be rejected as a revert")
}

func TestSimulateV2Sandwich_appliesSellTax(t *testing.T) {
	pool := &sandwichcore.Pool{
		ReserveA: new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1_000_000_000_000_000_000)),
		ReserveB: big.NewInt(2_000_000_000_000),
		FeeBps:   30,
	}
	victim := &sandwichcore.PendingSwap{
		AmountIn:     new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)),
		MinAmountOut: big.NewInt(19_500_000_000),
	}
	frontRun := big.NewInt(4_000_000_000_000_000_000)

	withoutTax, err := SimulateV2Sandwich(pool, victim, frontRun, 0)
	require.NoError(t, err)
	withTax, err := SimulateV2Sandwich(pool, victim, frontRun, 500) // 5%
	require.NoError(t, err)

	require.True(t, withTax.BackRunAmountOut.Cmp(withoutTax.BackRunAmountOut) < 0)
}

func TestSimulateV2Sandwich_rejectsInvalidReserves(t *testing.T) {
	pool := &sandwichcore.Pool{ReserveA: big.NewInt(0), ReserveB: big.NewInt(100), FeeBps: 30}
	victim := &sandwichcore.PendingSwap{AmountIn: big.NewInt(10), MinAmountOut: big.NewInt(1)}

	_, err := SimulateV2Sandwich(pool, victim, big.NewInt(5), 0)
	require.Error(t, err)
}
