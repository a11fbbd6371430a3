package simulator

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hulrap/sandwichcore/internal/ammmath"
)

func TestV3OptimalFrontRun_convergesNearPeak(t *testing.T) {
	maxFrontRun := big.NewInt(1_000_000)
	target := big.NewInt(400_000)

	profitFn := func(amountIn *big.Int) (*big.Int, error) {
		diff := new(big.Int).Sub(amountIn, target)
		sq := new(big.Int).Mul(diff, diff)
		profit := new(big.Int).Sub(big.NewInt(1_000_000_000_000), sq)
		return profit, nil
	}

	bestAmt, bestProfit, err := V3OptimalFrontRun(maxFrontRun, profitFn)
	require.NoError(t, err)
	require.NotNil(t, bestAmt)
	require.True(t, bestProfit.Sign() > 0)

	dist := new(big.Int).Sub(bestAmt, target)
	dist.Abs(dist)
	require.True(t, dist.Cmp(big.NewInt(100_000)) < 0, "golden-section search should land within tolerance of the true peak after 6 iterations, got %s", bestAmt.String())
}

func TestV3OptimalFrontRun_rejectsNonPositiveMax(t *testing.T) {
	_, _, err := V3OptimalFrontRun(big.NewInt(0), func(*big.Int) (*big.Int, error) { return big.NewInt(1), nil })
	require.Error(t, err)

	_, _, err = V3OptimalFrontRun(nil, func(*big.Int) (*big.Int, error) { return big.NewInt(1), nil })
	require.Error(t, err)
}

func TestV3OptimalFrontRun_allOutOfWindowErrors(t *testing.T) {
	profitFn := func(*big.Int) (*big.Int, error) {
		return nil, errors.New("simulator: trade crosses below cached tick window")
	}
	_, _, err := V3OptimalFrontRun(big.NewInt(1_000_000), profitFn)
	require.Error(t, err)
}

func TestV3SwapOutWithinTick_zeroToOne(t *testing.T) {
	var tickLower, tickUpper int32 = -600, 600
	sqrtPriceX96 := ammmath.TickToSqrtPriceX96(0) // current tick 0, price ~1
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

	out, err := V3SwapOutWithinTick(true, big.NewInt(1_000_000), sqrtPriceX96, liquidity, tickLower, tickUpper)
	require.NoError(t, err)
	require.True(t, out.Sign() > 0)
}

func TestV3SwapOutWithinTick_oneToZero(t *testing.T) {
	var tickLower, tickUpper int32 = -600, 600
	sqrtPriceX96 := ammmath.TickToSqrtPriceX96(0)
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

	out, err := V3SwapOutWithinTick(false, big.NewInt(1_000_000), sqrtPriceX96, liquidity, tickLower, tickUpper)
	require.NoError(t, err)
	require.True(t, out.Sign() > 0)
}

func TestV3SwapOutWithinTick_rejectsCrossingBelowWindow(t *testing.T) {
	var tickLower, tickUpper int32 = -600, 600
	sqrtPriceX96 := ammmath.TickToSqrtPriceX96(0)
	liquidity := big.NewInt(1_000_000) // small liquidity, easy to push price out of window

	hugeAmountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	_, err := V3SwapOutWithinTick(true, hugeAmountIn, sqrtPriceX96, liquidity, tickLower, tickUpper)
	require.Error(t, err)
}

func TestV3SwapOutWithinTick_rejectsCrossingAboveWindow(t *testing.T) {
	var tickLower, tickUpper int32 = -600, 600
	sqrtPriceX96 := ammmath.TickToSqrtPriceX96(0)
	liquidity := big.NewInt(1_000_000)

	hugeAmountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	_, err := V3SwapOutWithinTick(false, hugeAmountIn, sqrtPriceX96, liquidity, tickLower, tickUpper)
	require.Error(t, err)
}

func TestV3SwapOutWithinTick_rejectsZeroLiquidity(t *testing.T) {
	_, err := V3SwapOutWithinTick(true, big.NewInt(100), ammmath.TickToSqrtPriceX96(0), big.NewInt(0), -600, 600)
	require.Error(t, err)
}
