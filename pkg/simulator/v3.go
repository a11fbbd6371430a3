package simulator

import (
	"errors"
	"math/big"

	"github.com/hulrap/sandwichcore/internal/ammmath"
)

// goldenSectionMaxIterations bounds the V3 front-run size search: unlike V2's
// closed-form optimum, walking a tick-based pool has no closed form, so the
// search is capped at a fixed iteration count to bound worst-case detector
// latency at the cost of landing slightly short of the true optimum.
const goldenSectionMaxIterations = 6

const goldenRatio = 0.6180339887498949

// V3ProfitFunc evaluates the net profit of a candidate front-run amount
// against a concentrated-liquidity pool. Implementations walk the cached tick
// window and must return an error (not a guess) if the trade would cross
// outside it.
type V3ProfitFunc func(frontRunAmountIn *big.Int) (profit *big.Int, err error)

// V3OptimalFrontRun searches [0, maxFrontRun] for the front-run amount that
// maximizes profitFn's output, using a golden-section search bounded to
// goldenSectionMaxIterations evaluations. Candidates whose evaluation errors
// (trade exits the cached tick window) are treated as -infinity profit so the
// search narrows away from them without aborting.
func V3OptimalFrontRun(maxFrontRun *big.Int, profitFn V3ProfitFunc) (*big.Int, *big.Int, error) {
	if maxFrontRun == nil || maxFrontRun.Sign() <= 0 {
		return nil, nil, errors.New("simulator: maxFrontRun must be positive")
	}

	lo, hi := big.NewFloat(0), new(big.Float).SetInt(maxFrontRun)
	eval := func(x *big.Float) (*big.Int, *big.Int) {
		amt, _ := x.Int(nil)
		if amt.Sign() <= 0 {
			return amt, big.NewInt(0)
		}
		profit, err := profitFn(amt)
		if err != nil {
			return amt, new(big.Int).Neg(bigMaxAbs)
		}
		return amt, profit
	}

	width := new(big.Float).Sub(hi, lo)
	x1 := new(big.Float).Sub(hi, new(big.Float).Mul(width, big.NewFloat(goldenRatio)))
	x2 := new(big.Float).Add(lo, new(big.Float).Mul(width, big.NewFloat(goldenRatio)))

	amt1, profit1 := eval(x1)
	amt2, profit2 := eval(x2)

	var bestAmt, bestProfit *big.Int
	if profit1.Cmp(profit2) >= 0 {
		bestAmt, bestProfit = amt1, profit1
	} else {
		bestAmt, bestProfit = amt2, profit2
	}

	for i := 0; i < goldenSectionMaxIterations; i++ {
		if profit1.Cmp(profit2) >= 0 {
			hi = x2
			x2 = x1
			profit2 = profit1
			width = new(big.Float).Sub(hi, lo)
			x1 = new(big.Float).Sub(hi, new(big.Float).Mul(width, big.NewFloat(goldenRatio)))
			amt1, profit1 = eval(x1)
		} else {
			lo = x1
			x1 = x2
			profit1 = profit2
			width = new(big.Float).Sub(hi, lo)
			x2 = new(big.Float).Add(lo, new(big.Float).Mul(width, big.NewFloat(goldenRatio)))
			amt2, profit2 = eval(x2)
		}
		if profit1.Cmp(bestProfit) > 0 {
			bestAmt, bestProfit = amt1, profit1
		}
		if profit2.Cmp(bestProfit) > 0 {
			bestAmt, bestProfit = amt2, profit2
		}
	}

	if bestProfit.Cmp(new(big.Int).Neg(bigMaxAbs)) == 0 {
		return nil, nil, errors.New("simulator: no in-window front-run amount was profitable")
	}
	return bestAmt, bestProfit, nil
}

// bigMaxAbs is a sentinel magnitude large enough to dominate any realistic
// profit/loss comparison, used to mark out-of-window evaluations as strictly
// worse than any real candidate without needing a separate ok flag threaded
// through every comparison.
var bigMaxAbs = new(big.Int).Lsh(big.NewInt(1), 256)

// V3SwapOutWithinTick computes the output amount for a swap that stays
// within the pool's current tick (no tick crossing), using the constant
// virtual-reserve relationship implied by sqrtPriceX96 and the active
// liquidity. Returns an error if the trade would move the price past the
// cached window, signaling the caller to treat this amount as unevaluable
// rather than extrapolate beyond cached ticks.
func V3SwapOutWithinTick(pool0to1 bool, amountIn *big.Int, sqrtPriceX96 *big.Int, liquidity *big.Int, tickLower, tickUpper int32) (*big.Int, error) {
	if liquidity == nil || liquidity.Sign() <= 0 {
		return nil, errors.New("simulator: zero active liquidity")
	}
	sqrtLower := ammmath.TickToSqrtPriceX96(int(tickLower))
	sqrtUpper := ammmath.TickToSqrtPriceX96(int(tickUpper))

	if pool0to1 {
		// amount0 in: sqrtPriceNext = L*Q96*sqrtPrice / (L*Q96 + amountIn*sqrtPrice)
		numerator := new(big.Int).Mul(liquidity, ammmath.Q96)
		numerator.Mul(numerator, sqrtPriceX96)
		denom := new(big.Int).Mul(liquidity, ammmath.Q96)
		term := new(big.Int).Mul(amountIn, sqrtPriceX96)
		denom.Add(denom, term.Div(term, ammmath.Q96))
		sqrtPriceNext := new(big.Int).Div(numerator, denom)
		if sqrtPriceNext.Cmp(sqrtLower) < 0 {
			return nil, errors.New("simulator: trade crosses below cached tick window")
		}
		amount1Out := new(big.Int).Sub(sqrtPriceX96, sqrtPriceNext)
		amount1Out.Mul(amount1Out, liquidity)
		amount1Out.Div(amount1Out, ammmath.Q96)
		return amount1Out, nil
	}

	numerator := new(big.Int).Mul(amountIn, ammmath.Q96)
	sqrtPriceNext := new(big.Int).Add(sqrtPriceX96, numerator.Div(numerator, liquidity))
	if sqrtPriceNext.Cmp(sqrtUpper) > 0 {
		return nil, errors.New("simulator: trade crosses above cached tick window")
	}
	diff := new(big.Int).Sub(sqrtPriceNext, sqrtPriceX96)
	amount0Out := new(big.Int).Mul(liquidity, diff)
	amount0Out.Mul(amount0Out, ammmath.Q96)
	amount0Out.Div(amount0Out, new(big.Int).Mul(sqrtPriceX96, sqrtPriceNext))
	return amount0Out, nil
}
