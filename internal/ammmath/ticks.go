// Package ammmath holds the pure, allocation-light tick/sqrt-price math used
// by the concentrated-liquidity profit simulator. Adapted from the
// fixed-point tick arithmetic used by Algebra/Uniswap V3 style pools: the
// arithmetic is big.Int/big.Float, except that TickToSqrtPriceX96 computes
// 1.0001^tick with float64 math.Pow before widening it to big.Float.
package ammmath

import (
	"errors"
	"math"
	"math/big"
)

// Q96 is the fixed-point scale Uniswap V3 style pools encode sqrtPrice in.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

var q96Float = new(big.Float).SetInt(Q96)

// precision controls the big.Float mantissa width used for the tick <-> price
// conversions below. 256 bits comfortably exceeds a uint160 sqrtPriceX96.
const precision = 256

// TickToSqrtPriceX96 converts a tick index to its Q96 fixed-point sqrt price:
// sqrtPriceX96 = sqrt(1.0001^tick) * 2^96.
func TickToSqrtPriceX96(tick int) *big.Int {
	ratio := new(big.Float).SetPrec(precision).SetFloat64(math.Pow(1.0001, float64(tick)))
	sqrtRatio := new(big.Float).SetPrec(precision).Sqrt(ratio)
	scaled := new(big.Float).SetPrec(precision).Mul(sqrtRatio, q96Float)
	out, _ := scaled.Int(nil)
	return out
}

// SqrtPriceToPrice converts a Q96 fixed-point sqrt price back to the
// unadjusted token1-per-token0 price (callers apply their own decimal
// adjustment, since that depends on the two tokens' decimals).
func SqrtPriceToPrice(sqrtPriceX96 *big.Int) *big.Float {
	sqrtPrice := new(big.Float).SetPrec(precision).Quo(new(big.Float).SetInt(sqrtPriceX96), q96Float)
	return new(big.Float).SetPrec(precision).Mul(sqrtPrice, sqrtPrice)
}

// CalculateTickBounds derives a symmetric tick range of `rangeWidth` spacing
// steps on each side of currentTick, snapped to tickSpacing.
func CalculateTickBounds(currentTick int32, rangeWidth, tickSpacing int) (lower, upper int32, err error) {
	if tickSpacing <= 0 {
		return 0, 0, errors.New("ammmath: tickSpacing must be positive")
	}
	if rangeWidth <= 0 {
		return 0, 0, errors.New("ammmath: rangeWidth must be positive")
	}
	spacing := int32(tickSpacing)
	width := int32(rangeWidth)
	base := (currentTick / spacing) * spacing
	lower = base - width*spacing
	upper = base + width*spacing
	return lower, upper, nil
}

// ComputeAmounts computes the liquidity obtainable from amount0Max/amount1Max
// at the given tick position, and the amounts of each token actually
// consumed (which may be less than the maxima when the position is entirely
// above or below the current tick).
func ComputeAmounts(sqrtPriceX96 *big.Int, tick, tickLower, tickUpper int, amount0Max, amount1Max *big.Int) (amount0, amount1, liquidity *big.Int) {
	sqrtLower := TickToSqrtPriceX96(tickLower)
	sqrtUpper := TickToSqrtPriceX96(tickUpper)

	switch {
	case tick < tickLower:
		liquidity = liquidityForAmount0(sqrtLower, sqrtUpper, amount0Max)
		amount0 = amount0Max
		amount1 = big.NewInt(0)
	case tick >= tickUpper:
		liquidity = liquidityForAmount1(sqrtLower, sqrtUpper, amount1Max)
		amount0 = big.NewInt(0)
		amount1 = amount1Max
	default:
		l0 := liquidityForAmount0(sqrtPriceX96, sqrtUpper, amount0Max)
		l1 := liquidityForAmount1(sqrtLower, sqrtPriceX96, amount1Max)
		if l0.Cmp(l1) < 0 {
			liquidity = l0
		} else {
			liquidity = l1
		}
		amount0 = amount0ForLiquidity(sqrtPriceX96, sqrtUpper, liquidity)
		amount1 = amount1ForLiquidity(sqrtLower, sqrtPriceX96, liquidity)
	}
	return amount0, amount1, liquidity
}

// CalculateTokenAmountsFromLiquidity returns the token0/token1 amounts
// represented by `liquidity` at sqrtPriceX96 within [tickLower, tickUpper].
func CalculateTokenAmountsFromLiquidity(liquidity, sqrtPriceX96 *big.Int, tickLower, tickUpper int32) (amount0, amount1 *big.Int, err error) {
	if liquidity == nil || liquidity.Sign() < 0 {
		return nil, nil, errors.New("ammmath: liquidity must be non-negative")
	}
	sqrtLower := TickToSqrtPriceX96(int(tickLower))
	sqrtUpper := TickToSqrtPriceX96(int(tickUpper))

	switch {
	case sqrtPriceX96.Cmp(sqrtLower) <= 0:
		return amount0ForLiquidity(sqrtLower, sqrtUpper, liquidity), big.NewInt(0), nil
	case sqrtPriceX96.Cmp(sqrtUpper) >= 0:
		return big.NewInt(0), amount1ForLiquidity(sqrtLower, sqrtUpper, liquidity), nil
	default:
		return amount0ForLiquidity(sqrtPriceX96, sqrtUpper, liquidity), amount1ForLiquidity(sqrtLower, sqrtPriceX96, liquidity), nil
	}
}

// CalculateMinAmount applies a percentage slippage haircut to amount.
func CalculateMinAmount(amount *big.Int, slippagePct int) *big.Int {
	min := new(big.Int).Mul(amount, big.NewInt(int64(100-slippagePct)))
	return min.Div(min, big.NewInt(100))
}

func liquidityForAmount0(sqrtA, sqrtB *big.Int, amount0 *big.Int) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(hi, lo)
	if diff.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(amount0, lo)
	num.Mul(num, hi)
	num.Div(num, Q96)
	return num.Div(num, diff)
}

func liquidityForAmount1(sqrtA, sqrtB *big.Int, amount1 *big.Int) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(hi, lo)
	if diff.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(amount1, Q96)
	return num.Div(num, diff)
}

func amount0ForLiquidity(sqrtA, sqrtB *big.Int, liquidity *big.Int) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(hi, lo)
	num := new(big.Int).Mul(liquidity, Q96)
	num.Mul(num, diff)
	denom := new(big.Int).Mul(hi, lo)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	return num.Div(num, denom)
}

func amount1ForLiquidity(sqrtA, sqrtB *big.Int, liquidity *big.Int) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(hi, lo)
	num := new(big.Int).Mul(liquidity, diff)
	return num.Div(num, Q96)
}

func orderSqrt(a, b *big.Int) (lo, hi *big.Int) {
	if a.Cmp(b) <= 0 {
		return a, b
	}
	return b, a
}
