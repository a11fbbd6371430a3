// Package simulator computes sandwich profit against a cached pool using
// fixed-point big.Int arithmetic only — no floating point anywhere on the
// amount-in/amount-out hot path, matching the no-float-in-simulation rule.
package simulator

import (
	"errors"
	"math"
	"math/big"
	"strconv"

	"github.com/hulrap/sandwichcore"
)

// bpsDenominator is the fee/slippage denominator used throughout.
const bpsDenominator = 10000

// V2SwapOut computes the constant-product output amount for swapping amountIn
// of the reserveIn side against reserveOut, net of feeBps.
func V2SwapOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, errors.New("simulator: amountIn must be positive")
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, errors.New("simulator: reserves must be positive")
	}
	feeFactor := big.NewInt(int64(bpsDenominator - feeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, feeFactor)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(bpsDenominator))
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return nil, errors.New("simulator: zero denominator")
	}
	return numerator.Div(numerator, denominator), nil
}

// V2OptimalFrontRun returns the largest front-run input against victim that
// still lets victim clear its own MinAmountOut floor, capped to
// maxFrontRunFraction of the victim's input per the configured risk ceiling.
//
// Profit is monotonically increasing in front-run size right up to the point
// the victim's post-front-run output would drop to MinAmountOut, so the
// profit-maximizing, non-reverting front-run sits at that boundary, less a
// strict margin (spec.md §8: "strictly less must be possible" — equality at
// the floor still counts as a revert). The boundary is found by substituting
// the pool's constant-product invariant for the post-front-run reserves into
// victim's own swap-out formula and solving victimOut(x) = MinAmountOut + 1
// for x (so the victim's integer-floored output still lands strictly above
// MinAmountOut), where K is the bps denominator and F = K - feeBps:
//
//	victimOut(x) = V*F*Rout*Rin*K / [(Rin*K + x*F) * (Rin*K + x*K + V*F)]
//
// Rearranged this is a*x^2 + b*x + c = 0 in x, solved with the quadratic
// formula, taking the positive root.
//
// If victim left no MinAmountOut (or it no longer binds against the pool's
// current price), there is no revert boundary to respect and the front-run
// is bounded only by maxFrontRunFraction.
func V2OptimalFrontRun(victim *sandwichcore.PendingSwap, reserveIn, reserveOut *big.Int, feeBps uint32, maxFrontRunFraction float64) (*big.Int, error) {
	if victim == nil || victim.AmountIn == nil || victim.AmountIn.Sign() <= 0 {
		return nil, errors.New("simulator: victim amountIn must be positive")
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, errors.New("simulator: reserves must be positive")
	}

	frac, ok := new(big.Rat).SetString(strconv.FormatFloat(maxFrontRunFraction, 'g', -1, 64))
	if !ok {
		return nil, errors.New("simulator: maxFrontRunFraction must be a finite number")
	}
	capRat := new(big.Rat).Mul(new(big.Rat).SetInt(victim.AmountIn), frac)
	capInt := new(big.Int).Quo(capRat.Num(), capRat.Denom())
	if capInt.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if victim.MinAmountOut == nil || victim.MinAmountOut.Sign() <= 0 {
		return capInt, nil
	}

	k := big.NewFloat(bpsDenominator)
	f := big.NewFloat(float64(bpsDenominator - feeBps))
	rinF := new(big.Float).SetInt(reserveIn)
	routF := new(big.Float).SetInt(reserveOut)
	vF := new(big.Float).SetInt(victim.AmountIn)
	mF := new(big.Float).SetInt(new(big.Int).Add(victim.MinAmountOut, big.NewInt(1)))

	rinK := new(big.Float).Mul(rinF, k) // Rin*K
	d := new(big.Float).Mul(vF, f)      // V*F
	d.Add(d, rinK)                      // D = Rin*K + V*F
	l := new(big.Float).Mul(vF, f)
	l.Mul(l, routF)
	l.Mul(l, rinK) // L = V*F*Rout*Rin*K

	a := new(big.Float).Mul(mF, f)
	a.Mul(a, k) // a = M*F*K

	bInner := new(big.Float).Mul(rinK, k)
	fd := new(big.Float).Mul(f, d)
	bInner.Add(bInner, fd)
	b := new(big.Float).Mul(mF, bInner) // b = M*(Rin*K*K + F*D)

	c := new(big.Float).Mul(mF, rinK)
	c.Mul(c, d)
	c.Sub(c, l) // c = M*Rin*K*D - L

	if a.Sign() <= 0 || c.Sign() >= 0 {
		// c >= 0 means the victim's floor already binds against the
		// unperturbed pool: no front-run is possible without the victim
		// reverting even at x=0.
		return big.NewInt(0), nil
	}

	disc := new(big.Float).Mul(b, b)
	fourAC := new(big.Float).Mul(a, c)
	fourAC.Mul(fourAC, big.NewFloat(4))
	disc.Sub(disc, fourAC)
	if disc.Sign() < 0 {
		return big.NewInt(0), nil
	}

	numerator := new(big.Float).Sqrt(disc)
	numerator.Sub(numerator, b)
	boundary := new(big.Float).Quo(numerator, new(big.Float).Mul(a, big.NewFloat(2)))
	if boundary.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	boundaryInt, _ := boundary.Int(nil)
	boundaryInt.Sub(boundaryInt, big.NewInt(1)) // strict margin off the revert boundary
	if boundaryInt.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	if boundaryInt.Cmp(capInt) > 0 {
		return capInt, nil
	}
	return boundaryInt, nil
}

// SandwichResult is the simulated outcome of a front-run/victim/back-run
// triple against a single pool.
type SandwichResult struct {
	FrontRunAmountIn   *big.Int
	FrontRunAmountOut  *big.Int
	VictimAmountOut    *big.Int
	BackRunAmountIn    *big.Int
	BackRunAmountOut   *big.Int
	ProfitNative       *big.Int // BackRunAmountOut - FrontRunAmountIn, before gas
	VictimSlippageBps  uint32
}

// SimulateV2Sandwich walks the three trades sequentially against the same
// pool, applying each trade's output to the reserves before simulating the
// next, and applies any sell-side token tax to the back-run output. It does
// not model multi-hop paths; each trade is treated as a single pool swap,
// documented as a known simplification (see design notes).
func SimulateV2Sandwich(pool *sandwichcore.Pool, victim *sandwichcore.PendingSwap, frontRunAmountIn *big.Int, sellTaxBps uint32) (*SandwichResult, error) {
	if !pool.ReservesValid() {
		return nil, errors.New("simulator: pool reserves invalid")
	}
	reserveIn := new(big.Int).Set(pool.ReserveA)
	reserveOut := new(big.Int).Set(pool.ReserveB)

	unperturbedOut, err := V2SwapOut(victim.AmountIn, pool.ReserveA, pool.ReserveB, pool.FeeBps)
	if err != nil {
		return nil, err
	}

	frontOut, err := V2SwapOut(frontRunAmountIn, reserveIn, reserveOut, pool.FeeBps)
	if err != nil {
		return nil, err
	}
	reserveIn.Add(reserveIn, frontRunAmountIn)
	reserveOut.Sub(reserveOut, frontOut)

	victimOut, err := V2SwapOut(victim.AmountIn, reserveIn, reserveOut, pool.FeeBps)
	if err != nil {
		return nil, err
	}
	if victim.MinAmountOut != nil && victimOut.Cmp(victim.MinAmountOut) <= 0 {
		return nil, errors.New("simulator: victim swap would revert against front-run reserves")
	}
	reserveIn.Add(reserveIn, victim.AmountIn)
	reserveOut.Sub(reserveOut, victimOut)

	backOut, err := V2SwapOut(frontOut, reserveOut, reserveIn, pool.FeeBps)
	if err != nil {
		return nil, err
	}
	backOut = applyTax(backOut, sellTaxBps)

	profit := new(big.Int).Sub(backOut, frontRunAmountIn)

	// VictimSlippageBps measures the price impact the sandwich itself imposes
	// on the victim: how much worse their fill is than the unperturbed pool
	// would have given them, not how close they came to reverting.
	var slippageBps uint32
	if unperturbedOut.Sign() > 0 {
		diff := new(big.Int).Sub(unperturbedOut, victimOut)
		if diff.Sign() > 0 {
			bps := new(big.Int).Mul(diff, big.NewInt(bpsDenominator))
			bps.Div(bps, unperturbedOut)
			if bps.IsInt64() && bps.Int64() <= math.MaxUint32 {
				slippageBps = uint32(bps.Int64())
			} else {
				slippageBps = math.MaxUint32
			}
		}
	}

	return &SandwichResult{
		FrontRunAmountIn:  frontRunAmountIn,
		FrontRunAmountOut: frontOut,
		VictimAmountOut:   victimOut,
		BackRunAmountIn:   frontOut,
		BackRunAmountOut:  backOut,
		ProfitNative:      profit,
		VictimSlippageBps: slippageBps,
	}, nil
}

func applyTax(amount *big.Int, taxBps uint32) *big.Int {
	if taxBps == 0 {
		return amount
	}
	kept := new(big.Int).Mul(amount, big.NewInt(int64(bpsDenominator-taxBps)))
	return kept.Div(kept, big.NewInt(bpsDenominator))
}
