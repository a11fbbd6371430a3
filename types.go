// Package sandwichcore implements the MEV Sandwich Core: a multi-chain engine
// that ingests pending swaps, detects sandwich opportunities against AMM pools,
// builds front-run/back-run bundles and submits them to private relays.
package sandwichcore

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Chain identifies a supported blockchain. Adding a chain means adding a
// ChainAdapter implementation (pkg/chainadapter) plus a relay submitter
// (pkg/relay); the core itself never branches on Chain beyond this tag.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
	ChainSolana   Chain = "solana"
)

// ChainFeatures describes the capability set of a Chain. The builder and
// relay submitters do not consult it; strategy selection in this repository
// is wired per chain in cmd/sandwichcore.
type ChainFeatures struct {
	SupportsEIP1559        bool
	SupportsPrivateBundles bool
	NativeLamportsOrWei    string // "wei" or "lamports", for logging/metrics labels
	BlockTimeMS            int
}

// Features returns the fixed capability record for a chain. Unknown chains
// return the zero value; callers should treat that as "unsupported".
func (c Chain) Features() ChainFeatures {
	switch c {
	case ChainEthereum:
		return ChainFeatures{SupportsEIP1559: true, SupportsPrivateBundles: true, NativeLamportsOrWei: "wei", BlockTimeMS: 12000}
	case ChainBSC:
		return ChainFeatures{SupportsEIP1559: false, SupportsPrivateBundles: true, NativeLamportsOrWei: "wei", BlockTimeMS: 3000}
	case ChainSolana:
		return ChainFeatures{SupportsEIP1559: false, SupportsPrivateBundles: true, NativeLamportsOrWei: "lamports", BlockTimeMS: 400}
	default:
		return ChainFeatures{}
	}
}

// Protocol identifies the AMM/router dialect a PendingSwap was decoded against.
type Protocol string

const (
	ProtocolUniswapV2 Protocol = "univ2"
	ProtocolUniswapV3 Protocol = "univ3"
	ProtocolPancake    Protocol = "pancake"
	ProtocolRaydium    Protocol = "raydium"
	ProtocolOrca       Protocol = "orca"
	ProtocolJupiter    Protocol = "jupiter"
)

// PendingSwap is the normalized, chain-agnostic view of a decoded mempool (or
// Solana pre-confirmation) swap. It owns its original signed bytes so the
// builder can splice the victim transaction into a bundle verbatim.
type PendingSwap struct {
	TxHash       string
	Chain        Chain
	From         string
	Router       string
	Protocol     Protocol
	TokenIn      string
	TokenOut     string
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Path         []string // ordered token list, Path[0]==TokenIn, Path[len-1]==TokenOut
	Deadline     int64    // unix seconds, 0 if the protocol has none
	ObservedAt   int64    // unix nanoseconds (wall clock, time.Now().UnixNano())
	GasPrice     *big.Int // wei priority bid, or lamports compute-unit price
	Raw          []byte   // original signed transaction bytes, preserved verbatim
}

// Validate enforces the PendingSwap invariants from the data model: the path
// must start at TokenIn, end at TokenOut, and contain at least one hop.
func (p *PendingSwap) Validate() error {
	if len(p.Path) < 2 {
		return errors.New("sandwichcore: path must have at least 2 tokens")
	}
	if p.Path[0] != p.TokenIn {
		return errors.New("sandwichcore: path[0] must equal token_in")
	}
	if p.Path[len(p.Path)-1] != p.TokenOut {
		return errors.New("sandwichcore: path[last] must equal token_out")
	}
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return errors.New("sandwichcore: amount_in must be positive")
	}
	return nil
}

// Pool is the cached state of an AMM pool, keyed externally by (Chain,
// Protocol, PoolID). V2-style pools populate Reserves only; V3-style pools
// additionally populate the tick window.
type Pool struct {
	Chain                Chain
	Protocol             Protocol
	PoolID               string
	ReserveA             *big.Int
	ReserveB             *big.Int
	FeeBps               uint32
	LastRefreshMS        int64
	LiquidityUSDEstimate float64

	// Concentrated-liquidity fields. Empty/zero for V2-style pools.
	Tick           Tick
	Ticks          map[int32]*TickInfo // sparse, cached window around Tick.Current
	SqrtPriceX96   *big.Int
}

// Tick is the active-tick summary returned by a concentrated-liquidity pool's
// slot0-equivalent read.
type Tick struct {
	Current         int32
	ActiveLiquidity *big.Int
}

// TickInfo is the liquidity delta at one initialized tick, enough to walk a
// bounded swap across the cached window without guessing beyond it.
type TickInfo struct {
	LiquidityNet *big.Int
}

// ReservesValid reports whether a V2-style pool has the strictly positive
// reserves required before it may back an Opportunity.
func (p *Pool) ReservesValid() bool {
	return p.ReserveA != nil && p.ReserveB != nil && p.ReserveA.Sign() > 0 && p.ReserveB.Sign() > 0
}

// IsConcentrated reports whether the pool carries a tick window, i.e. should
// be simulated with V3-style math instead of constant-product math.
func (p *Pool) IsConcentrated() bool {
	return p.Ticks != nil
}

// TokenMeta is the cached, chain-scoped metadata for one token address.
type TokenMeta struct {
	Chain         Chain
	Address       string
	Decimals      uint8
	Symbol        string
	Verified      bool
	TaxBuyBps     uint32
	TaxSellBps    uint32
	IsBlacklisted bool
}

// ExceedsTax reports whether the combined buy+sell tax exceeds maxTaxBps.
func (t *TokenMeta) ExceedsTax(maxTaxBps uint32) bool {
	return t.TaxBuyBps+t.TaxSellBps > maxTaxBps
}

// RejectReason enumerates the structured reasons an Opportunity never made it
// to a Bundle. Collaborators (metrics/logging) key off this, so it must stay
// a closed, stable set.
type RejectReason string

const (
	RejectNoPool            RejectReason = "no_pool"
	RejectBlacklist          RejectReason = "blacklist"
	RejectTax                RejectReason = "tax"
	RejectSlippageFloor      RejectReason = "slippage_floor"
	RejectUnprofitable       RejectReason = "unprofitable"
	RejectRiskGate           RejectReason = "risk_gate"
	RejectDeadlineExceeded   RejectReason = "deadline_exceeded"
)

// Opportunity is a scored, single-pool sandwich candidate derived from one
// PendingSwap. It is owned by the detector until handed to exactly one
// builder invocation.
type Opportunity struct {
	ID                     string
	Victim                 PendingSwap
	Pool                   Pool
	EstimatedProfitNative  *big.Int
	EstimatedProfitUSD     float64
	FrontRunAmount         *big.Int
	BackRunAmount          *big.Int
	PriceImpactBps         uint32
	Confidence             float64 // 0..1
	PriorityScore          float64
	DetectedAt             int64 // unix nanoseconds (wall clock)
}

// Validate enforces the Opportunity invariants: profit above the configured
// floor, and the front-run amount within the configured fraction of the
// victim's input.
func (o *Opportunity) Validate(minProfitNative *big.Int, maxFrontRunFraction float64) error {
	if o.EstimatedProfitNative == nil || o.EstimatedProfitNative.Cmp(minProfitNative) < 0 {
		return fmt.Errorf("sandwichcore: estimated profit %s below floor %s", o.EstimatedProfitNative, minProfitNative)
	}
	frac, ok := new(big.Rat).SetString(strconv.FormatFloat(maxFrontRunFraction, 'g', -1, 64))
	if !ok {
		return errors.New("sandwichcore: max_front_run_fraction must be a finite number")
	}
	maxFrontRun := new(big.Rat).Mul(new(big.Rat).SetInt(o.Victim.AmountIn), frac)
	if new(big.Rat).SetInt(o.FrontRunAmount).Cmp(maxFrontRun) > 0 {
		return errors.New("sandwichcore: front_run_amount exceeds max_front_run_fraction")
	}
	return nil
}

// BundleState is a Bundle's lifecycle position. Transitions are strictly
// monotonic; Landed, Missed, Expired and Failed are terminal.
type BundleState string

const (
	BundlePending   BundleState = "pending"
	BundleSubmitted BundleState = "submitted"
	BundleLanded    BundleState = "landed"
	BundleMissed    BundleState = "missed"
	BundleExpired   BundleState = "expired"
	BundleFailed    BundleState = "failed"
)

// IsTerminal reports whether state has no further valid transition.
func (s BundleState) IsTerminal() bool {
	switch s {
	case BundleLanded, BundleMissed, BundleExpired, BundleFailed:
		return true
	default:
		return false
	}
}

var validBundleTransitions = map[BundleState]map[BundleState]bool{
	BundlePending:   {BundleSubmitted: true, BundleFailed: true},
	BundleSubmitted: {BundleLanded: true, BundleMissed: true, BundleExpired: true, BundleFailed: true},
}

// CanTransition reports whether moving from `from` to `to` is a legal Bundle
// state transition per the §4.6 state machine.
func CanTransition(from, to BundleState) bool {
	return validBundleTransitions[from][to]
}

// BundleTx is one of the three transactions in a sandwich bundle.
type BundleTx struct {
	Signed []byte // signed, serialized transaction bytes ready for relay submission
	Hash   string
}

// Bundle is the atomic front-run/victim/back-run triple submitted to a relay.
// It is owned by the submitter until it reaches a terminal state.
type Bundle struct {
	ID               string
	Chain            Chain
	OpportunityID    string
	FrontRun         BundleTx
	Victim           BundleTx
	BackRun          BundleTx
	TargetBlockOrSlot uint64
	TipAmount        *big.Int
	State            BundleState
	CreatedAt        int64
	SubmittedAt      int64
	ResolvedAt       int64
}

// Txs returns the three bundle transactions in submission order.
func (b *Bundle) Txs() []BundleTx {
	return []BundleTx{b.FrontRun, b.Victim, b.BackRun}
}

// Transition moves the bundle to `to`, returning an error if the move is not
// permitted by the state machine. Terminal states set ResolvedAt.
func (b *Bundle) Transition(to BundleState, nowNanos int64) error {
	if !CanTransition(b.State, to) {
		return fmt.Errorf("sandwichcore: illegal bundle transition %s -> %s", b.State, to)
	}
	b.State = to
	if to == BundleSubmitted {
		b.SubmittedAt = nowNanos
	}
	if to.IsTerminal() {
		b.ResolvedAt = nowNanos
	}
	return nil
}

// RelaySubmission records one attempt to land a Bundle through one relay.
// A Bundle may accumulate many of these across retries and multi-relay races.
type RelaySubmission struct {
	BundleID  string
	RelayName string
	RequestID string
	Attempt   int
	LatencyMS int64
	Err       error
}

// Outbound events. Each is a flat, serializable record observed by
// metrics/logging collaborators (see internal/events for the bus that fans
// these out).

type PendingObserved struct {
	Chain                Chain
	TxHash               string
	LatencyFromNetworkMS int64
}

type OpportunityDetected struct {
	Opportunity Opportunity
}

type OpportunityRejected struct {
	VictimHash string
	Reason     RejectReason
}

type BundleSubmittedEvent struct {
	BundleID  string
	Relay     string
	Attempt   int
	LatencyMS int64
}

type OutcomeLanded struct {
	BundleID           string
	RealizedProfitNative *big.Int
	RealizedProfitUSD    float64
	GasUsed              uint64
}

type OutcomeMissed struct {
	BundleID string
	Reason   string
}

type ChainPaused struct {
	Chain  Chain
	Reason string
}

// nowMonotonicNanos returns the current wall-clock time as unix nanoseconds
// (time.Now().UnixNano()); despite its name, the value is not monotonic.
// Nothing in this repository calls it: adapters stamp ObservedAt with
// time.Now().UnixNano() directly.
func nowMonotonicNanos() int64 {
	return time.Now().UnixNano()
}
