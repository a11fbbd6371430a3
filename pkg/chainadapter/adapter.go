// Package chainadapter gives every supported chain a uniform capability set
// (subscribe to pending transactions, read pool state, estimate fees, send
// raw transactions) backed by a failover pool of RPC providers. Callers never
// see provider selection or retries; they see ChainUnavailable when every
// provider is exhausted.
package chainadapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hulrap/sandwichcore"
)

// RawTx is an undecoded pending transaction observed on a chain's mempool
// (or, for Solana, a pre-confirmation proxy stream).
type RawTx struct {
	Hash       string
	Raw        []byte
	ObservedAt int64 // unix ns (wall clock)
}

// PoolStateView is the adapter-level read of on-chain pool state, before the
// pool cache wraps it with TTL/single-flight semantics.
type PoolStateView struct {
	ReserveA     *big.Int
	ReserveB     *big.Int
	FeeBps       uint32
	SqrtPriceX96 *big.Int // nil for V2-style pools
	Tick         int32
}

// TxStatus is the coarse on-chain status of a previously sent transaction.
type TxStatus string

const (
	TxStatusUnknown   TxStatus = "unknown"
	TxStatusPending   TxStatus = "pending"
	TxStatusIncluded  TxStatus = "included"
	TxStatusDropped   TxStatus = "dropped"
)

// ChainUnavailable is returned when every configured provider for a chain is
// unhealthy. Callers must pause ingestion for that chain, not crash.
type ChainUnavailable struct {
	Chain sandwichcore.Chain
}

func (e *ChainUnavailable) Error() string {
	return fmt.Sprintf("chainadapter: chain %s unavailable, all providers exhausted", e.Chain)
}

// Adapter is the uniform capability set every chain implementation exposes.
type Adapter interface {
	Chain() sandwichcore.Chain

	// SubscribePendingTxs returns a lazy, infinite, non-restartable stream of
	// raw pending transactions, deduplicated across the provider's backing
	// WebSocket connections. Closing ctx ends the stream.
	SubscribePendingTxs(ctx context.Context) (<-chan RawTx, error)

	GetPoolState(ctx context.Context, protocol sandwichcore.Protocol, poolID string) (*PoolStateView, error)
	EstimateBaseFee(ctx context.Context) (*big.Int, error)
	GetBlockNumberOrSlot(ctx context.Context) (uint64, error)
	SendRawTx(ctx context.Context, signed []byte) (string, error)
	GetTxStatus(ctx context.Context, hash string) (TxStatus, error)

	// GetBlockTransactions returns the ordered transaction hashes (EVM) or
	// signatures (Solana) included in blockOrSlot, so Monitor can confirm a
	// bundle's front-run and back-run legs landed adjacent to the victim
	// instead of trusting each leg's inclusion status in isolation.
	GetBlockTransactions(ctx context.Context, blockOrSlot uint64) ([]string, error)
}

// Provider is one RPC/WS endpoint in a chain's failover pool.
type Provider struct {
	Name        string
	Cost        float64
	RateLimit   int // requests/sec, 0 = unbounded
	limiter     *rate.Limiter
	healthy     atomic.Bool
	degradedAt  atomic.Int64 // unix nanos; 0 if not degraded
	latencyEMA  atomic.Int64 // nanoseconds

	// Call is the provider-specific RPC invocation. Implementations (eth,
	// solana) close over their own client; the pool never knows the
	// transport.
	Call func(ctx context.Context, method string, args ...any) (any, error)
}

func newProvider(name string, cost float64, rateLimit int, call func(ctx context.Context, method string, args ...any) (any, error)) *Provider {
	p := &Provider{Name: name, Cost: cost, RateLimit: rateLimit, Call: call}
	p.healthy.Store(true)
	if rateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	}
	return p
}

func (p *Provider) markDegraded(cooldown time.Duration) {
	p.healthy.Store(false)
	p.degradedAt.Store(time.Now().Add(cooldown).UnixNano())
}

func (p *Provider) Healthy() bool {
	if p.healthy.Load() {
		return true
	}
	if time.Now().UnixNano() >= p.degradedAt.Load() {
		p.healthy.Store(true)
		return true
	}
	return false
}

func (p *Provider) recordLatency(d time.Duration) {
	const alpha = 0.2
	prev := p.latencyEMA.Load()
	next := int64(alpha*float64(d) + (1-alpha)*float64(prev))
	p.latencyEMA.Store(next)
}

func (p *Provider) LatencyEMA() time.Duration {
	return time.Duration(p.latencyEMA.Load())
}

// FailoverPool holds a chain's ordered providers and implements the §4.1
// failover policy: target the healthiest provider, retry on the next
// provider on error/timeout up to maxAttempts, mark rate-limited providers
// degraded immediately, and reset via a periodic health probe.
type FailoverPool struct {
	chain       sandwichcore.Chain
	mu          sync.RWMutex
	providers   []*Provider
	perCallBudget time.Duration
	maxAttempts int
	cooldown    time.Duration

	stopProbe context.CancelFunc
}

// NewFailoverPool builds a pool and starts its background health probe
// (every 10s, per §4.1) that resets degraded providers whose cooldown has
// elapsed back into rotation eagerly rather than waiting for the next call.
func NewFailoverPool(chain sandwichcore.Chain, providers []*Provider, perCallBudget time.Duration, maxAttempts int) *FailoverPool {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	fp := &FailoverPool{
		chain:         chain,
		providers:     providers,
		perCallBudget: perCallBudget,
		maxAttempts:   maxAttempts,
		cooldown:      30 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	fp.stopProbe = cancel
	go fp.probeLoop(ctx)
	return fp
}

func (fp *FailoverPool) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fp.mu.RLock()
			for _, p := range fp.providers {
				_ = p.Healthy() // side effect: un-degrades expired cooldowns
			}
			fp.mu.RUnlock()
		}
	}
}

// Close stops the background health probe.
func (fp *FailoverPool) Close() {
	fp.stopProbe()
}

func (fp *FailoverPool) orderedHealthy() []*Provider {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	out := make([]*Provider, 0, len(fp.providers))
	for _, p := range fp.providers {
		if p.Healthy() {
			out = append(out, p)
		}
	}
	// Healthiest first: lowest latency EMA, configured order among ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].LatencyEMA() < out[j].LatencyEMA() })
	return out
}

// rateLimitError marks a provider degraded for the cooldown window and is a
// sentinel type op functions may wrap to signal "do not just retry, the
// provider told us to back off".
type rateLimitError struct{ err error }

func (e *rateLimitError) Error() string { return e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

// RateLimited wraps err so the pool immediately degrades the provider that
// returned it instead of waiting for a timeout.
func RateLimited(err error) error { return &rateLimitError{err} }

// Call executes method against the healthiest available provider, failing
// over to the next healthy provider on error or per-call timeout, up to
// maxAttempts. Returns *ChainUnavailable if no provider succeeds.
func (fp *FailoverPool) Call(ctx context.Context, method string, args ...any) (any, error) {
	providers := fp.orderedHealthy()
	if len(providers) == 0 {
		return nil, &ChainUnavailable{Chain: fp.chain}
	}

	var lastErr error
	attempts := fp.maxAttempts
	if attempts > len(providers) {
		attempts = len(providers)
	}
	for i := 0; i < attempts; i++ {
		p := providers[i]
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				lastErr = err
				continue
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, fp.perCallBudget)
		start := time.Now()
		result, err := p.Call(callCtx, method, args...)
		cancel()
		if err == nil {
			p.recordLatency(time.Since(start))
			return result, nil
		}
		lastErr = err
		var rle *rateLimitError
		if errors.As(err, &rle) {
			p.markDegraded(fp.cooldown)
		} else if callCtx.Err() != nil {
			p.markDegraded(5 * time.Second)
		}
	}
	return nil, fmt.Errorf("chainadapter: all %d attempts failed: %w", attempts, lastErr)
}
