package mempool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/chainadapter"
)

// defaultIngestionCapacity bounds the per-chain pending-swap queue. Overflow
// drops the oldest queued swap rather than blocking the adapter's read loop,
// since a stalled downstream consumer must never backpressure the network
// read that feeds it.
const defaultIngestionCapacity = 4096

// Decoder turns adapter-level raw bytes into a normalized PendingSwap.
// Returns (nil, nil) for bytes that are not a recognized swap.
type Decoder interface {
	Decode(raw []byte, observedAt int64) (*sandwichcore.PendingSwap, error)
}

// Ingestion pulls RawTx from one chain's adapter, decodes it, and republishes
// recognized swaps on a single bounded, per-chain ordered channel.
type Ingestion struct {
	chain   sandwichcore.Chain
	adapter chainadapter.Adapter
	decoder Decoder
	out     chan sandwichcore.PendingSwap

	dropped  atomic.Uint64
	decodeErr atomic.Uint64
}

// NewIngestion builds an Ingestion for chain. decoder may be nil for chains
// (Solana) whose decode step lives elsewhere; callers then call Publish
// directly.
func NewIngestion(chain sandwichcore.Chain, adapter chainadapter.Adapter, decoder Decoder) *Ingestion {
	return &Ingestion{
		chain:   chain,
		adapter: adapter,
		decoder: decoder,
		out:     make(chan sandwichcore.PendingSwap, defaultIngestionCapacity),
	}
}

// Swaps returns the per-chain ordered stream of decoded pending swaps.
func (in *Ingestion) Swaps() <-chan sandwichcore.PendingSwap { return in.out }

// Dropped returns the count of swaps dropped due to queue overflow.
func (in *Ingestion) Dropped() uint64 { return in.dropped.Load() }

// DecodeErrors returns the count of raw transactions that failed to decode.
func (in *Ingestion) DecodeErrors() uint64 { return in.decodeErr.Load() }

// Run subscribes to the adapter's pending stream and decodes/republishes
// until ctx is cancelled or the adapter's stream closes.
func (in *Ingestion) Run(ctx context.Context) error {
	raws, err := in.adapter.SubscribePendingTxs(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-raws:
			if !ok {
				return nil
			}
			if in.decoder == nil {
				continue
			}
			swap, err := in.decoder.Decode(raw.Raw, raw.ObservedAt)
			if err != nil {
				in.decodeErr.Add(1)
				continue
			}
			if swap == nil {
				continue
			}
			in.Publish(*swap)
		}
	}
}

// Publish enqueues swap, dropping the oldest queued swap on overflow.
func (in *Ingestion) Publish(swap sandwichcore.PendingSwap) {
	select {
	case in.out <- swap:
		return
	default:
	}
	select {
	case <-in.out:
		in.dropped.Add(1)
	default:
	}
	select {
	case in.out <- swap:
	default:
	}
}

// Manager runs one Ingestion per chain and fans their outputs into a single
// consumer-facing channel, tagging nothing extra since PendingSwap already
// carries its Chain.
type Manager struct {
	mu         sync.Mutex
	ingestions map[sandwichcore.Chain]*Ingestion
	merged     chan sandwichcore.PendingSwap
}

// NewManager builds an empty multi-chain ingestion manager.
func NewManager() *Manager {
	return &Manager{
		ingestions: make(map[sandwichcore.Chain]*Ingestion),
		merged:     make(chan sandwichcore.PendingSwap, defaultIngestionCapacity),
	}
}

// Add registers and starts ingestion for one chain.
func (m *Manager) Add(ctx context.Context, ing *Ingestion) {
	m.mu.Lock()
	m.ingestions[ing.chain] = ing
	m.mu.Unlock()

	go func() {
		for swap := range ing.Swaps() {
			select {
			case m.merged <- swap:
			default:
				select {
				case <-m.merged:
				default:
				}
				select {
				case m.merged <- swap:
				default:
				}
			}
		}
	}()
	go func() {
		_ = ing.Run(ctx)
	}()
}

// Swaps returns the merged, multi-chain pending swap stream.
func (m *Manager) Swaps() <-chan sandwichcore.PendingSwap { return m.merged }

// Ingestion returns the per-chain ingestion, or nil if unregistered.
func (m *Manager) Ingestion(chain sandwichcore.Chain) *Ingestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ingestions[chain]
}
