// Package monitor resolves a Submitted Bundle's terminal state by polling
// the chain adapter for the back-run transaction's on-chain status, then
// confirming the landed block/slot actually places the front-run and
// back-run adjacent to the victim before declaring the bundle Landed.
package monitor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/chainadapter"
)

// Config bounds how long a bundle is tracked before it is declared Expired.
type Config struct {
	PollInterval time.Duration
	// ExpireAfterBlocksOrSlots is the number of blocks/slots past
	// TargetBlockOrSlot after which an unresolved bundle is marked Expired.
	ExpireAfterBlocksOrSlots uint64
}

// DefaultConfig returns a 1s poll interval and a 3-block/slot expiry window.
func DefaultConfig() Config {
	return Config{PollInterval: time.Second, ExpireAfterBlocksOrSlots: 3}
}

// Monitor tracks Submitted bundles on one chain to resolution.
type Monitor struct {
	cfg     Config
	chain   sandwichcore.Chain
	adapter chainadapter.Adapter
}

// New builds a Monitor for chain.
func New(cfg Config, chain sandwichcore.Chain, adapter chainadapter.Adapter) *Monitor {
	return &Monitor{cfg: cfg, chain: chain, adapter: adapter}
}

// Outcome is the resolved terminal state of one tracked bundle.
type Outcome struct {
	BundleID string
	State    sandwichcore.BundleState
	Reason   string
}

// Track polls until bundle's back-run transaction lands, the expiry window
// passes, or ctx is cancelled, then returns the resolved Outcome. It never
// mutates bundle directly; callers apply bundle.Transition themselves so the
// state machine's invariants stay enforced at a single call site.
func (m *Monitor) Track(ctx context.Context, bundle *sandwichcore.Bundle) (*Outcome, error) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, err := m.adapter.GetTxStatus(ctx, bundle.BackRun.Hash)
			if err != nil {
				status = chainadapter.TxStatusUnknown // transient adapter error, keep polling until expiry
			}
			switch status {
			case chainadapter.TxStatusIncluded:
				landed, err := m.verifyAdjacency(ctx, bundle)
				if err != nil {
					continue // transient adapter error, keep polling until expiry
				}
				if landed {
					return &Outcome{BundleID: bundle.ID, State: sandwichcore.BundleLanded}, nil
				}
				return &Outcome{BundleID: bundle.ID, State: sandwichcore.BundleMissed, Reason: "back_run_included_not_adjacent_to_victim"}, nil
			case chainadapter.TxStatusDropped:
				return &Outcome{BundleID: bundle.ID, State: sandwichcore.BundleMissed, Reason: "back_run_dropped"}, nil
			}

			current, err := m.adapter.GetBlockNumberOrSlot(ctx)
			if err != nil {
				continue
			}
			if current > bundle.TargetBlockOrSlot+m.cfg.ExpireAfterBlocksOrSlots {
				return &Outcome{BundleID: bundle.ID, State: sandwichcore.BundleExpired, Reason: "expiry_window_elapsed"}, nil
			}
		}
	}
}

// verifyAdjacency scans blocks/slots from bundle.TargetBlockOrSlot up to the
// current chain head for one that contains the front-run and back-run hashes
// immediately surrounding the victim's hash. A back-run transaction being
// Included on its own only means it landed somewhere — it says nothing about
// whether it landed next to the victim it was meant to sandwich, since a
// relay can reorder or split a bundle, or another searcher's transaction can
// land between the legs.
func (m *Monitor) verifyAdjacency(ctx context.Context, bundle *sandwichcore.Bundle) (bool, error) {
	current, err := m.adapter.GetBlockNumberOrSlot(ctx)
	if err != nil {
		return false, err
	}
	for block := bundle.TargetBlockOrSlot; block <= current; block++ {
		txs, err := m.adapter.GetBlockTransactions(ctx, block)
		if err != nil {
			continue
		}
		if sandwichIsAdjacent(txs, bundle) {
			return true, nil
		}
	}
	return false, nil
}

// sandwichIsAdjacent reports whether txs places bundle's front-run
// immediately before the victim and its back-run immediately after, with
// nothing else wedged in between.
func sandwichIsAdjacent(txs []string, bundle *sandwichcore.Bundle) bool {
	frontIdx, victimIdx, backIdx := -1, -1, -1
	for i, hash := range txs {
		switch hash {
		case bundle.FrontRun.Hash:
			frontIdx = i
		case bundle.Victim.Hash:
			victimIdx = i
		case bundle.BackRun.Hash:
			backIdx = i
		}
	}
	if frontIdx < 0 || victimIdx < 0 || backIdx < 0 {
		return false
	}
	return frontIdx == victimIdx-1 && backIdx == victimIdx+1
}

// RealizedProfit reports the profit a landed bundle actually captured, given
// the back-run transaction's receipt-derived output amount. amountOut is
// chain/tx-specific to decode, so callers supply it; Monitor only owns the
// polling loop.
func RealizedProfit(frontRunAmountIn, backRunAmountOut *big.Int) (*big.Int, error) {
	if frontRunAmountIn == nil || backRunAmountOut == nil {
		return nil, fmt.Errorf("monitor: nil amount")
	}
	return new(big.Int).Sub(backRunAmountOut, frontRunAmountIn), nil
}
