package sandwichcore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hulrap/sandwichcore/internal/events"
	"github.com/hulrap/sandwichcore/pkg/builder"
	"github.com/hulrap/sandwichcore/pkg/chainadapter"
	"github.com/hulrap/sandwichcore/pkg/detector"
	"github.com/hulrap/sandwichcore/pkg/mempool"
	"github.com/hulrap/sandwichcore/pkg/monitor"
	"github.com/hulrap/sandwichcore/pkg/relay"
	"github.com/hulrap/sandwichcore/pkg/riskgate"
)

// ChainRuntime bundles one configured chain's full pipeline: the adapter
// that feeds it, the detector that scores opportunities against it, the
// builder that assembles bundles, the relays it submits to, and the monitor
// that tracks them to resolution. Core owns one of these per configured
// chain and never branches on Chain beyond routing to the right runtime.
type ChainRuntime struct {
	Chain     Chain
	Adapter   chainadapter.Adapter
	Ingestion *mempool.Ingestion
	Detector  *detector.Detector
	Builder   *builder.Builder
	Router    *relay.Router
	Monitor   *monitor.Monitor

	paused   bool
	pausedMu sync.Mutex
}

// Pause stops this chain's opportunities from reaching the builder without
// tearing down its adapter connections, used when a chain's provider pool
// goes unhealthy or an operator-triggered kill switch fires.
func (r *ChainRuntime) Pause(reason string) {
	r.pausedMu.Lock()
	r.paused = true
	r.pausedMu.Unlock()
}

// Resume clears a prior Pause.
func (r *ChainRuntime) Resume() {
	r.pausedMu.Lock()
	r.paused = false
	r.pausedMu.Unlock()
}

func (r *ChainRuntime) isPaused() bool {
	r.pausedMu.Lock()
	defer r.pausedMu.Unlock()
	return r.paused
}

// Core is the MEV Sandwich Core engine: it owns one ChainRuntime per
// configured chain, a shared risk gate, and the event bus every stage
// publishes outcomes to. It never persists state; every observation and
// outcome is emitted on Bus for a collaborator to store if it wants to.
type Core struct {
	Bus       *events.Bus
	RiskGate  riskgate.Gate
	runtimes  map[Chain]*ChainRuntime
	logger    *slog.Logger

	shutdownGrace time.Duration
}

// New builds a Core. gate may be riskgate.AllowAll{} if no external risk
// policy is configured. A nil logger defaults to slog.Default().
func New(gate riskgate.Gate, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = riskgate.AllowAll{}
	}
	return &Core{
		Bus:           events.New(),
		RiskGate:      gate,
		runtimes:      make(map[Chain]*ChainRuntime),
		logger:        logger,
		shutdownGrace: 5 * time.Second,
	}
}

// AddChain registers a chain's runtime. Must be called before Run.
func (c *Core) AddChain(rt *ChainRuntime) {
	c.runtimes[rt.Chain] = rt
}

// Runtime returns the registered runtime for chain, or nil.
func (c *Core) Runtime(chain Chain) *ChainRuntime {
	return c.runtimes[chain]
}

// Run starts every registered chain's pipeline and blocks until ctx is
// cancelled, then drains in-flight work for up to a fixed 5s shutdown grace
// window before returning. Core does not read GlobalConfig.ShutdownGraceSec.
func (c *Core) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, rt := range c.runtimes {
		wg.Add(1)
		go func(rt *ChainRuntime) {
			defer wg.Done()
			c.runChain(ctx, rt)
		}(rt)
	}

	<-ctx.Done()
	c.logger.Info("sandwichcore: shutdown signal received, draining", "grace", c.shutdownGrace)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(c.shutdownGrace):
		return fmt.Errorf("sandwichcore: shutdown grace window elapsed with chains still draining")
	}
}

// runChain is the per-chain pipeline loop: consume decoded pending swaps,
// detect opportunities, submit to the risk gate, build and submit bundles,
// and hand resolution off to the monitor.
func (c *Core) runChain(ctx context.Context, rt *ChainRuntime) {
	go func() {
		if err := rt.Ingestion.Run(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("sandwichcore: ingestion stopped", "chain", rt.Chain, "error", err)
			rt.Pause("ingestion_failure")
			c.Bus.PublishChainPaused(events.ChainPaused{Chain: string(rt.Chain), Reason: "ingestion_failure"})
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case swap, ok := <-rt.Ingestion.Swaps():
			if !ok {
				return
			}
			if rt.isPaused() {
				continue
			}
			c.Bus.PublishPendingObserved(events.PendingObserved{
				Chain:                string(swap.Chain),
				TxHash:               swap.TxHash,
				LatencyFromNetworkMS: (time.Now().UnixNano() - swap.ObservedAt) / int64(time.Millisecond),
			})
			c.handleSwap(ctx, rt, swap)
		}
	}
}

func (c *Core) handleSwap(ctx context.Context, rt *ChainRuntime, swap PendingSwap) {
	opp, err := rt.Detector.Detect(ctx, &swap)
	if err != nil {
		var rejection *detector.Rejection
		if asRejection(err, &rejection) {
			c.Bus.PublishOpportunityRejected(events.OpportunityRejected{
				VictimHash: rejection.VictimHash,
				Reason:     string(rejection.Reason),
			})
		}
		return
	}

	decision, err := c.RiskGate.Evaluate(ctx, opp)
	if err != nil {
		c.logger.Error("sandwichcore: risk gate error", "chain", rt.Chain, "error", err)
		return
	}
	switch decision.Verdict {
	case riskgate.VerdictReject:
		c.Bus.PublishOpportunityRejected(events.OpportunityRejected{
			VictimHash: opp.Victim.TxHash,
			Reason:     string(decision.Reason),
		})
		return
	case riskgate.VerdictReduce:
		if decision.MaxAmount != nil && decision.MaxAmount.Cmp(opp.FrontRunAmount) < 0 {
			resimmed, err := rt.Detector.Resimulate(ctx, opp, decision.MaxAmount)
			if err != nil {
				var rejection *detector.Rejection
				if asRejection(err, &rejection) {
					c.Bus.PublishOpportunityRejected(events.OpportunityRejected{
						VictimHash: rejection.VictimHash,
						Reason:     string(rejection.Reason),
					})
				}
				return
			}
			opp = resimmed
		}
	}

	target, err := rt.Adapter.GetBlockNumberOrSlot(ctx)
	if err != nil {
		c.logger.Error("sandwichcore: fetch target block/slot", "chain", rt.Chain, "error", err)
		return
	}
	baseFee, err := rt.Adapter.EstimateBaseFee(ctx)
	if err != nil {
		c.logger.Error("sandwichcore: estimate base fee", "chain", rt.Chain, "error", err)
		return
	}

	bundle, err := rt.Builder.Build(ctx, opp, baseFee.Uint64(), target+1)
	if err != nil {
		c.logger.Error("sandwichcore: build bundle", "chain", rt.Chain, "error", err)
		return
	}

	c.submitAndTrack(ctx, rt, bundle)
}

func (c *Core) submitAndTrack(ctx context.Context, rt *ChainRuntime, bundle *Bundle) {
	for _, submitter := range rt.Router.Submitters() {
		submissions, err := relay.SubmitWithRetry(ctx, submitter, bundle)
		for _, s := range submissions {
			c.Bus.PublishBundleSubmitted(events.BundleSubmitted{
				BundleID: s.BundleID, Relay: s.RelayName, Attempt: s.Attempt, LatencyMS: s.LatencyMS,
			})
		}
		if err != nil {
			continue
		}
		if err := bundle.Transition(BundleSubmitted, time.Now().UnixNano()); err != nil {
			c.logger.Error("sandwichcore: illegal bundle transition", "bundle", bundle.ID, "error", err)
			return
		}
		break
	}
	if bundle.State != BundleSubmitted {
		_ = bundle.Transition(BundleFailed, time.Now().UnixNano())
		c.Bus.PublishOutcomeMissed(events.OutcomeMissed{BundleID: bundle.ID, Reason: "all_relays_failed"})
		return
	}

	outcome, err := rt.Monitor.Track(ctx, bundle)
	if err != nil {
		return // context cancelled during shutdown drain
	}
	if err := bundle.Transition(outcome.State, time.Now().UnixNano()); err != nil {
		c.logger.Error("sandwichcore: illegal terminal transition", "bundle", bundle.ID, "error", err)
		return
	}

	switch outcome.State {
	case BundleLanded:
		// Realized profit requires decoding the back-run transaction's
		// receipt logs, which is chain/protocol specific and owned by a
		// collaborator outside the Core; the landed event carries the
		// bundle id so that collaborator can correlate it.
		c.Bus.PublishOutcomeLanded(events.OutcomeLanded{BundleID: bundle.ID})
	default:
		c.Bus.PublishOutcomeMissed(events.OutcomeMissed{BundleID: bundle.ID, Reason: outcome.Reason})
	}
}

func asRejection(err error, target **detector.Rejection) bool {
	rejection, ok := err.(*detector.Rejection)
	if !ok {
		return false
	}
	*target = rejection
	return true
}
