package monitor

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/chainadapter"
)

// fakeAdapter is a minimal chainadapter.Adapter stub driven entirely by its
// exported fields, so each test wires only the behavior it exercises.
type fakeAdapter struct {
	chain sandwichcore.Chain

	txStatus    chainadapter.TxStatus
	txStatusErr error

	blockNumber uint64
	blockErr    error

	blockTxs    map[uint64][]string
	blockTxsErr error
}

func (f *fakeAdapter) Chain() sandwichcore.Chain { return f.chain }

func (f *fakeAdapter) SubscribePendingTxs(ctx context.Context) (<-chan chainadapter.RawTx, error) {
	return nil, nil
}

func (f *fakeAdapter) GetPoolState(ctx context.Context, protocol sandwichcore.Protocol, poolID string) (*chainadapter.PoolStateView, error) {
	return nil, nil
}

func (f *fakeAdapter) EstimateBaseFee(ctx context.Context) (*big.Int, error) { return nil, nil }

func (f *fakeAdapter) GetBlockNumberOrSlot(ctx context.Context) (uint64, error) {
	return f.blockNumber, f.blockErr
}

func (f *fakeAdapter) SendRawTx(ctx context.Context, signed []byte) (string, error) { return "", nil }

func (f *fakeAdapter) GetTxStatus(ctx context.Context, hash string) (chainadapter.TxStatus, error) {
	return f.txStatus, f.txStatusErr
}

func (f *fakeAdapter) GetBlockTransactions(ctx context.Context, blockOrSlot uint64) ([]string, error) {
	if f.blockTxsErr != nil {
		return nil, f.blockTxsErr
	}
	return f.blockTxs[blockOrSlot], nil
}

func testBundle() *sandwichcore.Bundle {
	return &sandwichcore.Bundle{
		ID:                "bundle-1",
		Chain:             sandwichcore.ChainEthereum,
		FrontRun:          sandwichcore.BundleTx{Hash: "0xfront"},
		Victim:            sandwichcore.BundleTx{Hash: "0xvictim"},
		BackRun:           sandwichcore.BundleTx{Hash: "0xback"},
		TargetBlockOrSlot: 100,
	}
}

func TestSandwichIsAdjacent_trueWhenLegsFlankVictim(t *testing.T) {
	bundle := testBundle()
	txs := []string{"0xunrelated", "0xfront", "0xvictim", "0xback", "0xtrailing"}
	require.True(t, sandwichIsAdjacent(txs, bundle))
}

func TestSandwichIsAdjacent_falseWhenAnotherTxWedgedBetween(t *testing.T) {
	bundle := testBundle()
	txs := []string{"0xfront", "0xinterloper", "0xvictim", "0xback"}
	require.False(t, sandwichIsAdjacent(txs, bundle))
}

func TestSandwichIsAdjacent_falseWhenALegIsMissing(t *testing.T) {
	bundle := testBundle()
	txs := []string{"0xfront", "0xvictim"} // back-run never landed in this block
	require.False(t, sandwichIsAdjacent(txs, bundle))
}

func TestTrack_landsWhenBackRunIncludedAndAdjacent(t *testing.T) {
	bundle := testBundle()
	adapter := &fakeAdapter{
		chain:       sandwichcore.ChainEthereum,
		txStatus:    chainadapter.TxStatusIncluded,
		blockNumber: 100,
		blockTxs: map[uint64][]string{
			100: {"0xfront", "0xvictim", "0xback"},
		},
	}
	m := New(Config{PollInterval: 10 * time.Millisecond, ExpireAfterBlocksOrSlots: 3}, sandwichcore.ChainEthereum, adapter)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := m.Track(ctx, bundle)
	require.NoError(t, err)
	require.Equal(t, sandwichcore.BundleLanded, outcome.State)
}

func TestTrack_missedWhenBackRunIncludedButNotAdjacent(t *testing.T) {
	bundle := testBundle()
	adapter := &fakeAdapter{
		chain:       sandwichcore.ChainEthereum,
		txStatus:    chainadapter.TxStatusIncluded,
		blockNumber: 100,
		blockTxs: map[uint64][]string{
			// back-run landed, but another searcher's tx wedged between it and the victim.
			100: {"0xfront", "0xvictim", "0xinterloper", "0xback"},
		},
	}
	m := New(Config{PollInterval: 10 * time.Millisecond, ExpireAfterBlocksOrSlots: 3}, sandwichcore.ChainEthereum, adapter)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := m.Track(ctx, bundle)
	require.NoError(t, err)
	require.Equal(t, sandwichcore.BundleMissed, outcome.State)
	require.Equal(t, "back_run_included_not_adjacent_to_victim", outcome.Reason)
}

func TestTrack_droppedBackRunIsMissedImmediately(t *testing.T) {
	bundle := testBundle()
	adapter := &fakeAdapter{
		chain:       sandwichcore.ChainEthereum,
		txStatus:    chainadapter.TxStatusDropped,
		blockNumber: 100,
	}
	m := New(Config{PollInterval: 10 * time.Millisecond, ExpireAfterBlocksOrSlots: 3}, sandwichcore.ChainEthereum, adapter)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := m.Track(ctx, bundle)
	require.NoError(t, err)
	require.Equal(t, sandwichcore.BundleMissed, outcome.State)
	require.Equal(t, "back_run_dropped", outcome.Reason)
}

func TestTrack_expiresWhenWindowElapsesWithNoInclusion(t *testing.T) {
	bundle := testBundle()
	adapter := &fakeAdapter{
		chain:       sandwichcore.ChainEthereum,
		txStatus:    chainadapter.TxStatusPending,
		blockNumber: 104, // past TargetBlockOrSlot(100) + ExpireAfterBlocksOrSlots(3)
	}
	m := New(Config{PollInterval: 10 * time.Millisecond, ExpireAfterBlocksOrSlots: 3}, sandwichcore.ChainEthereum, adapter)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := m.Track(ctx, bundle)
	require.NoError(t, err)
	require.Equal(t, sandwichcore.BundleExpired, outcome.State)
}
