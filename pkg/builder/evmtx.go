package builder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hulrap/sandwichcore"
)

// EVMTxFactory builds unsigned front-run/back-run transactions that re-trade
// the same pool the victim targets, in the opposite direction the front-run
// trade needs to be closed in.
type EVMTxFactory struct {
	ChainID    *big.Int
	RouterABI  abi.ABI
	FromAddr   common.Address
	NonceFn    func(ctx context.Context) (uint64, error)
	GasLimit   uint64
}

func (f *EVMTxFactory) buildSwapTx(ctx context.Context, router common.Address, amountIn, minAmountOut *big.Int, path []string, priorityFeeWei string) (*types.Transaction, error) {
	nonce, err := f.NonceFn(ctx)
	if err != nil {
		return nil, fmt.Errorf("builder: next nonce: %w", err)
	}

	addrPath := make([]common.Address, len(path))
	for i, p := range path {
		addrPath[i] = common.HexToAddress(p)
	}

	data, err := f.RouterABI.Pack("swapExactTokensForTokens", amountIn, minAmountOut, addrPath, f.FromAddr, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("builder: pack swap calldata: %w", err)
	}

	tip, ok := new(big.Int).SetString(priorityFeeWei, 10)
	if !ok {
		return nil, fmt.Errorf("builder: invalid priority fee %q", priorityFeeWei)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   f.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: tip, // caller is responsible for layering base fee on top before broadcast
		Gas:       f.GasLimit,
		To:        &router,
		Data:      data,
	})
	return tx, nil
}

// FrontRunTx buys the opportunity's TokenOut ahead of the victim.
func (f *EVMTxFactory) FrontRunTx(ctx context.Context, opp *sandwichcore.Opportunity, gas GasPlan) (any, error) {
	return f.buildSwapTx(ctx, common.HexToAddress(opp.Victim.Router), opp.FrontRunAmount, big.NewInt(0), opp.Victim.Path, gas.FrontRunPriorityFee)
}

// BackRunTx sells the tokens the front-run acquired, closing the position
// after the victim's trade has moved the price.
func (f *EVMTxFactory) BackRunTx(ctx context.Context, opp *sandwichcore.Opportunity, gas GasPlan) (any, error) {
	reversedPath := make([]string, len(opp.Victim.Path))
	for i, p := range opp.Victim.Path {
		reversedPath[len(reversedPath)-1-i] = p
	}
	return f.buildSwapTx(ctx, common.HexToAddress(opp.Victim.Router), opp.BackRunAmount, big.NewInt(0), reversedPath, gas.BackRunPriorityFee)
}
