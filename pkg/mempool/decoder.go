// Package mempool turns the raw bytes a chain adapter observes into the
// normalized sandwichcore.PendingSwap the rest of the pipeline operates on,
// and ingests the resulting stream with bounded, drop-oldest backpressure.
package mempool

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/hulrap/sandwichcore"
)

// routerSwapABIJSON covers the handful of swap method shapes this decoder
// recognizes across Uniswap V2/V3-style routers and Pancake's fork of them.
// Unknown selectors are skipped (Decode returns nil, nil), not guessed at.
const routerSwapABIJSON = `[
	{"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[
		{"name":"amountIn","type":"uint256"},
		{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},
		{"name":"to","type":"address"},
		{"name":"deadline","type":"uint256"}
	],"outputs":[]},
	{"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[
		{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},
		{"name":"to","type":"address"},
		{"name":"deadline","type":"uint256"}
	],"outputs":[]},
	{"type":"function","name":"exactInputSingle","stateMutability":"payable","inputs":[{
		"name":"params","type":"tuple","components":[
			{"name":"tokenIn","type":"address"},
			{"name":"tokenOut","type":"address"},
			{"name":"fee","type":"uint24"},
			{"name":"recipient","type":"address"},
			{"name":"deadline","type":"uint256"},
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOutMinimum","type":"uint256"},
			{"name":"sqrtPriceLimitX96","type":"uint160"}
		]
	}],"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

var routerABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerSwapABIJSON))
	if err != nil {
		panic(fmt.Sprintf("mempool: invalid embedded router abi: %v", err))
	}
	routerABI = parsed
}

// RouterABI returns the embedded router swap ABI this package decodes
// against, for callers building transactions against the same method set
// (e.g. the bundle builder's EVMTxFactory).
func RouterABI() abi.ABI {
	return routerABI
}

// EVMDecoder decodes raw signed EVM transaction bytes into PendingSwap,
// recognizing the router methods in routerABI. It is stateless and safe for
// concurrent use.
type EVMDecoder struct {
	chain            sandwichcore.Chain
	protocolByRouter map[common.Address]sandwichcore.Protocol
}

// NewEVMDecoder builds a decoder that classifies a transaction's Protocol by
// its `to` address against routerByProtocol.
func NewEVMDecoder(chain sandwichcore.Chain, routerByProtocol map[sandwichcore.Protocol]common.Address) *EVMDecoder {
	byRouter := make(map[common.Address]sandwichcore.Protocol, len(routerByProtocol))
	for protocol, router := range routerByProtocol {
		byRouter[router] = protocol
	}
	return &EVMDecoder{chain: chain, protocolByRouter: byRouter}
}

// Decode parses raw RLP transaction bytes and, if it targets a known router
// with a recognized swap method, returns the normalized PendingSwap. Returns
// (nil, nil) for transactions that are not a recognized swap — not an error,
// since most mempool traffic isn't a swap at all.
func (d *EVMDecoder) Decode(raw []byte, observedAt int64) (*sandwichcore.PendingSwap, error) {
	tx := new(types.Transaction)
	if err := rlp.DecodeBytes(raw, tx); err != nil {
		return nil, fmt.Errorf("mempool: rlp decode: %w", err)
	}
	to := tx.To()
	if to == nil {
		return nil, nil
	}
	protocol, ok := d.protocolByRouter[*to]
	if !ok {
		return nil, nil
	}

	data := tx.Data()
	if len(data) < 4 {
		return nil, nil
	}
	method, err := routerABI.MethodById(data[:4])
	if err != nil {
		return nil, nil // not a method we recognize, not an error
	}

	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("mempool: unpack %s: %w", method.Name, err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("mempool: recover sender: %w", err)
	}

	swap, err := fromDecodedArgs(method.Name, args)
	if err != nil {
		return nil, err
	}
	if swap.AmountIn != nil && swap.AmountIn.Sign() == 0 && tx.Value() != nil {
		swap.AmountIn = tx.Value()
	}
	swap.TxHash = tx.Hash().Hex()
	swap.Chain = d.chain
	swap.From = from.Hex()
	swap.Router = to.Hex()
	swap.Protocol = protocol
	swap.ObservedAt = observedAt
	swap.GasPrice = tx.GasTipCap()
	swap.Raw = raw
	return swap, nil
}

func fromDecodedArgs(method string, args map[string]any) (*sandwichcore.PendingSwap, error) {
	switch method {
	case "swapExactTokensForTokens", "swapExactETHForTokens":
		path, _ := args["path"].([]common.Address)
		if len(path) < 2 {
			return nil, fmt.Errorf("mempool: %s path too short", method)
		}
		pathStrs := make([]string, len(path))
		for i, a := range path {
			pathStrs[i] = a.Hex()
		}
		amountIn, _ := args["amountIn"].(*big.Int)
		if amountIn == nil {
			amountIn = big.NewInt(0) // native-input swaps carry amountIn in tx.Value(), filled in by Decode
		}
		minOut, _ := args["amountOutMin"].(*big.Int)
		deadline, _ := args["deadline"].(*big.Int)
		return &sandwichcore.PendingSwap{
			TokenIn:      pathStrs[0],
			TokenOut:     pathStrs[len(pathStrs)-1],
			AmountIn:     amountIn,
			MinAmountOut: minOut,
			Path:         pathStrs,
			Deadline:     deadlineSeconds(deadline),
		}, nil
	case "exactInputSingle":
		params, _ := args["params"].(struct {
			TokenIn           common.Address
			TokenOut          common.Address
			Fee               *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountIn          *big.Int
			AmountOutMinimum  *big.Int
			SqrtPriceLimitX96 *big.Int
		})
		return &sandwichcore.PendingSwap{
			TokenIn:      params.TokenIn.Hex(),
			TokenOut:     params.TokenOut.Hex(),
			AmountIn:     params.AmountIn,
			MinAmountOut: params.AmountOutMinimum,
			Path:         []string{params.TokenIn.Hex(), params.TokenOut.Hex()},
			Deadline:     deadlineSeconds(params.Deadline),
		}, nil
	default:
		return nil, fmt.Errorf("mempool: unhandled method %s", method)
	}
}

func deadlineSeconds(v *big.Int) int64 {
	if v == nil {
		return 0
	}
	return v.Int64()
}
