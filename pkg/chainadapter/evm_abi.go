package chainadapter

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hulrap/sandwichcore"
)

// decodeRawTx parses signed transaction bytes in the binary encoding
// Transaction.MarshalBinary produces (legacy RLP or a typed envelope), the
// wire format the relay submitters and SendRawTx both deal in.
func decodeRawTx(raw []byte) (*types.Transaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("chainadapter: decode raw tx: %w", err)
	}
	return tx, nil
}

const v2PairABIJSON = `[
	{"type":"function","name":"getReserves","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}]}
]`

const v3PoolABIJSON = `[
	{"type":"function","name":"slot0","stateMutability":"view","inputs":[],
	 "outputs":[
		{"name":"sqrtPriceX96","type":"uint160"},
		{"name":"tick","type":"int24"},
		{"name":"observationIndex","type":"uint16"},
		{"name":"observationCardinality","type":"uint16"},
		{"name":"observationCardinalityNext","type":"uint16"},
		{"name":"feeProtocol","type":"uint8"},
		{"name":"unlocked","type":"bool"}
	 ]}
]`

// poolABI returns the minimal read-only ABI needed to fetch pool state for
// protocol: getReserves for constant-product pools, slot0 for concentrated-
// liquidity pools.
func poolABI(protocol sandwichcore.Protocol) (abi.ABI, error) {
	switch protocol {
	case sandwichcore.ProtocolUniswapV3, sandwichcore.ProtocolPancake:
		return abi.JSON(strings.NewReader(v3PoolABIJSON))
	default:
		return abi.JSON(strings.NewReader(v2PairABIJSON))
	}
}
