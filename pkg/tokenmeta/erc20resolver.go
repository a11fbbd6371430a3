package tokenmeta

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/contractclient"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("tokenmeta: parse embedded erc20 abi: %v", err))
	}
	erc20ABI = parsed
}

// ERC20Resolver resolves decimals/symbol for EVM tokens via eth_call against
// the token contract itself. It never resolves tax or verification state,
// which require off-chain reputation data outside this package's scope;
// callers that need those set them via Cache.Blacklist or a wrapping
// Resolver.
type ERC20Resolver struct {
	client *ethclient.Client
}

// NewERC20Resolver builds a resolver bound to client.
func NewERC20Resolver(client *ethclient.Client) *ERC20Resolver {
	return &ERC20Resolver{client: client}
}

// Resolve implements Resolver.
func (r *ERC20Resolver) Resolve(ctx context.Context, chain sandwichcore.Chain, address string) (*sandwichcore.TokenMeta, error) {
	cc := contractclient.NewContractClient(r.client, common.HexToAddress(address), erc20ABI)

	decOut, err := cc.Call(ctx, "decimals")
	if err != nil {
		return nil, fmt.Errorf("tokenmeta: read decimals for %s: %w", address, err)
	}
	decimals, ok := decOut[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("tokenmeta: unexpected decimals() return type %T", decOut[0])
	}

	symbol := ""
	if symOut, err := cc.Call(ctx, "symbol"); err == nil {
		if s, ok := symOut[0].(string); ok {
			symbol = s
		}
	}

	return &sandwichcore.TokenMeta{
		Chain:    chain,
		Address:  address,
		Decimals: decimals,
		Symbol:   symbol,
	}, nil
}
