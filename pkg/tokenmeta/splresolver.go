package tokenmeta

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/hulrap/sandwichcore"
)

// splMintDecimalsOffset is the byte offset of the decimals field in an SPL
// Token mint account: 4-byte COption discriminant + 32-byte mint authority +
// 8-byte supply precede it.
const splMintDecimalsOffset = 44

// SPLMintResolver resolves decimals for Solana SPL token mints by reading
// the mint account directly, the same fixed-layout approach
// chainadapter.decodePoolAccount uses for pool reserves.
type SPLMintResolver struct {
	client *rpc.Client
}

// NewSPLMintResolver builds a resolver bound to client.
func NewSPLMintResolver(client *rpc.Client) *SPLMintResolver {
	return &SPLMintResolver{client: client}
}

// Resolve implements Resolver. Symbol/verification state is not recoverable
// from the mint account alone; callers needing it must layer a metadata
// Resolver (e.g. the Metaplex token list) on top.
func (r *SPLMintResolver) Resolve(ctx context.Context, chain sandwichcore.Chain, address string) (*sandwichcore.TokenMeta, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("tokenmeta: bad mint address %q: %w", address, err)
	}
	account, err := r.client.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return nil, fmt.Errorf("tokenmeta: get mint account %s: %w", address, err)
	}
	if account == nil || account.Value == nil {
		return nil, fmt.Errorf("tokenmeta: mint account %s not found", address)
	}
	data := account.Value.Data.GetBinary()
	if len(data) <= splMintDecimalsOffset {
		return nil, fmt.Errorf("tokenmeta: mint account %s too short", address)
	}
	return &sandwichcore.TokenMeta{
		Chain:    chain,
		Address:  address,
		Decimals: data[splMintDecimalsOffset],
	}, nil
}
