// Package signer defines the external signing collaborator contract. The
// Core builds unsigned transaction requests and hands them to whatever
// Signer the operator wires in; it never holds private keys itself.
package signer

import (
	"context"

	"github.com/hulrap/sandwichcore"
)

// Signer signs an unsigned, chain-specific transaction request and returns
// the signed wire bytes plus the transaction's hash/signature string. The
// unsignedTx type is opaque to the Core: a *types.Transaction for EVM
// chains, a *solana.Transaction for Solana; concrete builder.TxFactory
// implementations and concrete Signer implementations agree on the type out
// of band.
type Signer interface {
	Sign(ctx context.Context, chain sandwichcore.Chain, unsignedTx any) (signed []byte, hash string, err error)
}
