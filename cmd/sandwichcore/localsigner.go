package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/hulrap/sandwichcore"
)

// localKeySigner is a minimal reference Signer: it holds one private key per
// chain in-process and signs with it directly. Operators running this
// against real capital are expected to swap in a remote signer (HSM, MPC,
// Fireblocks-style custody API) that implements the same interface; this
// exists so the binary has something to wire by default.
type localKeySigner struct {
	evmKeys    map[sandwichcore.Chain]*ecdsa.PrivateKey
	solanaKeys map[sandwichcore.Chain]solanago.PrivateKey
}

func newLocalKeySigner() *localKeySigner {
	return &localKeySigner{
		evmKeys:    make(map[sandwichcore.Chain]*ecdsa.PrivateKey),
		solanaKeys: make(map[sandwichcore.Chain]solanago.PrivateKey),
	}
}

// loadEVMKey loads chain's signing key from the hex-encoded env var envVar,
// set by the operator's secrets file. A missing env var leaves the chain
// without a configured key; Sign reports that at bundle-build time rather
// than here, so a single misconfigured chain doesn't block startup of the
// others.
func (s *localKeySigner) loadEVMKey(chain sandwichcore.Chain, envVar string) error {
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return fmt.Errorf("localsigner: parse %s: %w", envVar, err)
	}
	s.evmKeys[chain] = key
	return nil
}

// EVMAddress returns the wallet address the configured key for chain signs
// from, for wiring into EVMTxFactory.FromAddr.
func (s *localKeySigner) EVMAddress(chain sandwichcore.Chain) (common.Address, bool) {
	key, ok := s.evmKeys[chain]
	if !ok {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(key.PublicKey), true
}

// loadSolanaKey loads chain's signing key from the base58-encoded env var
// envVar.
func (s *localKeySigner) loadSolanaKey(chain sandwichcore.Chain, envVar string) error {
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil
	}
	key, err := solanago.PrivateKeyFromBase58(raw)
	if err != nil {
		return fmt.Errorf("localsigner: parse %s: %w", envVar, err)
	}
	s.solanaKeys[chain] = key
	return nil
}

// SolanaAddress returns the public key the configured key for chain signs
// from, for wiring into SolanaTxFactory.Payer.
func (s *localKeySigner) SolanaAddress(chain sandwichcore.Chain) (solanago.PublicKey, bool) {
	key, ok := s.solanaKeys[chain]
	if !ok {
		return solanago.PublicKey{}, false
	}
	return key.PublicKey(), true
}

func (s *localKeySigner) Sign(ctx context.Context, chain sandwichcore.Chain, unsignedTx any) ([]byte, string, error) {
	switch chain {
	case sandwichcore.ChainEthereum, sandwichcore.ChainBSC:
		key, ok := s.evmKeys[chain]
		if !ok {
			return nil, "", fmt.Errorf("localsigner: no key configured for %s", chain)
		}
		tx, ok := unsignedTx.(*types.Transaction)
		if !ok {
			return nil, "", fmt.Errorf("localsigner: expected *types.Transaction, got %T", unsignedTx)
		}
		signer := types.LatestSignerForChainID(tx.ChainId())
		signed, err := types.SignTx(tx, signer, key)
		if err != nil {
			return nil, "", fmt.Errorf("localsigner: sign evm tx: %w", err)
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return nil, "", fmt.Errorf("localsigner: marshal signed tx: %w", err)
		}
		return raw, signed.Hash().Hex(), nil

	case sandwichcore.ChainSolana:
		key, ok := s.solanaKeys[chain]
		if !ok {
			return nil, "", fmt.Errorf("localsigner: no key configured for %s", chain)
		}
		tx, ok := unsignedTx.(*solanago.Transaction)
		if !ok {
			return nil, "", fmt.Errorf("localsigner: expected *solana.Transaction, got %T", unsignedTx)
		}
		_, err := tx.Sign(func(pub solanago.PublicKey) *solanago.PrivateKey {
			if pub.Equals(key.PublicKey()) {
				return &key
			}
			return nil
		})
		if err != nil {
			return nil, "", fmt.Errorf("localsigner: sign solana tx: %w", err)
		}
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, "", fmt.Errorf("localsigner: marshal signed tx: %w", err)
		}
		return raw, tx.Signatures[0].String(), nil

	default:
		return nil, "", fmt.Errorf("localsigner: unsupported chain %s", chain)
	}
}
