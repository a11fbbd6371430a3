// Package contractclient wraps a go-ethereum client with a fixed contract
// ABI so callers decode pending router calldata and read on-chain pool state
// through the same typed surface instead of hand-rolling abi packing at each
// call site.
package contractclient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DecodedCall is a router calldata decode: the matched method and its
// argument values keyed by ABI parameter name.
type DecodedCall struct {
	MethodName string
	Args       map[string]any
}

// ContractClient binds one ABI to one contract address on one eth client and
// exposes read calls and calldata decoding against it.
type ContractClient struct {
	client  *ethclient.Client
	address common.Address
	abi     abi.ABI
}

// NewContractClient builds a client for address using abi against client.
// client may be nil for decode-only use (e.g. offline calldata inspection).
func NewContractClient(client *ethclient.Client, address common.Address, contractABI abi.ABI) *ContractClient {
	return &ContractClient{client: client, address: address, abi: contractABI}
}

// ContractAddress returns the bound contract address.
func (c *ContractClient) ContractAddress() common.Address { return c.address }

// TransactionData fetches the calldata of a previously broadcast transaction
// by hash.
func (c *ContractClient) TransactionData(ctx context.Context, hash common.Hash) ([]byte, error) {
	if c.client == nil {
		return nil, fmt.Errorf("contractclient: no ethclient configured")
	}
	tx, _, err := c.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("contractclient: fetch tx %s: %w", hash, err)
	}
	return tx.Data(), nil
}

// Call performs an eth_call against method with args, ABI-decoding the
// outputs into a slice in declaration order.
func (c *ContractClient) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	if c.client == nil {
		return nil, fmt.Errorf("contractclient: no ethclient configured")
	}
	packed, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &c.address, Data: packed}
	out, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contractclient: call %s: %w", method, err)
	}
	return c.abi.Unpack(method, out)
}

// Send packs and broadcasts a signed call to method. The caller supplies an
// already-signed transaction; Send exists for symmetry with Call. Nothing in
// this repository calls it: the live submission path has relays submit raw
// signed bytes directly.
func (c *ContractClient) Send(ctx context.Context, signedTx *types.Transaction) error {
	if c.client == nil {
		return fmt.Errorf("contractclient: no ethclient configured")
	}
	return c.client.SendTransaction(ctx, signedTx)
}

// DecodeTransaction matches calldata against the bound ABI's methods and
// returns the decoded method name and named arguments.
func (c *ContractClient) DecodeTransaction(data []byte) (*DecodedCall, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("contractclient: calldata too short to contain a selector")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("contractclient: unknown selector %x: %w", data[:4], err)
	}
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("contractclient: unpack %s args: %w", method.Name, err)
	}
	return &DecodedCall{MethodName: method.Name, Args: args}, nil
}

// DecodeTransactionHex is DecodeTransaction for a 0x-prefixed hex string.
func (c *ContractClient) DecodeTransactionHex(hexData string) (*DecodedCall, error) {
	raw, err := HexToBytes(hexData)
	if err != nil {
		return nil, err
	}
	return c.DecodeTransaction(raw)
}

// HexToBytes strips an optional 0x prefix and decodes the remaining hex.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("contractclient: decode hex: %w", err)
	}
	return b, nil
}

// hardhatArtifact is the subset of a Hardhat compilation artifact this
// package cares about: its "abi" field.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABI reads a contract ABI from disk. It accepts either a bare ABI JSON
// array or a full Hardhat artifact (an object with an "abi" field), matching
// the two shapes routers' published artifacts ship as.
func LoadABI(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("contractclient: read abi file: %w", err)
	}

	trimmed := strings.TrimSpace(string(raw))
	abiJSON := raw
	if strings.HasPrefix(trimmed, "{") {
		var artifact hardhatArtifact
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("contractclient: parse hardhat artifact: %w", err)
		}
		abiJSON = artifact.ABI
	}

	parsed, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("contractclient: parse abi json: %w", err)
	}
	return parsed, nil
}
