package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hulrap/sandwichcore"
)

// FlashbotsSubmitter submits bundles to a Flashbots-compatible relay's
// eth_sendBundle JSON-RPC endpoint, signing each request body with the
// operator's reputation key per Flashbots' documented X-Flashbots-Signature
// scheme (signer_address:hex(sign(keccak256(body)))).
type FlashbotsSubmitter struct {
	RelayURL   string
	SignerKey  *ecdsa.PrivateKey
	HTTPClient *http.Client
}

// NewFlashbotsSubmitter builds a submitter against relayURL, signing with
// signerKey. A zero-value HTTPClient defaults to http.DefaultClient.
func NewFlashbotsSubmitter(relayURL string, signerKey *ecdsa.PrivateKey) *FlashbotsSubmitter {
	return &FlashbotsSubmitter{RelayURL: relayURL, SignerKey: signerKey, HTTPClient: http.DefaultClient}
}

func (f *FlashbotsSubmitter) Name() string { return "flashbots" }

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type sendBundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit packs the bundle's three transactions (front-run, victim, back-run,
// in that order) into one eth_sendBundle call.
func (f *FlashbotsSubmitter) Submit(ctx context.Context, bundle *sandwichcore.Bundle) (string, error) {
	txs := make([]string, 0, 3)
	for _, tx := range bundle.Txs() {
		txs = append(txs, "0x"+fmt.Sprintf("%x", tx.Signed))
	}

	reqBody := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_sendBundle",
		Params: []any{sendBundleParams{
			Txs:         txs,
			BlockNumber: fmt.Sprintf("0x%x", bundle.TargetBlockOrSlot),
		}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("flashbots: marshal request: %w", err)
	}

	signature, err := f.signBody(payload)
	if err != nil {
		return "", fmt.Errorf("flashbots: sign request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.RelayURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("flashbots: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Flashbots-Signature", signature)

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("flashbots: post bundle: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("flashbots: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("flashbots: relay returned %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return "", fmt.Errorf("flashbots: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("flashbots: relay error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return string(rpcResp.Result), nil
}

func (f *FlashbotsSubmitter) signBody(body []byte) (string, error) {
	hash := crypto.Keccak256Hash(body)
	sig, err := crypto.Sign(hash.Bytes(), f.SignerKey)
	if err != nil {
		return "", err
	}
	address := crypto.PubkeyToAddress(f.SignerKey.PublicKey)
	return fmt.Sprintf("%s:0x%x", address.Hex(), sig), nil
}
