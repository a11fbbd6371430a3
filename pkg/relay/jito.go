package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mr-tron/base58"

	"github.com/hulrap/sandwichcore"
)

// JitoSubmitter submits bundles to Jito's Block Engine sendBundle JSON-RPC
// endpoint over plain HTTP. Jito's public HTTP API is used directly instead
// of a gRPC searcher client so the submission path depends on nothing beyond
// net/http and base58 encoding.
type JitoSubmitter struct {
	endpointURL string
	HTTPClient  *http.Client
}

// NewJitoSubmitter builds a submitter against a Jito Block Engine endpoint
// (e.g. https://mainnet.block-engine.jito.wtf/api/v1/bundles).
func NewJitoSubmitter(endpointURL string) *JitoSubmitter {
	return &JitoSubmitter{endpointURL: endpointURL, HTTPClient: http.DefaultClient}
}

func (j *JitoSubmitter) Name() string { return "jito" }

// Submit packs the bundle's three transactions into one sendBundle call.
// The tip is not a separate transaction: the builder's SolanaTxFactory puts
// the tip transfer inside the back-run transaction, so all three BundleTx
// entries here are submitted verbatim.
func (j *JitoSubmitter) Submit(ctx context.Context, bundle *sandwichcore.Bundle) (string, error) {
	txs := make([]string, 0, 3)
	for _, tx := range bundle.Txs() {
		txs = append(txs, base58.Encode(tx.Signed))
	}

	reqBody := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  []any{txs},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("jito: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpointURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("jito: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := j.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("jito: post bundle: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("jito: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jito: relay returned %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return "", fmt.Errorf("jito: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("jito: relay error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var bundleID string
	if err := json.Unmarshal(rpcResp.Result, &bundleID); err != nil {
		return string(rpcResp.Result), nil
	}
	return bundleID, nil
}
