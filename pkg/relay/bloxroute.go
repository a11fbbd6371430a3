package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hulrap/sandwichcore"
)

// BloxrouteSubmitter submits bundles to bloXroute's (and the API-compatible
// NodeReal MEV Protect's) blxr_submit_bundle JSON-RPC endpoint over plain
// HTTP. Authentication is a static header token issued by the provider, not
// a signed payload.
type BloxrouteSubmitter struct {
	relayName  string
	endpointURL string
	authHeader string
	HTTPClient *http.Client
}

// NewBloxrouteSubmitter builds a submitter. relayName distinguishes
// bloxroute from a NodeReal deployment of the same API in metrics/logging.
func NewBloxrouteSubmitter(relayName, endpointURL, authToken string) *BloxrouteSubmitter {
	return &BloxrouteSubmitter{relayName: relayName, endpointURL: endpointURL, authHeader: authToken, HTTPClient: http.DefaultClient}
}

func (b *BloxrouteSubmitter) Name() string { return b.relayName }

type blxrSubmitBundleParams struct {
	Transaction      []string `json:"transaction"`
	BlockNumber      string   `json:"block_number"`
	MinTimestamp     int64    `json:"min_timestamp,omitempty"`
	MaxTimestamp     int64    `json:"max_timestamp,omitempty"`
}

// Submit packs the bundle's three transactions into one blxr_submit_bundle
// call, base64-encoding raw bytes per bloXroute's documented schema.
func (b *BloxrouteSubmitter) Submit(ctx context.Context, bundle *sandwichcore.Bundle) (string, error) {
	txs := make([]string, 0, 3)
	for _, tx := range bundle.Txs() {
		txs = append(txs, base64.StdEncoding.EncodeToString(tx.Signed))
	}

	reqBody := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "blxr_submit_bundle",
		Params: []any{blxrSubmitBundleParams{
			Transaction: txs,
			BlockNumber: fmt.Sprintf("0x%x", bundle.TargetBlockOrSlot),
		}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("bloxroute: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpointURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("bloxroute: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", b.authHeader)

	client := b.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("bloxroute: post bundle: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("bloxroute: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bloxroute: relay returned %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return "", fmt.Errorf("bloxroute: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("bloxroute: relay error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return string(rpcResp.Result), nil
}
