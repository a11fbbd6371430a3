package chainadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gorilla/websocket"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/contractclient"
	"github.com/hulrap/sandwichcore/pkg/dedup"
)

// EVMEndpoint is one Ethereum/BSC provider's connection pair: an HTTP(S) RPC
// URL for calls and a WS URL for the pending-transaction subscription.
type EVMEndpoint struct {
	Name      string
	HTTPURL   string
	WSURL     string
	Cost      float64
	RateLimit int
}

// EVMAdapter implements Adapter for Ethereum and BSC. Both chains speak the
// same JSON-RPC dialect; only ChainFeatures (EIP-1559, block time) differs,
// so one implementation serves both, parameterized by sandwichcore.Chain.
type EVMAdapter struct {
	chain   sandwichcore.Chain
	pool    *FailoverPool
	clients map[string]*ethclient.Client // provider name -> dialed HTTP client
	wsURLs  map[string]string            // provider name -> WS URL, dialed lazily on subscribe
	dedup   *dedup.Cache
}

// NewEVMAdapter dials each endpoint's HTTP client eagerly (cheap, no network
// round trip until first call) and wires a FailoverPool over them.
func NewEVMAdapter(ctx context.Context, chain sandwichcore.Chain, endpoints []EVMEndpoint, perCallBudget time.Duration) (*EVMAdapter, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("chainadapter: %s adapter needs at least one endpoint", chain)
	}
	a := &EVMAdapter{
		chain:   chain,
		clients: make(map[string]*ethclient.Client, len(endpoints)),
		wsURLs:  make(map[string]string, len(endpoints)),
		dedup:   dedup.New(65536),
	}

	providers := make([]*Provider, 0, len(endpoints))
	for _, ep := range endpoints {
		client, err := ethclient.DialContext(ctx, ep.HTTPURL)
		if err != nil {
			return nil, fmt.Errorf("chainadapter: dial %s provider %s: %w", chain, ep.Name, err)
		}
		a.clients[ep.Name] = client
		a.wsURLs[ep.Name] = ep.WSURL

		name := ep.Name
		providers = append(providers, newProvider(ep.Name, ep.Cost, ep.RateLimit, func(ctx context.Context, method string, args ...any) (any, error) {
			return a.dispatch(ctx, name, method, args...)
		}))
	}
	a.pool = NewFailoverPool(chain, providers, perCallBudget, len(providers))
	return a, nil
}

// dispatch is the provider.Call closure body: it resolves which dialed
// client to use by provider name and invokes the requested RPC verb.
func (a *EVMAdapter) dispatch(ctx context.Context, providerName, method string, args ...any) (any, error) {
	client := a.clients[providerName]
	switch method {
	case "eth_getBlockNumber":
		return client.BlockNumber(ctx)
	case "eth_gasPrice":
		return client.SuggestGasPrice(ctx)
	case "eth_sendRawTransaction":
		raw := args[0].([]byte)
		tx, err := decodeRawTx(raw)
		if err != nil {
			return nil, err
		}
		if err := client.SendTransaction(ctx, tx); err != nil {
			return nil, err
		}
		return tx.Hash().Hex(), nil
	case "eth_getTransactionReceipt":
		hash := common.HexToHash(args[0].(string))
		return client.TransactionReceipt(ctx, hash)
	case "eth_getBlockByNumber":
		block, err := client.BlockByNumber(ctx, new(big.Int).SetUint64(args[0].(uint64)))
		if err != nil {
			return nil, err
		}
		hashes := make([]string, 0, len(block.Transactions()))
		for _, tx := range block.Transactions() {
			hashes = append(hashes, tx.Hash().Hex())
		}
		return hashes, nil
	default:
		return nil, fmt.Errorf("chainadapter: unsupported evm method %q", method)
	}
}

func (a *EVMAdapter) Chain() sandwichcore.Chain { return a.chain }

// SubscribePendingTxs multiplexes every provider's pending-transaction
// WebSocket feed into one deduplicated stream. A transaction broadcast to
// more than one provider (the common case) is delivered exactly once.
func (a *EVMAdapter) SubscribePendingTxs(ctx context.Context) (<-chan RawTx, error) {
	out := make(chan RawTx, 4096)
	for name, wsURL := range a.wsURLs {
		if wsURL == "" {
			continue
		}
		go a.runPendingFeed(ctx, name, wsURL, out)
	}
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

// runPendingFeed subscribes to one provider's newPendingTransactions feed
// over raw WS JSON-RPC (eth_subscribe) and forwards deduplicated hashes.
// Reconnects with a fixed backoff on any read/dial error; callers see a
// silent gap in coverage from that provider, not a crash.
func (a *EVMAdapter) runPendingFeed(ctx context.Context, providerName, wsURL string, out chan<- RawTx) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			time.Sleep(2 * time.Second)
			continue
		}

		sub := map[string]any{
			"jsonrpc": "2.0", "id": 1, "method": "eth_subscribe",
			"params": []any{"newPendingTransactions"},
		}
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}

		a.readPendingLoop(ctx, conn, providerName, out)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

type wsSubscriptionMsg struct {
	Params struct {
		Result json.RawMessage `json:"result"`
	} `json:"params"`
}

func (a *EVMAdapter) readPendingLoop(ctx context.Context, conn *websocket.Conn, providerName string, out chan<- RawTx) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsSubscriptionMsg
		if err := json.Unmarshal(data, &msg); err != nil || len(msg.Params.Result) == 0 {
			continue
		}
		var hash string
		if err := json.Unmarshal(msg.Params.Result, &hash); err != nil {
			continue
		}
		if a.dedup.Seen(hash) {
			continue
		}
		select {
		case out <- RawTx{Hash: hash, ObservedAt: time.Now().UnixNano()}:
		default:
			// drop-oldest backpressure: pull one stale item then retry once.
			select {
			case <-out:
			default:
			}
			select {
			case out <- RawTx{Hash: hash, ObservedAt: time.Now().UnixNano()}:
			default:
			}
		}
		_ = providerName
	}
}

// GetPoolState reads a pool's reserves (V2-style) or slot0-equivalent
// (V3-style) through a contractclient built over the first dialed client,
// keyed by protocol.
func (a *EVMAdapter) GetPoolState(ctx context.Context, protocol sandwichcore.Protocol, poolID string) (*PoolStateView, error) {
	client := a.firstClient()
	if client == nil {
		return nil, &ChainUnavailable{Chain: a.chain}
	}
	pairABI, err := poolABI(protocol)
	if err != nil {
		return nil, err
	}
	cc := contractclient.NewContractClient(client, common.HexToAddress(poolID), pairABI)

	switch protocol {
	case sandwichcore.ProtocolUniswapV3, sandwichcore.ProtocolPancake:
		outputs, err := cc.Call(ctx, "slot0")
		if err != nil {
			return nil, fmt.Errorf("chainadapter: slot0 %s: %w", poolID, err)
		}
		sqrtPriceX96, _ := outputs[0].(*big.Int)
		tick, _ := outputs[1].(*big.Int)
		var tickI32 int32
		if tick != nil {
			tickI32 = int32(tick.Int64())
		}
		return &PoolStateView{SqrtPriceX96: sqrtPriceX96, Tick: tickI32}, nil
	default:
		outputs, err := cc.Call(ctx, "getReserves")
		if err != nil {
			return nil, fmt.Errorf("chainadapter: getReserves %s: %w", poolID, err)
		}
		reserveA, _ := outputs[0].(*big.Int)
		reserveB, _ := outputs[1].(*big.Int)
		return &PoolStateView{ReserveA: reserveA, ReserveB: reserveB}, nil
	}
}

func (a *EVMAdapter) EstimateBaseFee(ctx context.Context) (*big.Int, error) {
	result, err := a.pool.Call(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}
	price, _ := result.(*big.Int)
	return price, nil
}

func (a *EVMAdapter) GetBlockNumberOrSlot(ctx context.Context) (uint64, error) {
	result, err := a.pool.Call(ctx, "eth_getBlockNumber")
	if err != nil {
		return 0, err
	}
	n, _ := result.(uint64)
	return n, nil
}

func (a *EVMAdapter) SendRawTx(ctx context.Context, signed []byte) (string, error) {
	result, err := a.pool.Call(ctx, "eth_sendRawTransaction", signed)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (a *EVMAdapter) GetTxStatus(ctx context.Context, hash string) (TxStatus, error) {
	result, err := a.pool.Call(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		return TxStatusUnknown, err
	}
	if result == nil {
		return TxStatusPending, nil
	}
	return TxStatusIncluded, nil
}

func (a *EVMAdapter) GetBlockTransactions(ctx context.Context, blockOrSlot uint64) ([]string, error) {
	result, err := a.pool.Call(ctx, "eth_getBlockByNumber", blockOrSlot, false)
	if err != nil {
		return nil, err
	}
	hashes, _ := result.([]string)
	return hashes, nil
}

func (a *EVMAdapter) firstClient() *ethclient.Client {
	for _, c := range a.clients {
		return c
	}
	return nil
}

// Client exposes one dialed ethclient for callers that need raw eth_call
// access outside this package's dispatch surface, e.g. token metadata
// resolution and nonce lookups for transaction construction.
func (a *EVMAdapter) Client() *ethclient.Client {
	return a.firstClient()
}

// Close releases every dialed client and stops the failover pool's probe.
func (a *EVMAdapter) Close() {
	a.pool.Close()
	for _, c := range a.clients {
		c.Close()
	}
}
