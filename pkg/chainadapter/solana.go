package chainadapter

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/dedup"
)

// SolanaEndpoint is one Solana provider's HTTP RPC + WS pair.
type SolanaEndpoint struct {
	Name      string
	HTTPURL   string
	WSURL     string
	Cost      float64
	RateLimit int
}

// SolanaAdapter implements Adapter for Solana. Solana has no real mempool:
// "pending" here means "logs subscription for the target program, observed
// before finalization" per the program's pre-confirmation visibility window,
// which is the best available proxy for a sandwichable in-flight swap.
type SolanaAdapter struct {
	chain   sandwichcore.Chain
	pool    *FailoverPool
	clients map[string]*rpc.Client
	wsURLs  map[string]string
	program solana.PublicKey // router/AMM program to watch logs for
}

// NewSolanaAdapter dials each endpoint's HTTP RPC client and wires a
// FailoverPool over them. program is the Raydium/Orca/Jupiter program ID
// whose logs are treated as the pending-swap proxy stream.
func NewSolanaAdapter(chain sandwichcore.Chain, endpoints []SolanaEndpoint, program solana.PublicKey, perCallBudget time.Duration) (*SolanaAdapter, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("chainadapter: solana adapter needs at least one endpoint")
	}
	a := &SolanaAdapter{
		chain:   chain,
		clients: make(map[string]*rpc.Client, len(endpoints)),
		wsURLs:  make(map[string]string, len(endpoints)),
		program: program,
	}

	providers := make([]*Provider, 0, len(endpoints))
	for _, ep := range endpoints {
		client := rpc.New(ep.HTTPURL)
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

func (a *SolanaAdapter) dispatch(ctx context.Context, providerName, method string, args ...any) (any, error) {
	client := a.clients[providerName]
	switch method {
	case "getSlot":
		return client.GetSlot(ctx, rpc.CommitmentProcessed)
	case "getRecentPrioritizationFees":
		fees, err := client.GetRecentPrioritizationFees(ctx, nil)
		if err != nil {
			return nil, err
		}
		return medianPrioritizationFee(fees), nil
	case "sendRawTransaction":
		raw := args[0].([]byte)
		tx, err := solana.TransactionFromBytes(raw)
		if err != nil {
			return nil, err
		}
		sig, err := client.SendTransaction(ctx, tx)
		if err != nil {
			return nil, err
		}
		return sig.String(), nil
	case "getSignatureStatus":
		sig, err := solana.SignatureFromBase58(args[0].(string))
		if err != nil {
			return nil, err
		}
		out, err := client.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return nil, err
		}
		return out, nil
	case "getBlock":
		maxVersion := uint64(0)
		out, err := client.GetBlockWithOpts(ctx, args[0].(uint64), &rpc.GetBlockOpts{
			TransactionDetails:             rpc.TransactionDetailsSignatures,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			return nil, err
		}
		sigs := make([]string, 0, len(out.Signatures))
		for _, s := range out.Signatures {
			sigs = append(sigs, s.String())
		}
		return sigs, nil
	default:
		return nil, fmt.Errorf("chainadapter: unsupported solana method %q", method)
	}
}

func medianPrioritizationFee(fees []rpc.PrioritizationFeeResult) uint64 {
	if len(fees) == 0 {
		return 0
	}
	vals := make([]uint64, len(fees))
	for i, f := range fees {
		vals[i] = f.PrioritizationFee
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return vals[len(vals)/2]
}

func (a *SolanaAdapter) Chain() sandwichcore.Chain { return a.chain }

// SubscribePendingTxs watches the configured program's logs over WebSocket
// across all providers and forwards each signature once, deduplicated across
// providers. Since Solana has no pending-tx concept, a RawTx here carries only
// the signature of a logs notification (Raw is empty), observed before the
// transaction is finalized.
func (a *SolanaAdapter) SubscribePendingTxs(ctx context.Context) (<-chan RawTx, error) {
	out := make(chan RawTx, 4096)
	feed := make(chan RawTx, 4096)
	for _, wsURL := range a.wsURLs {
		if wsURL == "" {
			continue
		}
		go a.runLogsFeed(ctx, wsURL, feed)
	}
	seen := dedup.New(65536)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case raw := <-feed:
				if seen.Seen(raw.Hash) {
					continue
				}
				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (a *SolanaAdapter) runLogsFeed(ctx context.Context, wsURL string, out chan<- RawTx) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client, err := ws.Connect(ctx, wsURL)
		if err != nil {
			time.Sleep(2 * time.Second)
			continue
		}

		sub, err := client.LogsSubscribeMentions(a.program, rpc.CommitmentProcessed)
		if err != nil {
			client.Close()
			time.Sleep(2 * time.Second)
			continue
		}

		a.readLogsLoop(ctx, sub, out)
		sub.Unsubscribe()
		client.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (a *SolanaAdapter) readLogsLoop(ctx context.Context, sub *ws.LogSubscription, out chan<- RawTx) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			_ = err
			return
		default:
		}

		got, err := sub.Recv(ctx)
		if err != nil || got == nil {
			return
		}
		sig := got.Value.Signature.String()
		raw := RawTx{Hash: sig, ObservedAt: time.Now().UnixNano()}
		select {
		case out <- raw:
		default:
			select {
			case <-out:
			default:
			}
			select {
			case out <- raw:
			default:
			}
		}
	}
}

// GetPoolState reads a Raydium/Orca pool account and decodes its reserves.
// Account layouts differ per AMM; callers pass poolID as the account address
// and the returned view always reports the constant-product fields since
// both supported Solana AMMs are V2-style at the pool-account level.
func (a *SolanaAdapter) GetPoolState(ctx context.Context, protocol sandwichcore.Protocol, poolID string) (*PoolStateView, error) {
	client := a.firstClient()
	if client == nil {
		return nil, &ChainUnavailable{Chain: a.chain}
	}
	pubkey, err := solana.PublicKeyFromBase58(poolID)
	if err != nil {
		return nil, fmt.Errorf("chainadapter: bad pool id %q: %w", poolID, err)
	}
	account, err := client.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return nil, fmt.Errorf("chainadapter: get pool account %s: %w", poolID, err)
	}
	if account == nil || account.Value == nil {
		return nil, fmt.Errorf("chainadapter: pool account %s not found", poolID)
	}
	return decodePoolAccount(protocol, account.Value.Data.GetBinary())
}

func (a *SolanaAdapter) EstimateBaseFee(ctx context.Context) (*big.Int, error) {
	result, err := a.pool.Call(ctx, "getRecentPrioritizationFees")
	if err != nil {
		return nil, err
	}
	microLamports, _ := result.(uint64)
	return new(big.Int).SetUint64(microLamports), nil
}

func (a *SolanaAdapter) GetBlockNumberOrSlot(ctx context.Context) (uint64, error) {
	result, err := a.pool.Call(ctx, "getSlot")
	if err != nil {
		return 0, err
	}
	slot, _ := result.(uint64)
	return slot, nil
}

func (a *SolanaAdapter) SendRawTx(ctx context.Context, signed []byte) (string, error) {
	result, err := a.pool.Call(ctx, "sendRawTransaction", signed)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (a *SolanaAdapter) GetTxStatus(ctx context.Context, hash string) (TxStatus, error) {
	result, err := a.pool.Call(ctx, "getSignatureStatus", hash)
	if err != nil {
		return TxStatusUnknown, err
	}
	out, ok := result.(*rpc.GetSignatureStatusesResult)
	if !ok || out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return TxStatusPending, nil
	}
	if out.Value[0].Err != nil {
		return TxStatusDropped, nil
	}
	return TxStatusIncluded, nil
}

func (a *SolanaAdapter) GetBlockTransactions(ctx context.Context, blockOrSlot uint64) ([]string, error) {
	result, err := a.pool.Call(ctx, "getBlock", blockOrSlot)
	if err != nil {
		return nil, err
	}
	sigs, _ := result.([]string)
	return sigs, nil
}

func (a *SolanaAdapter) firstClient() *rpc.Client {
	for _, c := range a.clients {
		return c
	}
	return nil
}

// Client exposes one dialed rpc.Client for callers that need raw RPC access
// outside this package's dispatch surface, e.g. mint account reads for
// token metadata resolution.
func (a *SolanaAdapter) Client() *rpc.Client {
	return a.firstClient()
}

// Close stops the failover pool's probe loop. The underlying rpc.Client has
// no explicit close; its HTTP transport is reclaimed by the GC.
func (a *SolanaAdapter) Close() {
	a.pool.Close()
}
