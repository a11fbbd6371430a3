// Command sandwichcore runs the MEV Sandwich Core engine against the chains
// named in its YAML configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/configs"
	"github.com/hulrap/sandwichcore/pkg/builder"
	"github.com/hulrap/sandwichcore/pkg/chainadapter"
	"github.com/hulrap/sandwichcore/pkg/detector"
	"github.com/hulrap/sandwichcore/pkg/mempool"
	"github.com/hulrap/sandwichcore/pkg/monitor"
	"github.com/hulrap/sandwichcore/pkg/poolcache"
	"github.com/hulrap/sandwichcore/pkg/relay"
	"github.com/hulrap/sandwichcore/pkg/riskgate"
	"github.com/hulrap/sandwichcore/pkg/tokenmeta"
)

// Exit codes: 0 clean shutdown, 1 configuration error, 2 startup/dial
// failure, 3 shutdown grace window elapsed with chains still draining.
const (
	exitOK              = 0
	exitConfigError     = 1
	exitStartupFailure  = 2
	exitShutdownTimeout = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("sandwichcore", flag.ContinueOnError)
	configPath := fs.String("config", "configs/config.yml", "path to YAML configuration")
	secretsPath := fs.String("secrets", ".env", "path to dotenv secrets file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return exitConfigError
	}

	logger := slog.Default()

	if err := configs.LoadSecrets(*secretsPath); err != nil {
		logger.Warn("sandwichcore: no secrets file loaded", "error", err)
	}

	cfg, err := configs.LoadConfig(*configPath)
	if err != nil {
		logger.Error("sandwichcore: load config", "error", err)
		return exitConfigError
	}

	signer := newLocalKeySigner()

	core := sandwichcore.New(riskgate.AllowAll{}, logger)

	for _, chainCfg := range cfg.Chains {
		rt, err := buildChainRuntime(context.Background(), chainCfg, cfg.Global, signer, logger)
		if err != nil {
			logger.Error("sandwichcore: build chain runtime", "chain", chainCfg.Name, "error", err)
			return exitStartupFailure
		}
		core.AddChain(rt)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := core.Run(ctx); err != nil {
		logger.Error("sandwichcore: shutdown did not complete in time", "error", err)
		return exitShutdownTimeout
	}
	return exitOK
}

// buildChainRuntime wires one chain's full pipeline from its configuration:
// the adapter, mempool decoder and ingestion, pool/token caches, detector,
// bundle builder, relay router, and bundle monitor.
func buildChainRuntime(ctx context.Context, chainCfg configs.ChainConfig, global configs.GlobalConfig, signer *localKeySigner, logger *slog.Logger) (*sandwichcore.ChainRuntime, error) {
	chain := sandwichcore.Chain(chainCfg.Name)
	perCallBudget := time.Duration(chainCfg.PerCallBudgetMS) * time.Millisecond
	if perCallBudget <= 0 {
		perCallBudget = 2 * time.Second
	}

	minProfit, ok := new(big.Int).SetString(global.MinProfitNativeWei, 10)
	if !ok {
		minProfit = big.NewInt(0)
	}
	detectorCfg := detector.Config{
		MinProfitNative:         minProfit,
		MinPriority:             global.MinPriority,
		MaxTaxBps:               global.MaxTaxBps,
		MaxFrontRunFraction:     global.MaxFrontRunFraction,
		MaxSlippageBps:          global.MaxSlippageBps,
		MinDetectionSlippageBps: global.MinDetectionSlippageBps,
	}

	poolEntries := make([]detector.PoolEntry, 0, len(chainCfg.Pools))
	for _, p := range chainCfg.Pools {
		poolEntries = append(poolEntries, detector.PoolEntry{
			Protocol: sandwichcore.Protocol(p.Protocol),
			TokenA:   p.TokenA,
			TokenB:   p.TokenB,
			PoolID:   p.PoolID,
		})
	}
	poolIndex := detector.NewStaticPoolIndexer(poolEntries)

	switch chain {
	case sandwichcore.ChainEthereum, sandwichcore.ChainBSC:
		return buildEVMRuntime(ctx, chain, chainCfg, perCallBudget, detectorCfg, poolIndex, signer, logger)
	case sandwichcore.ChainSolana:
		return buildSolanaRuntime(ctx, chain, chainCfg, perCallBudget, detectorCfg, poolIndex, signer, logger)
	default:
		return nil, fmt.Errorf("sandwichcore: unsupported chain %q", chainCfg.Name)
	}
}

func buildEVMRuntime(ctx context.Context, chain sandwichcore.Chain, chainCfg configs.ChainConfig, perCallBudget time.Duration, detectorCfg detector.Config, poolIndex *detector.StaticPoolIndexer, signer *localKeySigner, logger *slog.Logger) (*sandwichcore.ChainRuntime, error) {
	endpoints := make([]chainadapter.EVMEndpoint, 0, len(chainCfg.Providers))
	for _, p := range chainCfg.Providers {
		endpoints = append(endpoints, chainadapter.EVMEndpoint{Name: p.Name, HTTPURL: p.HTTPURL, WSURL: p.WSURL, Cost: p.Cost, RateLimit: p.RateLimit})
	}
	adapter, err := chainadapter.NewEVMAdapter(ctx, chain, endpoints, perCallBudget)
	if err != nil {
		return nil, fmt.Errorf("sandwichcore: dial %s adapter: %w", chain, err)
	}

	evmSigningKeyEnv := fmt.Sprintf("%s_PRIVATE_KEY", chainCfg.Name)
	if err := signer.loadEVMKey(chain, evmSigningKeyEnv); err != nil {
		return nil, err
	}
	fromAddr, _ := signer.EVMAddress(chain) // absent key caught at Sign time, not startup

	routerByProtocol := make(map[sandwichcore.Protocol]common.Address, len(chainCfg.Routers))
	for protocol, addr := range chainCfg.Routers {
		routerByProtocol[sandwichcore.Protocol(protocol)] = common.HexToAddress(addr)
	}
	decoder := mempool.NewEVMDecoder(chain, routerByProtocol)
	ingestion := mempool.NewIngestion(chain, adapter, decoder)

	pools, err := poolcache.New(chain, adapter)
	if err != nil {
		return nil, fmt.Errorf("sandwichcore: build pool cache: %w", err)
	}
	tokens, err := tokenmeta.New(tokenmeta.NewERC20Resolver(adapter.Client()))
	if err != nil {
		return nil, fmt.Errorf("sandwichcore: build token cache: %w", err)
	}

	det := detector.New(detectorCfg, pools, tokens, poolIndex)

	routerABI, err := firstRouterABI(routerByProtocol)
	if err != nil {
		return nil, err
	}
	nonceFn := func(ctx context.Context) (uint64, error) {
		return adapter.Client().PendingNonceAt(ctx, fromAddr)
	}
	factory := &builder.EVMTxFactory{
		ChainID:  chainIDFor(chain),
		RouterABI: routerABI,
		FromAddr: fromAddr,
		NonceFn:  nonceFn,
		GasLimit: 300000,
	}
	strategy := builder.EVMGasStrategy{
		Mode:     builder.GasMode(orDefault(chainCfg.GasMode, "adaptive")),
		GasLimit: 300000,
	}
	bld := builder.New(chain, factory, strategy, signer)
	bld.MinProfitNative = detectorCfg.MinProfitNative
	bld.MaxFrontRunFraction = detectorCfg.MaxFrontRunFraction

	router, err := buildRelayRouter(chainCfg)
	if err != nil {
		return nil, err
	}

	mon := monitor.New(monitor.DefaultConfig(), chain, adapter)

	logger.Info("sandwichcore: evm chain runtime configured", "chain", chain, "providers", len(chainCfg.Providers), "relays", len(chainCfg.Relays))

	return &sandwichcore.ChainRuntime{
		Chain:     chain,
		Adapter:   adapter,
		Ingestion: ingestion,
		Detector:  det,
		Builder:   bld,
		Router:    router,
		Monitor:   mon,
	}, nil
}

func buildSolanaRuntime(ctx context.Context, chain sandwichcore.Chain, chainCfg configs.ChainConfig, perCallBudget time.Duration, detectorCfg detector.Config, poolIndex *detector.StaticPoolIndexer, signer *localKeySigner, logger *slog.Logger) (*sandwichcore.ChainRuntime, error) {
	endpoints := make([]chainadapter.SolanaEndpoint, 0, len(chainCfg.Providers))
	for _, p := range chainCfg.Providers {
		endpoints = append(endpoints, chainadapter.SolanaEndpoint{Name: p.Name, HTTPURL: p.HTTPURL, WSURL: p.WSURL, Cost: p.Cost, RateLimit: p.RateLimit})
	}

	var programAddr string
	for _, addr := range chainCfg.Routers {
		programAddr = addr
		break
	}
	program, err := solanago.PublicKeyFromBase58(programAddr)
	if err != nil {
		return nil, fmt.Errorf("sandwichcore: bad solana program address %q: %w", programAddr, err)
	}

	adapter, err := chainadapter.NewSolanaAdapter(chain, endpoints, program, perCallBudget)
	if err != nil {
		return nil, fmt.Errorf("sandwichcore: dial %s adapter: %w", chain, err)
	}

	if err := signer.loadSolanaKey(chain, fmt.Sprintf("%s_PRIVATE_KEY", chainCfg.Name)); err != nil {
		return nil, err
	}
	payer, _ := signer.SolanaAddress(chain) // absent key caught at Sign time, not startup

	// Solana mempool observation rides the logs-subscription feed the
	// adapter already exposes; no dedicated decoder is wired here because
	// swap-instruction shapes are program-specific (see
	// builder.SolanaInstructionBuilder), so ingestion runs with a nil
	// decoder: Run discards every observation and no PendingSwap reaches the
	// detector on this chain.
	ingestion := mempool.NewIngestion(chain, adapter, nil)

	pools, err := poolcache.New(chain, adapter)
	if err != nil {
		return nil, fmt.Errorf("sandwichcore: build pool cache: %w", err)
	}
	tokens, err := tokenmeta.New(tokenmeta.NewSPLMintResolver(adapter.Client()))
	if err != nil {
		return nil, fmt.Errorf("sandwichcore: build token cache: %w", err)
	}

	det := detector.New(detectorCfg, pools, tokens, poolIndex)

	router, err := buildRelayRouter(chainCfg)
	if err != nil {
		return nil, err
	}
	mon := monitor.New(monitor.DefaultConfig(), chain, adapter)

	// No builder.TxFactory is wired for Solana until an operator supplies a
	// concrete builder.SolanaInstructionBuilder for the AMM program being
	// sandwiched; the runtime still ingests and monitors so the rest of the
	// pipeline is ready the moment one is plugged in.
	_ = payer
	logger.Info("sandwichcore: solana chain runtime configured (builder pending instruction set)", "chain", chain, "providers", len(chainCfg.Providers))

	return &sandwichcore.ChainRuntime{
		Chain:     chain,
		Adapter:   adapter,
		Ingestion: ingestion,
		Detector:  det,
		Router:    router,
		Monitor:   mon,
	}, nil
}

func buildRelayRouter(chainCfg configs.ChainConfig) (*relay.Router, error) {
	submitters := make([]relay.Submitter, 0, len(chainCfg.Relays))
	for _, r := range chainCfg.Relays {
		authToken := os.Getenv(r.AuthEnvVar)
		switch r.Name {
		case "flashbots":
			key, err := crypto.HexToECDSA(authToken)
			if err != nil {
				return nil, fmt.Errorf("sandwichcore: flashbots reputation key from %s: %w", r.AuthEnvVar, err)
			}
			submitters = append(submitters, relay.NewFlashbotsSubmitter(r.EndpointURL, key))
		case "bloxroute", "nodereal":
			submitters = append(submitters, relay.NewBloxrouteSubmitter(r.Name, r.EndpointURL, authToken))
		case "jito":
			submitters = append(submitters, relay.NewJitoSubmitter(r.EndpointURL))
		default:
			return nil, fmt.Errorf("sandwichcore: unknown relay %q", r.Name)
		}
	}
	return relay.NewRouter(submitters...), nil
}

func firstRouterABI(routerByProtocol map[sandwichcore.Protocol]common.Address) (abi.ABI, error) {
	if len(routerByProtocol) == 0 {
		return abi.ABI{}, fmt.Errorf("sandwichcore: no routers configured")
	}
	return mempool.RouterABI(), nil
}

func chainIDFor(chain sandwichcore.Chain) *big.Int {
	switch chain {
	case sandwichcore.ChainEthereum:
		return big.NewInt(1)
	case sandwichcore.ChainBSC:
		return big.NewInt(56)
	default:
		return big.NewInt(1)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
