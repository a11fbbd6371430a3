// Package configs loads the YAML operator configuration and the dotenv
// secrets file it references, following the same LoadConfig-plus-.env split
// the rest of this codebase's ancestry uses.
package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full operator-facing configuration: one entry per chain plus
// the global detection/risk floors, applied to every chain alike (ChainConfig
// has no fields that override them per chain).
type Config struct {
	Chains []ChainConfig `yaml:"chains"`
	Global GlobalConfig  `yaml:"global"`
}

// ChainConfig configures one chain's adapters and relay endpoints.
type ChainConfig struct {
	Name           string             `yaml:"name"` // "ethereum", "bsc", "solana"
	Providers      []ProviderConfig   `yaml:"providers"`
	Relays         []RelayConfig      `yaml:"relays"`
	Routers        map[string]string  `yaml:"routers"` // protocol -> router/program address
	Pools          []PoolConfig       `yaml:"pools,omitempty"`
	GasMode        string             `yaml:"gas_mode,omitempty"`
	PerCallBudgetMS int               `yaml:"per_call_budget_ms,omitempty"`
}

// PoolConfig names the on-chain pool backing one protocol's token pair, since
// a PendingSwap carries token addresses but the detector needs a pool ID to
// read reserves/ticks from.
type PoolConfig struct {
	Protocol string `yaml:"protocol"`
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	PoolID   string `yaml:"pool_id"`
}

// ProviderConfig is one RPC/WS endpoint entry in a chain's failover pool.
type ProviderConfig struct {
	Name      string  `yaml:"name"`
	HTTPURL   string  `yaml:"http_url"`
	WSURL     string  `yaml:"ws_url,omitempty"`
	Cost      float64 `yaml:"cost,omitempty"`
	RateLimit int     `yaml:"rate_limit,omitempty"`
}

// RelayConfig is one relay submitter entry, in priority order.
type RelayConfig struct {
	Name       string `yaml:"name"` // "flashbots", "bloxroute", "nodereal", "jito"
	EndpointURL string `yaml:"endpoint_url"`
	AuthEnvVar string `yaml:"auth_env_var,omitempty"` // name of the env var holding the auth token/key
}

// GlobalConfig is the set of detection/risk floors applied across all
// chains; there is no per-chain override.
type GlobalConfig struct {
	MinProfitNativeWei      string  `yaml:"min_profit_native_wei"`
	MinPriority             float64 `yaml:"min_priority"`
	MaxTaxBps               uint32  `yaml:"max_tax_bps"`
	MaxFrontRunFraction     float64 `yaml:"max_front_run_fraction"`
	MaxSlippageBps          uint32  `yaml:"max_slippage_bps"`
	MinDetectionSlippageBps uint32  `yaml:"min_detection_slippage_bps"`
	ShutdownGraceSec        int     `yaml:"shutdown_grace_sec"`
}

// DefaultGlobalConfig matches §4.4/§4.8's suggested defaults: 30% max
// front-run fraction, 500bps max tax, 30bps min detection slippage, 5s
// shutdown grace.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		MaxTaxBps:               500,
		MaxFrontRunFraction:     0.3,
		MaxSlippageBps:          200,
		MinDetectionSlippageBps: 30,
		ShutdownGraceSec:        5,
	}
}

// LoadConfig reads and parses path into a Config. GlobalConfig fields the
// file omits keep DefaultGlobalConfig's values; a field the file sets,
// even to zero, keeps the file's value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configs: read config file: %w", err)
	}

	cfg := Config{Global: DefaultGlobalConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("configs: parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadSecrets loads a dotenv file of relay auth tokens and signing
// credentials. Secrets never live in the YAML config, only in this file and
// the process environment it populates.
func LoadSecrets(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("configs: load secrets file %s: %w", path, err)
	}
	return nil
}

// ShutdownGrace returns the configured shutdown grace window as a
// time.Duration.
func (g GlobalConfig) ShutdownGrace() time.Duration {
	if g.ShutdownGraceSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(g.ShutdownGraceSec) * time.Second
}
