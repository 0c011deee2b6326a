// Package config defines all configuration for the solver service.
// Config is loaded from an optional YAML file (default: configs/config.yaml)
// with every deployment-specific field overridable via environment
// variables; private keys come from the environment only and are never
// echoed back in logs or responses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	RPCURL  string `mapstructure:"rpc_url"`
	WSURL   string `mapstructure:"ws_url"`
	APIPort int    `mapstructure:"api_port"`
	DryRun  bool   `mapstructure:"dry_run"`

	Protocol ProtocolConfig `mapstructure:"protocol"`
	Solver   SolverConfig   `mapstructure:"solver"`
	Pools    []PoolConfig   `mapstructure:"pools"`
	Tokens   []TokenConfig  `mapstructure:"tokens"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Keys are environment-only: SOLVER_PRIVATE_KEY funds and signs
	// settlements, USER_PRIVATE_KEY backs the test-path create/cancel
	// endpoints. Both are 64-char hex seeds.
	SolverPrivateKey string `mapstructure:"-"`
	UserPrivateKey   string `mapstructure:"-"`
}

// ProtocolConfig locates the on-chain intent protocol deployment.
type ProtocolConfig struct {
	PackageID        string `mapstructure:"package_id"`
	ConfigID         string `mapstructure:"config_id"`
	DeepbookPackage  string `mapstructure:"deepbook_package_id"`
	DeepFeeTokenType string `mapstructure:"deep_fee_token_type"`
}

// SolverConfig tunes the engine.
//
//   - MinProfitBps: fills below this margin are skipped.
//   - MaxGasPrice: gas budget attached to settlement transactions.
//   - PollingInterval: how often the newest IntentCreated events are pulled.
//   - PollLimit: how many newest events each pull fetches.
//   - EnableEvents: also subscribe for push delivery over WebSocket.
type SolverConfig struct {
	MinProfitBps    uint64        `mapstructure:"min_profit_bps"`
	MaxGasPrice     uint64        `mapstructure:"max_gas_price"`
	PollingInterval time.Duration `mapstructure:"polling_interval"`
	PollLimit       int           `mapstructure:"poll_limit"`
	EnableEvents    bool          `mapstructure:"enable_events"`
}

// PoolConfig describes one CLOB pool. Pair is the alias form ("SUI_USDC")
// used for per-pair environment overrides (POOL_ID_SUI_USDC).
type PoolConfig struct {
	Pair        string `mapstructure:"pair"`
	PoolID      string `mapstructure:"pool_id"`
	BaseType    string `mapstructure:"base_type"`
	QuoteType   string `mapstructure:"quote_type"`
	BaseScalar  uint64 `mapstructure:"base_scalar"`
	QuoteScalar uint64 `mapstructure:"quote_scalar"`
	TickSize    uint64 `mapstructure:"tick_size"`
	LotSize     uint64 `mapstructure:"lot_size"`
}

// TokenConfig maps a human alias to a full asset type and its decimals.
// Unknown aliases pass through the façade as raw type identifiers.
type TokenConfig struct {
	Alias    string `mapstructure:"alias"`
	Type     string `mapstructure:"type"`
	Decimals int    `mapstructure:"decimals"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from an optional YAML file, then applies environment
// overrides for deployment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.Solver.MinProfitBps == 0 {
		cfg.Solver.MinProfitBps = 50
	}
	if cfg.Solver.PollingInterval == 0 {
		cfg.Solver.PollingInterval = 10 * time.Second
	}
	if cfg.Solver.PollLimit == 0 {
		cfg.Solver.PollLimit = 100
	}
	if cfg.Solver.MaxGasPrice == 0 {
		cfg.Solver.MaxGasPrice = 100_000_000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.RPCURL, "RPC_URL")
	setString(&cfg.WSURL, "WS_URL")
	setString(&cfg.Protocol.PackageID, "PACKAGE_ID")
	setString(&cfg.Protocol.ConfigID, "PROTOCOL_CONFIG_ID")
	setString(&cfg.Protocol.DeepbookPackage, "DEEPBOOK_PACKAGE_ID")
	setString(&cfg.Protocol.DeepFeeTokenType, "DEEP_FEE_TOKEN_TYPE")
	setString(&cfg.SolverPrivateKey, "SOLVER_PRIVATE_KEY")
	setString(&cfg.UserPrivateKey, "USER_PRIVATE_KEY")

	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = port
		}
	}
	if v := os.Getenv("MIN_PROFIT_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Solver.MinProfitBps = bps
		}
	}
	if v := os.Getenv("MAX_GAS_PRICE"); v != "" {
		if gas, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Solver.MaxGasPrice = gas
		}
	}
	if v := os.Getenv("POLLING_INTERVAL_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.Solver.PollingInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ENABLE_EVENTS"); v != "" {
		cfg.Solver.EnableEvents = v == "true" || v == "1"
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		cfg.DryRun = v == "true" || v == "1"
	}

	// Per-pair pool ID and per-alias asset type overrides.
	for i := range cfg.Pools {
		setString(&cfg.Pools[i].PoolID, "POOL_ID_"+cfg.Pools[i].Pair)
	}
	for i := range cfg.Tokens {
		setString(&cfg.Tokens[i].Type, "ASSET_TYPE_"+cfg.Tokens[i].Alias)
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url is required (set RPC_URL)")
	}
	if c.Protocol.PackageID == "" {
		return fmt.Errorf("protocol.package_id is required (set PACKAGE_ID)")
	}
	if c.Protocol.ConfigID == "" {
		return fmt.Errorf("protocol.config_id is required (set PROTOCOL_CONFIG_ID)")
	}
	if c.Protocol.DeepbookPackage == "" {
		return fmt.Errorf("protocol.deepbook_package_id is required (set DEEPBOOK_PACKAGE_ID)")
	}
	if c.Solver.EnableEvents && c.WSURL == "" {
		return fmt.Errorf("ws_url is required when solver.enable_events is set")
	}
	if len(c.Pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}
	for _, p := range c.Pools {
		if p.PoolID == "" {
			return fmt.Errorf("pool %s: pool_id is required", p.Pair)
		}
		if p.BaseType == "" || p.QuoteType == "" {
			return fmt.Errorf("pool %s: base_type and quote_type are required", p.Pair)
		}
		if p.BaseType == p.QuoteType {
			return fmt.Errorf("pool %s: base and quote must differ", p.Pair)
		}
		if p.BaseScalar == 0 || p.QuoteScalar == 0 {
			return fmt.Errorf("pool %s: scalars must be non-zero", p.Pair)
		}
	}
	if c.SolverPrivateKey != "" && len(c.SolverPrivateKey) != 64 {
		return fmt.Errorf("SOLVER_PRIVATE_KEY must be 64 hex chars")
	}
	if c.UserPrivateKey != "" && len(c.UserPrivateKey) != 64 {
		return fmt.Errorf("USER_PRIVATE_KEY must be 64 hex chars")
	}
	return nil
}
