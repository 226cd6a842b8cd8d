// Package config defines the top-level configuration for sentitrader and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SENTITRADER_* environment variables.
type Config struct {
	Wallet      WalletConfig             `toml:"wallet"`
	Networks    map[string]NetworkConfig `toml:"networks"`
	Hyperliquid HyperliquidConfig        `toml:"hyperliquid"`
	SentiChain  SentiChainConfig         `toml:"sentichain"`
	Storage     StorageConfig            `toml:"storage"`
	Postgres    PostgresConfig           `toml:"postgres"`
	Redis       RedisConfig              `toml:"redis"`
	S3          S3Config                 `toml:"s3"`
	Agents      AgentsConfig             `toml:"agents"`
	Notify      NotifyConfig             `toml:"notify"`
	Server      ServerConfig             `toml:"server"`
	Mode        string                   `toml:"mode"`
	Agent       string                   `toml:"agent"`
	LogLevel    string                   `toml:"log_level"`
}

// WalletConfig holds the trading key. Exactly one of PrivateKey or
// EncryptedKeyPath is expected.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// NetworkConfig carries every chain-specific constant the spot pipeline
// needs. Addresses are hex strings and are checksummed at wiring time.
type NetworkConfig struct {
	ChainID         int64             `toml:"chain_id"`
	RPCURL          string            `toml:"rpc_url"`
	PublicRPC       bool              `toml:"public_rpc"`
	RPCRatePerSec   float64           `toml:"rpc_rate_per_sec"`
	ExplorerURL     string            `toml:"explorer_url"`
	StableToken     string            `toml:"stable_token"`
	StableSymbol    string            `toml:"stable_symbol"`
	Router          string            `toml:"router"`
	V2Factory       string            `toml:"v2_factory"`
	CLFactory       string            `toml:"cl_factory"`
	ApproveGasLimit uint64            `toml:"approve_gas_limit"`
	SwapGasLimit    uint64            `toml:"swap_gas_limit"`
	SwapDeadline    duration          `toml:"swap_deadline"`
	ReceiptTimeout  duration          `toml:"receipt_timeout"`
	MinTradeAmount  float64           `toml:"min_trade_amount"`
	Tokens          map[string]string `toml:"tokens"`
}

// TokenAddress looks up a token by symbol, case-insensitively.
func (n NetworkConfig) TokenAddress(symbol string) (string, bool) {
	if strings.EqualFold(symbol, n.StableSymbol) && n.StableToken != "" {
		return n.StableToken, true
	}
	for k, v := range n.Tokens {
		if strings.EqualFold(k, symbol) {
			return v, true
		}
	}
	return "", false
}

// HyperliquidConfig holds perpetuals venue parameters.
type HyperliquidConfig struct {
	BaseURL                 string         `toml:"base_url"`
	Testnet                 bool           `toml:"testnet"`
	Slippage                float64        `toml:"slippage"`
	Leverage                int            `toml:"leverage"`
	SetLeverage             bool           `toml:"set_leverage"`
	MarginBuffer            float64        `toml:"margin_buffer"`
	LiquidationThresholdPct float64        `toml:"liquidation_threshold_pct"`
	SizePrecision           map[string]int `toml:"size_precision"`
	DefaultSizePrecision    int            `toml:"default_size_precision"`
	Timeout                 duration       `toml:"timeout"`
}

// SentiChainConfig holds the signal service endpoint and credentials.
type SentiChainConfig struct {
	BaseURL            string   `toml:"base_url"`
	APIKey             string   `toml:"api_key"`
	Timeout            duration `toml:"timeout"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
}

// StorageConfig selects the durable position store.
type StorageConfig struct {
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; when
// disabled, tick locks are process-local.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Namespace  string `toml:"namespace"`
}

// S3Config holds S3-compatible object storage parameters for the log archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
	RetentionDays  int    `toml:"retention_days"`
}

// AgentsConfig selects agents and their allocation caps.
type AgentsConfig struct {
	Enabled           []string           `toml:"enabled"`
	DefaultAllocation float64            `toml:"default_allocation"`
	Allocation        map[string]float64 `toml:"allocation"`
	LockTTL           duration           `toml:"lock_ttl"`
	TickTimeout       duration           `toml:"tick_timeout"`
}

// AllocationFor returns the configured cap for agent, or the default.
func (a AgentsConfig) AllocationFor(agent string) float64 {
	if v, ok := a.Allocation[agent]; ok && v > 0 {
		return v
	}
	return a.DefaultAllocation
}

// ServerConfig holds the operator HTTP API settings used by serve mode.
type ServerConfig struct {
	Port               int    `toml:"port"`
	APIKey             string `toml:"api_key"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	// Levels lists the message levels pushed to channels. Empty means
	// ALERT only.
	Levels []string `toml:"levels"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "15m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Base mainnet constants.
const (
	baseChainID     = 8453
	baseRPC         = "https://mainnet.base.org"
	baseExplorer    = "https://basescan.org"
	baseUSDC        = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	baseWETH        = "0x4200000000000000000000000000000000000006"
	baseCbBTC       = "0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf"
	aerodromeRouter = "0xcF77a3Ba9A5CA399B7c97c74d54e5b1Beb874E43"
	aerodromeV2     = "0x420DD381b31aEf6683db6B902084cB0FFECe40Da"
	aerodromeCL     = "0x5e7BB104d84c7CB9B682AaC2F3d509f5F406809A"

	HyperliquidMainnetURL = "https://api.hyperliquid.xyz"
	HyperliquidTestnetURL = "https://api.hyperliquid-testnet.xyz"
)

// DefaultBaseNetwork returns the built-in Base mainnet network.
func DefaultBaseNetwork() NetworkConfig {
	return NetworkConfig{
		ChainID:         baseChainID,
		RPCURL:          baseRPC,
		PublicRPC:       true,
		RPCRatePerSec:   5,
		ExplorerURL:     baseExplorer,
		StableToken:     baseUSDC,
		StableSymbol:    "USDC",
		Router:          aerodromeRouter,
		V2Factory:       aerodromeV2,
		CLFactory:       aerodromeCL,
		ApproveGasLimit: 200_000,
		SwapGasLimit:    400_000,
		SwapDeadline:    duration{15 * time.Minute},
		ReceiptTimeout:  duration{2 * time.Minute},
		MinTradeAmount:  1,
		Tokens: map[string]string{
			"WETH":  baseWETH,
			"cbBTC": baseCbBTC,
		},
	}
}

// Defaults returns a Config populated with reasonable default values.
// Secrets are left empty.
func Defaults() Config {
	return Config{
		Networks: map[string]NetworkConfig{
			"base": DefaultBaseNetwork(),
		},
		Hyperliquid: HyperliquidConfig{
			BaseURL:                 HyperliquidMainnetURL,
			Slippage:                0.02,
			Leverage:                1,
			MarginBuffer:            1.1,
			LiquidationThresholdPct: 5,
			SizePrecision:           map[string]int{"BTC": 4, "ETH": 3},
			DefaultSizePrecision:    4,
			Timeout:                 duration{30 * time.Second},
		},
		SentiChain: SentiChainConfig{
			BaseURL:            "https://api.sentichain.com",
			Timeout:            duration{30 * time.Second},
			RateLimitPerMinute: 30,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "~/.sentitrader/state.db",
		},
		Postgres: PostgresConfig{
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  0,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   5,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
			UseSSL:         true,
			Prefix:         "agent-logs",
			RetentionDays:  30,
		},
		Agents: AgentsConfig{
			DefaultAllocation: 10,
			LockTTL:           duration{10 * time.Minute},
			TickTimeout:       duration{5 * time.Minute},
		},
		Server: ServerConfig{
			Port:               8080,
			RateLimitPerMinute: 120,
		},
		Mode:     "tick",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"tick":    true,
	"unwind":  true,
	"run-all": true,
	"status":  true,
	"archive": true,
	"serve":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsWallet reports whether the configured mode signs transactions or
// queries wallet state.
func (c *Config) NeedsWallet() bool {
	switch strings.ToLower(c.Mode) {
	case "tick", "unwind", "run-all", "status", "serve":
		return true
	}
	return false
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: tick, unwind, run-all, status, archive, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.NeedsWallet() {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}
	if (c.Mode == "tick" || c.Mode == "unwind") && strings.TrimSpace(c.Agent) == "" {
		errs = append(errs, "agent: required for mode "+c.Mode)
	}

	for name, n := range c.Networks {
		if n.ChainID <= 0 {
			errs = append(errs, fmt.Sprintf("networks.%s: chain_id must be positive", name))
		}
		if n.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("networks.%s: rpc_url must not be empty", name))
		}
		for field, addr := range map[string]string{
			"stable_token": n.StableToken,
			"router":       n.Router,
			"v2_factory":   n.V2Factory,
			"cl_factory":   n.CLFactory,
		} {
			if !common.IsHexAddress(addr) {
				errs = append(errs, fmt.Sprintf("networks.%s: %s %q is not a hex address", name, field, addr))
			}
		}
		for sym, addr := range n.Tokens {
			if !common.IsHexAddress(addr) {
				errs = append(errs, fmt.Sprintf("networks.%s: token %s %q is not a hex address", name, sym, addr))
			}
		}
		if n.ApproveGasLimit == 0 || n.SwapGasLimit == 0 {
			errs = append(errs, fmt.Sprintf("networks.%s: gas limits must be > 0", name))
		}
	}

	if c.Hyperliquid.BaseURL == "" {
		errs = append(errs, "hyperliquid: base_url must not be empty")
	}
	if c.Hyperliquid.Slippage <= 0 || c.Hyperliquid.Slippage >= 1 {
		errs = append(errs, fmt.Sprintf("hyperliquid: slippage must be in (0, 1), got %v", c.Hyperliquid.Slippage))
	}
	if c.Hyperliquid.Leverage < 1 {
		errs = append(errs, "hyperliquid: leverage must be >= 1")
	}
	if c.Hyperliquid.MarginBuffer < 1 {
		errs = append(errs, "hyperliquid: margin_buffer must be >= 1")
	}

	if c.NeedsWallet() && c.Mode != "status" && c.SentiChain.APIKey == "" {
		errs = append(errs, "sentichain: api_key must be set")
	}

	if strings.ToLower(c.Mode) == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, "storage: sqlite_path must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: sqlite, postgres)", c.Storage.Driver))
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled || c.Mode == "archive" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
	}

	if c.Agents.DefaultAllocation <= 0 {
		errs = append(errs, "agents: default_allocation must be > 0")
	}
	if c.Agents.LockTTL.Duration <= 0 {
		errs = append(errs, "agents: lock_ttl must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
