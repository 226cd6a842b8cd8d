package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SENTITRADER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	normalize(&cfg)

	return &cfg, nil
}

// normalize fills network fields a partial [networks.<name>] table left zero
// and resolves derived values.
func normalize(cfg *Config) {
	base := DefaultBaseNetwork()
	for name, n := range cfg.Networks {
		if name == "base" {
			if n.ChainID == 0 {
				n.ChainID = base.ChainID
			}
			if n.RPCURL == "" {
				n.RPCURL = base.RPCURL
			}
			if n.ExplorerURL == "" {
				n.ExplorerURL = base.ExplorerURL
			}
			if n.StableToken == "" {
				n.StableToken = base.StableToken
			}
			if n.Router == "" {
				n.Router = base.Router
			}
			if n.V2Factory == "" {
				n.V2Factory = base.V2Factory
			}
			if n.CLFactory == "" {
				n.CLFactory = base.CLFactory
			}
			if len(n.Tokens) == 0 {
				n.Tokens = base.Tokens
			}
		}
		if n.StableSymbol == "" {
			n.StableSymbol = "USDC"
		}
		if n.ApproveGasLimit == 0 {
			n.ApproveGasLimit = base.ApproveGasLimit
		}
		if n.SwapGasLimit == 0 {
			n.SwapGasLimit = base.SwapGasLimit
		}
		if n.SwapDeadline.Duration == 0 {
			n.SwapDeadline = base.SwapDeadline
		}
		if n.ReceiptTimeout.Duration == 0 {
			n.ReceiptTimeout = base.ReceiptTimeout
		}
		if n.RPCRatePerSec == 0 {
			n.RPCRatePerSec = base.RPCRatePerSec
		}
		cfg.Networks[name] = n
	}

	if cfg.Hyperliquid.Testnet && cfg.Hyperliquid.BaseURL == HyperliquidMainnetURL {
		cfg.Hyperliquid.BaseURL = HyperliquidTestnetURL
	}
	cfg.Hyperliquid.BaseURL = strings.TrimRight(cfg.Hyperliquid.BaseURL, "/")
	cfg.Hyperliquid.SizePrecision = upperKeys(cfg.Hyperliquid.SizePrecision)
	cfg.SentiChain.BaseURL = strings.TrimRight(cfg.SentiChain.BaseURL, "/")

	cfg.Storage.SQLitePath = expandHome(cfg.Storage.SQLitePath)
	cfg.Wallet.EncryptedKeyPath = expandHome(cfg.Wallet.EncryptedKeyPath)
}

// upperKeys re-keys m by upper-cased coin symbol. A key written in another
// case replaces the upper-case entry.
func upperKeys(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		if k == strings.ToUpper(k) {
			out[k] = v
		}
	}
	for k, v := range m {
		if up := strings.ToUpper(k); up != k {
			out[up] = v
		}
	}
	return out
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// applyEnvOverrides reads well-known SENTITRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SENTITRADER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SENTITRADER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SENTITRADER_WALLET_KEY_PASSWORD")

	// ── Base network ──
	if n, ok := cfg.Networks["base"]; ok {
		setStr(&n.RPCURL, "SENTITRADER_BASE_RPC_URL")
		setBool(&n.PublicRPC, "SENTITRADER_BASE_PUBLIC_RPC")
		setFloat64(&n.MinTradeAmount, "SENTITRADER_BASE_MIN_TRADE_AMOUNT")
		cfg.Networks["base"] = n
	}

	// ── Hyperliquid ──
	setStr(&cfg.Hyperliquid.BaseURL, "SENTITRADER_HYPERLIQUID_BASE_URL")
	setBool(&cfg.Hyperliquid.Testnet, "SENTITRADER_HYPERLIQUID_TESTNET")
	setFloat64(&cfg.Hyperliquid.Slippage, "SENTITRADER_HYPERLIQUID_SLIPPAGE")
	setInt(&cfg.Hyperliquid.Leverage, "SENTITRADER_HYPERLIQUID_LEVERAGE")
	setBool(&cfg.Hyperliquid.SetLeverage, "SENTITRADER_HYPERLIQUID_SET_LEVERAGE")

	// ── SentiChain ──
	setStr(&cfg.SentiChain.BaseURL, "SENTITRADER_SENTICHAIN_BASE_URL")
	setStr(&cfg.SentiChain.APIKey, "SENTITRADER_SENTICHAIN_API_KEY")
	setStr(&cfg.SentiChain.APIKey, "SENTICHAIN_API_KEY") // compatibility alias
	setDuration(&cfg.SentiChain.Timeout, "SENTITRADER_SENTICHAIN_TIMEOUT")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "SENTITRADER_STORAGE_DRIVER")
	setStr(&cfg.Storage.SQLitePath, "SENTITRADER_STORAGE_SQLITE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SENTITRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SENTITRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SENTITRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SENTITRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SENTITRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SENTITRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SENTITRADER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SENTITRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SENTITRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SENTITRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SENTITRADER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SENTITRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SENTITRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SENTITRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SENTITRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SENTITRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SENTITRADER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "SENTITRADER_REDIS_NAMESPACE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SENTITRADER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SENTITRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SENTITRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SENTITRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SENTITRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SENTITRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SENTITRADER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SENTITRADER_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "SENTITRADER_S3_RETENTION_DAYS")

	// ── Agents ──
	setStringSlice(&cfg.Agents.Enabled, "SENTITRADER_AGENTS_ENABLED")
	setFloat64(&cfg.Agents.DefaultAllocation, "SENTITRADER_AGENTS_DEFAULT_ALLOCATION")
	setDuration(&cfg.Agents.LockTTL, "SENTITRADER_AGENTS_LOCK_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SENTITRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SENTITRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SENTITRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Levels, "SENTITRADER_NOTIFY_LEVELS")

	// ── Server ──
	setInt(&cfg.Server.Port, "SENTITRADER_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SENTITRADER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "SENTITRADER_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Top-level ──
	setStr(&cfg.Mode, "SENTITRADER_MODE")
	setStr(&cfg.Agent, "SENTITRADER_AGENT")
	setStr(&cfg.LogLevel, "SENTITRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
