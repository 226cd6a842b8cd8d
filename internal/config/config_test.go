package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidateWithWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0x01"
	cfg.SentiChain.APIKey = "k"
	cfg.Agent = "SentiChain ETH Agent on Base"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "daemon"
	cfg.Storage.Driver = "mysql"
	cfg.Hyperliquid.Slippage = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "daemon"`)
	assert.Contains(t, err.Error(), `unknown driver "mysql"`)
	assert.Contains(t, err.Error(), "slippage")
}

func TestTickNeedsAgentAndWallet(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent: required for mode tick")
	assert.Contains(t, err.Error(), "wallet: either private_key")
}

func TestServeModeNeedsWalletAndPort(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	cfg.Server.Port = 0
	assert.True(t, cfg.NeedsWallet())

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server: port 0 out of range")
	assert.Contains(t, err.Error(), "wallet: either private_key")
	assert.NotContains(t, err.Error(), "agent: required")
}

func TestLoadPartialNetworkKeepsBaseDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "status"

[networks.base]
rpc_url = "https://base.example.org"
public_rpc = false

[agents]
default_allocation = 25.0
lock_ttl = "2m"

[agents.allocation]
"SentiChain BTC Agent on Hyperliquid" = 50.0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	base := cfg.Networks["base"]
	assert.Equal(t, "https://base.example.org", base.RPCURL)
	assert.False(t, base.PublicRPC)
	assert.EqualValues(t, 8453, base.ChainID)
	assert.Equal(t, aerodromeRouter, base.Router)
	assert.EqualValues(t, 200_000, base.ApproveGasLimit)
	assert.Equal(t, 15*time.Minute, base.SwapDeadline.Duration)

	addr, ok := base.TokenAddress("cbbtc")
	require.True(t, ok)
	assert.Equal(t, baseCbBTC, addr)
	addr, ok = base.TokenAddress("usdc")
	require.True(t, ok)
	assert.Equal(t, baseUSDC, addr)

	assert.Equal(t, 2*time.Minute, cfg.Agents.LockTTL.Duration)
	assert.Equal(t, 50.0, cfg.Agents.AllocationFor("SentiChain BTC Agent on Hyperliquid"))
	assert.Equal(t, 25.0, cfg.Agents.AllocationFor("SentiChain ETH Agent on Base"))
}

func TestLoadUppercasesSizePrecisionCoins(t *testing.T) {
	path := writeTOML(t, `
mode = "status"

[hyperliquid.size_precision]
eth = 2
sol = 1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"BTC": 4, "ETH": 2, "SOL": 1}, cfg.Hyperliquid.SizePrecision)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SENTITRADER_SENTICHAIN_API_KEY", "env-key")
	t.Setenv("SENTITRADER_HYPERLIQUID_TESTNET", "true")
	t.Setenv("SENTITRADER_AGENTS_ENABLED", "a, b,,c")
	t.Setenv("SENTITRADER_SERVER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.SentiChain.APIKey)
	assert.Equal(t, HyperliquidTestnetURL, cfg.Hyperliquid.BaseURL)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Agents.Enabled)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "secret"
	cfg.SentiChain.APIKey = "api"
	cfg.Agents.Allocation = map[string]float64{"x": 1}

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.SentiChain.APIKey)
	assert.Equal(t, "", red.Wallet.KeyPassword)

	red.Agents.Allocation["x"] = 2
	assert.Equal(t, 1.0, cfg.Agents.Allocation["x"])
	assert.Equal(t, "secret", cfg.Wallet.PrivateKey)
}
