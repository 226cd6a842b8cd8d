package sqlite_test

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/store/sqlite"
)

func newClient(t *testing.T) *sqlite.Client {
	t.Helper()
	c, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func samplePosition() domain.Position {
	return domain.Position{
		WalletAddress:      "0xAbC0000000000000000000000000000000000001",
		StrategyName:       "SentiChain ETH Agent on Base",
		Ticker:             "ETH",
		BaseToken:          "WETH",
		QuoteToken:         "USDC",
		AllocatedAmount:    10,
		AllocatedAmountRaw: big.NewInt(10_000_000),
		CurrentSide:        "USDC",
	}
}

func TestPositionStore_GetMissing(t *testing.T) {
	store := sqlite.NewPositionStore(newClient(t))

	_, err := store.Get(context.Background(), "0x1", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPositionStore_UpsertThenGet(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewPositionStore(newClient(t))
	p := samplePosition()

	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.Get(ctx, p.WalletAddress, p.StrategyName)
	require.NoError(t, err)
	assert.Equal(t, p.Ticker, got.Ticker)
	assert.Equal(t, p.BaseToken, got.BaseToken)
	assert.Equal(t, p.QuoteToken, got.QuoteToken)
	assert.Equal(t, p.AllocatedAmount, got.AllocatedAmount)
	assert.Equal(t, 0, p.AllocatedAmountRaw.Cmp(got.AllocatedAmountRaw))
	assert.Equal(t, p.CurrentSide, got.CurrentSide)
	assert.WithinDuration(t, time.Now(), got.LastUpdatedAt, 5*time.Second)
}

func TestPositionStore_KeepsLastUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewPositionStore(newClient(t))
	p := samplePosition()
	p.LastUpdatedAt = time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)

	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.Get(ctx, p.WalletAddress, p.StrategyName)
	require.NoError(t, err)
	assert.True(t, p.LastUpdatedAt.Equal(got.LastUpdatedAt), "got %s", got.LastUpdatedAt)

	p.CurrentSide = "WETH"
	p.LastUpdatedAt = time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, p))

	got, err = store.Get(ctx, p.WalletAddress, p.StrategyName)
	require.NoError(t, err)
	assert.Equal(t, p.LastUpdatedAt, got.LastUpdatedAt)
}

func TestPositionStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewPositionStore(newClient(t))
	p := samplePosition()
	require.NoError(t, store.Upsert(ctx, p))

	p.AllocatedAmount = 25
	p.AllocatedAmountRaw = big.NewInt(25_000_000)
	p.CurrentSide = "WETH"
	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.Get(ctx, p.WalletAddress, p.StrategyName)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.AllocatedAmount)
	assert.Equal(t, "25000000", got.AllocatedAmountRaw.String())
	assert.Equal(t, "WETH", got.CurrentSide)

	all, err := store.ListByWallet(ctx, p.WalletAddress)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPositionStore_UpdateSide(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewPositionStore(newClient(t))
	p := samplePosition()

	assert.ErrorIs(t, store.UpdateSide(ctx, p.WalletAddress, p.StrategyName, "WETH"), domain.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, p))
	require.NoError(t, store.UpdateSide(ctx, p.WalletAddress, p.StrategyName, "WETH"))

	got, err := store.Get(ctx, p.WalletAddress, p.StrategyName)
	require.NoError(t, err)
	assert.Equal(t, "WETH", got.CurrentSide)
	assert.Equal(t, "10000000", got.AllocatedAmountRaw.String())
}

func TestPositionStore_KeyedByWalletAndStrategy(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewPositionStore(newClient(t))

	a := samplePosition()
	b := samplePosition()
	b.StrategyName = "SentiChain BTC Agent on Base"
	b.BaseToken = "cbBTC"
	require.NoError(t, store.Upsert(ctx, a))
	require.NoError(t, store.Upsert(ctx, b))
	require.NoError(t, store.UpdateSide(ctx, b.WalletAddress, b.StrategyName, "cbBTC"))

	got, err := store.Get(ctx, a.WalletAddress, a.StrategyName)
	require.NoError(t, err)
	assert.Equal(t, "USDC", got.CurrentSide)

	all, err := store.ListByWallet(ctx, a.WalletAddress)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.StrategyName, all[0].StrategyName)
}

func TestOpen_FileIsReusable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	c, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, sqlite.NewPositionStore(c).Upsert(ctx, samplePosition()))
	require.NoError(t, c.Close())

	c, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer c.Close()
	p := samplePosition()
	_, err = sqlite.NewPositionStore(c).Get(ctx, p.WalletAddress, p.StrategyName)
	assert.NoError(t, err)
}

func TestAgentLogStore(t *testing.T) {
	ctx := context.Background()
	logs := sqlite.NewAgentLogStore(newClient(t))
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, logs.Append(ctx, domain.LogEntry{
		WalletAddress: "0x1", AgentName: "a", Level: domain.LevelInfo, Message: "old", CreatedAt: old,
	}))
	require.NoError(t, logs.Append(ctx, domain.LogEntry{
		WalletAddress: "0x1", AgentName: "a", Level: domain.LevelWarn, Message: "new",
	}))
	require.NoError(t, logs.Append(ctx, domain.LogEntry{
		WalletAddress: "0x1", AgentName: "b", Level: domain.LevelInfo, Message: "other",
	}))

	got, err := logs.List(ctx, domain.LogFilter{WalletAddress: "0x1", AgentName: "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Message)
	assert.NotEmpty(t, got[0].ID)

	warn, err := logs.List(ctx, domain.LogFilter{Level: domain.LevelWarn})
	require.NoError(t, err)
	require.Len(t, warn, 1)

	cutoff := time.Now().Add(-24 * time.Hour)
	before, err := logs.List(ctx, domain.LogFilter{ListOpts: domain.ListOpts{Until: &cutoff}})
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, "old", before[0].Message)

	n, err := logs.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rest, err := logs.List(ctx, domain.LogFilter{ListOpts: domain.ListOpts{Limit: 10}})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}
