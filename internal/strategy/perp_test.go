package strategy_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/strategy"
)

func btcPerp() *strategy.PerpAgent {
	return strategy.NewPerpAgent(strategy.BTCPerpAgent, "BTC", "BTC", strategy.SignalCounts)
}

func ethPerp() *strategy.PerpAgent {
	return strategy.NewPerpAgent(strategy.ETHPerpAgent, "ETH", "ETH", strategy.SignalDirection)
}

func filled(size float64) domain.OrderResult {
	return domain.OrderResult{Success: true, Status: domain.OrderFilled, FilledSize: size, AvgPrice: 95000}
}

func TestPerpTick_BullishOpensLong(t *testing.T) {
	h := newHarness(t)
	h.trader.withdrawable = 25
	h.trader.openRes = filled(0.0001)
	h.signals.events = bullish(2)

	btcPerp().RunTick(context.Background(), h.ac)

	require.Equal(t, []float64{10}, h.trader.opens)
	pos := h.position(t, strategy.BTCPerpAgent)
	assert.Equal(t, domain.SideLong, pos.CurrentSide)
	assert.Equal(t, "10000000", pos.AllocatedAmountRaw.String())
	assert.Equal(t, "BTC", pos.BaseToken)
	assert.True(t, h.sink.has(domain.LevelAlert))
}

func TestPerpTick_NotionalCappedByWithdrawable(t *testing.T) {
	h := newHarness(t)
	h.trader.withdrawable = 4
	h.trader.openRes = filled(0.00004)
	h.signals.events = bullish(1)

	btcPerp().RunTick(context.Background(), h.ac)

	assert.Equal(t, []float64{4}, h.trader.opens)
}

func TestPerpTick_OrderNotFilledKeepsFlat(t *testing.T) {
	tests := []struct {
		name  string
		res   domain.OrderResult
		level domain.LogLevel
	}{
		{"resting", domain.OrderResult{Success: true, Status: domain.OrderResting, Error: "Order resting in book"}, domain.LevelAlert},
		{"margin", domain.OrderResult{Status: domain.OrderInsufficientMargin, Error: "Insufficient margin"}, domain.LevelError},
		{"exception", domain.OrderResult{Status: domain.OrderException, Error: "timeout"}, domain.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.trader.withdrawable = 25
			h.trader.openRes = tt.res
			h.signals.events = bullish(1)

			btcPerp().RunTick(context.Background(), h.ac)

			assert.Len(t, h.trader.opens, 1)
			assert.Equal(t, domain.SideFlat, h.position(t, strategy.BTCPerpAgent).CurrentSide)
			assert.True(t, h.sink.has(tt.level))
		})
	}
}

func TestPerpTick_BearishClosesLong(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.trader.withdrawable = 25
	h.trader.openRes = filled(0.0001)
	h.signals.events = bullish(1)
	agent := btcPerp()
	agent.RunTick(ctx, h.ac)
	require.Equal(t, domain.SideLong, h.position(t, strategy.BTCPerpAgent).CurrentSide)

	h.signals.events = bearish(2)
	agent.RunTick(ctx, h.ac)

	assert.Equal(t, 1, h.trader.closes)
	assert.Equal(t, domain.SideFlat, h.position(t, strategy.BTCPerpAgent).CurrentSide)
}

func TestPerpTick_BearishWhileFlatHolds(t *testing.T) {
	h := newHarness(t)
	h.trader.withdrawable = 25
	h.signals.events = bearish(1)

	btcPerp().RunTick(context.Background(), h.ac)

	assert.Zero(t, h.trader.closes)
	assert.Empty(t, h.trader.opens)
	assert.Equal(t, domain.SideFlat, h.position(t, strategy.BTCPerpAgent).CurrentSide)
}

func TestPerpTick_LiquidationRiskAlerts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.trader.withdrawable = 25
	h.trader.openRes = filled(0.0001)
	h.signals.events = bullish(1)
	agent := btcPerp()
	agent.RunTick(ctx, h.ac)

	liq := 93000.0
	h.trader.liq = &liq
	h.sink.msgs, h.sink.lvls = nil, nil
	agent.RunTick(ctx, h.ac)

	assert.True(t, h.sink.contains("LIQUIDATION RISK"))
	assert.Len(t, h.trader.opens, 1)
}

func TestPerpTick_HealthyPositionReportsDistance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.trader.withdrawable = 25
	h.trader.openRes = filled(0.0001)
	h.signals.events = bullish(1)
	agent := btcPerp()
	agent.RunTick(ctx, h.ac)

	liq := 47000.0
	h.trader.liq = &liq
	agent.RunTick(ctx, h.ac)

	assert.True(t, h.sink.contains("Position health: Long position OK"))
	assert.False(t, h.sink.contains("LIQUIDATION RISK"))
}

func TestPerpTick_DirectionSignal(t *testing.T) {
	tests := []struct {
		name      string
		signal    *domain.TradingSignal
		wantOpens int
		wantAlloc bool
	}{
		{"long opens", directionSignal("LONG"), 1, true},
		{"short while flat holds", directionSignal("SHORT"), 0, true},
		{"neutral skips", directionSignal("NEUTRAL"), 0, false},
		{"unknown skips", directionSignal("SIDEWAYS"), 0, false},
		{"missing skips", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.trader.withdrawable = 25
			h.trader.openRes = filled(0.003)
			h.signals.signal = tt.signal

			ethPerp().RunTick(context.Background(), h.ac)

			assert.Len(t, h.trader.opens, tt.wantOpens)
			_, err := h.store.Get(context.Background(), testWallet, strategy.ETHPerpAgent)
			if tt.wantAlloc {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrNotFound)
			}
		})
	}
}

func TestPerpTick_ResearchNoteIsTruncated(t *testing.T) {
	h := newHarness(t)
	h.trader.withdrawable = 25
	h.trader.openRes = filled(0.003)
	h.signals.signal = directionSignal("LONG")
	h.signals.note = strings.Repeat("a", 800)

	ethPerp().RunTick(context.Background(), h.ac)

	var note string
	for _, m := range h.sink.msgs {
		if strings.HasPrefix(m, "Research note: ") {
			note = m
		}
	}
	require.NotEmpty(t, note)
	assert.Equal(t, len("Research note: ")+500+len("..."), len(note))
}

func TestPerpTick_ResearchNoteFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.trader.withdrawable = 25
	h.trader.openRes = filled(0.003)
	h.signals.signal = directionSignal("LONG")
	h.signals.noteErr = errors.New("502")

	ethPerp().RunTick(context.Background(), h.ac)

	assert.Len(t, h.trader.opens, 1)
	assert.True(t, h.sink.has(domain.LevelWarn))
}

func TestPerpTick_VenueUnavailable(t *testing.T) {
	h := newHarness(t)
	h.signals.events = bullish(1)
	h.ac.Perp = func(string) (strategy.PerpTrader, error) { return nil, errors.New("meta: no such coin") }

	btcPerp().RunTick(context.Background(), h.ac)

	assert.True(t, h.sink.contains("Perp venue unavailable"))
}

func TestPerpUnwind(t *testing.T) {
	ctx := context.Background()

	t.Run("no position", func(t *testing.T) {
		h := newHarness(t)
		btcPerp().Unwind(ctx, h.ac)
		assert.Zero(t, h.trader.closes)
		assert.True(t, h.sink.contains("Nothing to unwind"))
	})

	t.Run("closes long", func(t *testing.T) {
		h := newHarness(t)
		h.trader.withdrawable = 25
		h.trader.openRes = filled(0.0001)
		h.signals.events = bullish(1)
		agent := btcPerp()
		agent.RunTick(ctx, h.ac)

		agent.Unwind(ctx, h.ac)

		assert.Equal(t, 1, h.trader.closes)
		assert.Equal(t, domain.SideFlat, h.position(t, strategy.BTCPerpAgent).CurrentSide)
		assert.True(t, h.sink.contains("Unwind complete"))
	})

	t.Run("already flat", func(t *testing.T) {
		h := newHarness(t)
		h.trader.withdrawable = 25
		h.signals.events = bearish(1)
		agent := btcPerp()
		agent.RunTick(ctx, h.ac)

		agent.Unwind(ctx, h.ac)

		assert.Zero(t, h.trader.closes)
		assert.True(t, h.sink.contains("already FLAT"))
	})
}
