// Package strategy defines the trading agents and the context they run in.
// An agent turns one sentiment signal into at most one trade per tick.
package strategy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/executor"
	"github.com/alanyoungcy/sentitrader/internal/platform/evm"
)

// Agent is a single named trading strategy bound to one wallet position.
//
// RunTick and Unwind always return. Every failure is reported to the
// context's sink and ends the tick early.
type Agent interface {
	Name() string
	Info() AgentInfo
	RunTick(ctx context.Context, ac *AgentContext)
	Unwind(ctx context.Context, ac *AgentContext)
}

// AgentInfo describes an agent for listings.
type AgentInfo struct {
	Name       string
	Venue      domain.Venue
	Ticker     string
	BaseToken  string
	QuoteToken string
	Signal     string
}

// SignalSource fetches sentiment for a ticker.
type SignalSource interface {
	FetchEvents(ctx context.Context, ticker string) ([]domain.SentimentEvent, error)
	FetchTradingSignal(ctx context.Context, ticker string) (*domain.TradingSignal, error)
	FetchResearchNote(ctx context.Context, ticker string) (string, error)
}

// BalanceReader reads ERC-20 balances.
type BalanceReader interface {
	TokenBalance(ctx context.Context, token, owner common.Address) (evm.TokenBalance, error)
}

// Swapper executes one spot swap and reports its progress to sink.
type Swapper interface {
	Execute(ctx context.Context, sink domain.MessageSink, req executor.SwapRequest) executor.SwapResult
}

// PerpTrader is the per-coin perpetuals surface used by perp agents.
type PerpTrader interface {
	Withdrawable(ctx context.Context) (float64, error)
	Position(ctx context.Context) (domain.PositionInfo, bool, error)
	Mid(ctx context.Context) (float64, error)
	OpenLong(ctx context.Context, notionalUSD float64) domain.OrderResult
	CloseLong(ctx context.Context) domain.OrderResult
}

// PerpFactory returns the trader for a coin.
type PerpFactory func(coin string) (PerpTrader, error)

// SpotVenue bundles the chain access spot agents need on one network.
type SpotVenue struct {
	Chain        BalanceReader
	Swapper      Swapper
	StableSymbol string
	StableToken  common.Address
	Tokens       map[string]common.Address
	// MinTrade is the smallest stable balance an allocation is taken from.
	MinTrade float64
}

// Token looks up a configured token address by symbol, case-insensitively.
func (v *SpotVenue) Token(symbol string) (common.Address, bool) {
	if strings.EqualFold(symbol, v.StableSymbol) {
		return v.StableToken, true
	}
	for k, addr := range v.Tokens {
		if strings.EqualFold(k, symbol) {
			return addr, true
		}
	}
	return common.Address{}, false
}

// AgentContext is everything one agent run needs. It is built per run, so
// Sink and Allocation are already scoped to the agent.
type AgentContext struct {
	Wallet    string
	Positions domain.PositionStore
	Locks     domain.LockManager
	LockTTL   time.Duration
	Sink      domain.MessageSink
	Signals   SignalSource
	Spot      *SpotVenue
	Perp      PerpFactory
	// Allocation is the stable cap taken on first run.
	Allocation              float64
	LiquidationThresholdPct float64
	Logger                  *slog.Logger
}

func (ac *AgentContext) sink() domain.MessageSink {
	if ac.Sink == nil {
		return domain.DiscardSink{}
	}
	return ac.Sink
}

func (ac *AgentContext) logger() *slog.Logger {
	if ac.Logger == nil {
		return slog.Default()
	}
	return ac.Logger
}

var errNotConfigured = errors.New("not configured")

func (ac *AgentContext) spotVenue() (*SpotVenue, error) {
	if ac.Spot == nil || ac.Spot.Chain == nil || ac.Spot.Swapper == nil {
		return nil, domain.E(domain.KindInvariant, "strategy: spot venue", errNotConfigured)
	}
	return ac.Spot, nil
}

func (ac *AgentContext) perpTrader(coin string) (PerpTrader, error) {
	if ac.Perp == nil {
		return nil, domain.E(domain.KindInvariant, "strategy: perp venue", errNotConfigured)
	}
	return ac.Perp(coin)
}
