// Package service holds the position state machine shared by every agent:
// allocation, reconciliation, liquidation checks and the decision policy.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// BalanceSource reports the free stable balance an allocation is sized from:
// the on-chain stable token for spot agents, withdrawable margin for perps.
type BalanceSource interface {
	StableBalance(ctx context.Context) (human float64, decimals int, err error)
}

// BalanceFunc adapts a function to BalanceSource.
type BalanceFunc func(ctx context.Context) (float64, int, error)

func (f BalanceFunc) StableBalance(ctx context.Context) (float64, int, error) { return f(ctx) }

// AllocationRequest describes the allocation an agent needs.
type AllocationRequest struct {
	Wallet     string
	Strategy   string
	Ticker     string
	BaseToken  string
	QuoteToken string
	Venue      domain.Venue
	Cap        float64
	// MinTrade is the smallest stable balance a spot agent will allocate
	// from. Ignored for perps.
	MinTrade float64
}

// UnallocatedSide is the side a new position starts on.
func (r AllocationRequest) UnallocatedSide() string {
	if r.Venue == domain.VenuePerp {
		return domain.SideFlat
	}
	return r.QuoteToken
}

// AllocationManager creates the per-(wallet, strategy) allocation on first
// use. An allocation is set once and never resized here.
type AllocationManager struct {
	positions domain.PositionStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewAllocationManager creates an AllocationManager.
func NewAllocationManager(positions domain.PositionStore, logger *slog.Logger) *AllocationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &AllocationManager{
		positions: positions,
		logger:    logger.With(slog.String("component", "allocation")),
		now:       time.Now,
	}
}

// EnsureAllocation returns the existing position for the request or creates
// one sized at req.Cap. ok is false when no position exists and none could
// be created; the reason has already been sent to sink.
func (m *AllocationManager) EnsureAllocation(ctx context.Context, sink domain.MessageSink, req AllocationRequest, src BalanceSource) (domain.Position, bool) {
	existing, err := m.positions.Get(ctx, req.Wallet, req.Strategy)
	switch {
	case err == nil:
		return existing, true
	case !errors.Is(err, domain.ErrNotFound):
		domain.Errorf(ctx, sink, "Could not read allocation: %v. Skipping run.", err)
		return domain.Position{}, false
	}

	domain.Infof(ctx, sink, "No existing allocation found. Checking %s balance...", req.QuoteToken)
	balance, decimals, err := src.StableBalance(ctx)
	if err != nil {
		domain.Errorf(ctx, sink, "Error while checking %s balance for allocation: %v. Skipping run; try again in a moment.", req.QuoteToken, err)
		return domain.Position{}, false
	}
	if balance <= 0 {
		domain.Warnf(ctx, sink, "No %s balance available for allocation. Skipping run.", req.QuoteToken)
		return domain.Position{}, false
	}
	if req.Venue == domain.VenueSpot && balance < req.MinTrade {
		domain.Warnf(ctx, sink, "Insufficient %s balance for allocation: have %g, need at least %g. Skipping run.",
			req.QuoteToken, balance, req.MinTrade)
		return domain.Position{}, false
	}
	if balance < req.Cap {
		domain.Warnf(ctx, sink, "%s balance %g is below the %g allocation cap; trades will use at most %g.",
			req.QuoteToken, balance, req.Cap, EffectiveTradeAmount(balance, req.Cap))
	}

	pos := domain.Position{
		WalletAddress:      req.Wallet,
		StrategyName:       req.Strategy,
		Ticker:             req.Ticker,
		BaseToken:          req.BaseToken,
		QuoteToken:         req.QuoteToken,
		AllocatedAmount:    req.Cap,
		AllocatedAmountRaw: domain.ToRaw(req.Cap, decimals),
		CurrentSide:        req.UnallocatedSide(),
		LastUpdatedAt:      m.now().UTC(),
	}
	if err := m.positions.Upsert(ctx, pos); err != nil {
		domain.Errorf(ctx, sink, "Could not save allocation: %v. Skipping run.", err)
		return domain.Position{}, false
	}

	m.logger.InfoContext(ctx, "allocation created",
		slog.String("key", pos.Key()),
		slog.Float64("amount", pos.AllocatedAmount),
		slog.String("raw", pos.AllocatedAmountRaw.String()),
	)
	domain.Infof(ctx, sink, "Allocated %g %s for this agent. Subsequent runs will trade within this allocation.",
		pos.AllocatedAmount, req.QuoteToken)
	return pos, true
}

// EffectiveTradeAmount is min(balance, allocation), floored at zero.
func EffectiveTradeAmount(balance, allocation float64) float64 {
	if balance <= 0 || allocation <= 0 {
		return 0
	}
	if balance < allocation {
		return balance
	}
	return allocation
}

// EffectiveTradeRaw is EffectiveTradeAmount on smallest-unit integers.
func EffectiveTradeRaw(balance, allocation *big.Int) *big.Int {
	if balance == nil || allocation == nil || balance.Sign() <= 0 || allocation.Sign() <= 0 {
		return new(big.Int)
	}
	if balance.Cmp(allocation) < 0 {
		return new(big.Int).Set(balance)
	}
	return new(big.Int).Set(allocation)
}
