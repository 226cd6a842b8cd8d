package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/platform/hyperliquid"
)

// PerpVenue is the perpetuals venue surface the order engine needs.
type PerpVenue interface {
	AllMids(ctx context.Context) (map[string]float64, error)
	UserState(ctx context.Context, user string) (hyperliquid.UserState, error)
	MarketOpen(ctx context.Context, coin string, isBuy bool, size, slippage float64) (hyperliquid.OrderResponse, error)
	MarketClose(ctx context.Context, coin string, slippage float64) (hyperliquid.OrderResponse, error)
	UpdateLeverage(ctx context.Context, coin string, leverage int, cross bool) error
}

// PerpConfig holds the order parameters for one instrument.
type PerpConfig struct {
	Coin         string
	Leverage     int
	SetLeverage  bool
	MarginBuffer float64
	Slippage     float64
	// SizePrecision maps a coin to the decimals its order size is rounded to.
	SizePrecision        map[string]int
	DefaultSizePrecision int
}

// PerpEngine opens and closes long positions in one coin for one wallet.
type PerpEngine struct {
	venue  PerpVenue
	wallet string
	cfg    PerpConfig
	logger *slog.Logger
}

// NewPerpEngine creates a PerpEngine.
func NewPerpEngine(venue PerpVenue, wallet string, cfg PerpConfig, logger *slog.Logger) *PerpEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	if cfg.MarginBuffer < 1 {
		cfg.MarginBuffer = 1.1
	}
	if cfg.Slippage <= 0 {
		cfg.Slippage = 0.02
	}
	return &PerpEngine{
		venue:  venue,
		wallet: wallet,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "perp-engine"), slog.String("coin", cfg.Coin)),
	}
}

// Coin returns the traded instrument.
func (e *PerpEngine) Coin() string { return e.cfg.Coin }

// SizePrecision returns the order size decimals for the engine's coin.
func (e *PerpEngine) SizePrecision() int {
	if p, ok := e.cfg.SizePrecision[strings.ToUpper(e.cfg.Coin)]; ok {
		return p
	}
	return e.cfg.DefaultSizePrecision
}

// Withdrawable returns the free margin of the wallet.
func (e *PerpEngine) Withdrawable(ctx context.Context) (float64, error) {
	st, err := e.venue.UserState(ctx, e.wallet)
	if err != nil {
		return 0, err
	}
	return st.WithdrawableUSD(), nil
}

// Position returns the wallet's open position in the coin. ok is false when
// there is none.
func (e *PerpEngine) Position(ctx context.Context) (domain.PositionInfo, bool, error) {
	st, err := e.venue.UserState(ctx, e.wallet)
	if err != nil {
		return domain.PositionInfo{}, false, err
	}
	info, ok := st.Position(e.cfg.Coin)
	if !ok || info.Size == 0 {
		return domain.PositionInfo{}, false, nil
	}
	return info, true, nil
}

// Mid returns the current mid price of the coin.
func (e *PerpEngine) Mid(ctx context.Context) (float64, error) {
	mids, err := e.venue.AllMids(ctx)
	if err != nil {
		return 0, err
	}
	px, ok := mids[e.cfg.Coin]
	if !ok || px <= 0 {
		return 0, domain.E(domain.KindMalformed, "executor: mid", fmt.Errorf("no price for %s", e.cfg.Coin))
	}
	return px, nil
}

// OpenLong buys notionalUSD worth of the coin with an IOC order bounded by
// the configured slippage.
func (e *PerpEngine) OpenLong(ctx context.Context, notionalUSD float64) domain.OrderResult {
	st, err := e.venue.UserState(ctx, e.wallet)
	if err != nil {
		return exception("read account state", err)
	}
	withdrawable := st.WithdrawableUSD()
	required := notionalUSD / float64(e.cfg.Leverage) * e.cfg.MarginBuffer
	if withdrawable < required {
		return domain.OrderResult{
			Status: domain.OrderInsufficientMargin,
			Error:  fmt.Sprintf("Insufficient margin: need $%.2f, have $%.2f", required, withdrawable),
		}
	}

	mid, err := e.Mid(ctx)
	if err != nil {
		return domain.OrderResult{Status: domain.OrderPriceError, Error: fmt.Sprintf("Could not get price for %s: %v", e.cfg.Coin, err)}
	}

	size := roundSize(notionalUSD/mid, e.SizePrecision())
	if size <= 0 {
		return domain.OrderResult{
			Status: domain.OrderSizeError,
			Error:  fmt.Sprintf("Order size rounds to zero: $%.2f at $%.2f with %d decimals", notionalUSD, mid, e.SizePrecision()),
		}
	}

	if e.cfg.SetLeverage {
		if err := e.venue.UpdateLeverage(ctx, e.cfg.Coin, e.cfg.Leverage, true); err != nil {
			e.logger.WarnContext(ctx, "update leverage failed", slog.String("error", err.Error()))
		}
	}

	e.logger.InfoContext(ctx, "opening long",
		slog.Float64("notional", notionalUSD),
		slog.Float64("mid", mid),
		slog.Float64("size", size),
	)
	resp, err := e.venue.MarketOpen(ctx, e.cfg.Coin, true, size, e.cfg.Slippage)
	if err != nil {
		return exception("market open", err)
	}
	return hyperliquid.ClassifyOrderResponse(resp)
}

// CloseLong closes the whole long position. Having nothing to close is a
// success.
func (e *PerpEngine) CloseLong(ctx context.Context) domain.OrderResult {
	info, ok, err := e.Position(ctx)
	if err != nil {
		return exception("read position", err)
	}
	if !ok {
		return domain.OrderResult{Success: true, Status: domain.OrderNoPosition}
	}
	if info.Size <= 0 {
		return domain.OrderResult{Success: true, Status: domain.OrderNoLongPosition}
	}

	e.logger.InfoContext(ctx, "closing long", slog.Float64("size", info.Size))
	resp, err := e.venue.MarketClose(ctx, e.cfg.Coin, e.cfg.Slippage)
	if err != nil {
		return exception("market close", err)
	}
	return hyperliquid.ClassifyOrderResponse(resp)
}

func exception(op string, err error) domain.OrderResult {
	return domain.OrderResult{Status: domain.OrderException, Error: fmt.Sprintf("%s: %v", op, err)}
}

func roundSize(size float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(size*p) / p
}
