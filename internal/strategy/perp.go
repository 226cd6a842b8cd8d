package strategy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/platform/sentichain"
	"github.com/alanyoungcy/sentitrader/internal/service"
)

// SignalMode selects which signal drives a perp agent.
type SignalMode int

const (
	// SignalCounts compares bullish and bearish event counts.
	SignalCounts SignalMode = iota
	// SignalDirection follows the direction of the structured trading
	// signal.
	SignalDirection
)

func (m SignalMode) String() string {
	if m == SignalDirection {
		return "trading signal direction"
	}
	return "event counts"
}

const (
	perpQuote         = "USDC"
	perpQuoteDecimals = 6
	researchNoteLen   = 500
)

// PerpAgent holds a long-only perpetual position in one coin. A bearish
// signal closes the long; it never opens a short.
type PerpAgent struct {
	name   string
	coin   string
	ticker string
	mode   SignalMode
}

// NewPerpAgent creates a perp agent for coin driven by ticker sentiment.
func NewPerpAgent(name, coin, ticker string, mode SignalMode) *PerpAgent {
	return &PerpAgent{name: name, coin: coin, ticker: ticker, mode: mode}
}

func (a *PerpAgent) Name() string { return a.name }

func (a *PerpAgent) Info() AgentInfo {
	return AgentInfo{
		Name:       a.name,
		Venue:      domain.VenuePerp,
		Ticker:     a.ticker,
		BaseToken:  a.coin,
		QuoteToken: perpQuote,
		Signal:     a.mode.String(),
	}
}

type perpRun struct {
	ac     *AgentContext
	trader PerpTrader
	sink   domain.MessageSink
	logger *slog.Logger
}

func (a *PerpAgent) prepare(ctx context.Context, ac *AgentContext, op string) (*perpRun, bool) {
	sink := ac.sink()
	trader, err := ac.perpTrader(a.coin)
	if err != nil {
		domain.Errorf(ctx, sink, "Perp venue unavailable: %v", err)
		return nil, false
	}
	return &perpRun{ac: ac, trader: trader, sink: sink, logger: runLogger(ac, a.name, op)}, true
}

// RunTick fetches the configured signal and opens or closes the long.
func (a *PerpAgent) RunTick(ctx context.Context, ac *AgentContext) {
	run, ok := a.prepare(ctx, ac, "tick")
	if !ok {
		return
	}

	intent, ok := a.intent(ctx, run)
	if !ok {
		return
	}
	if !intent.Actionable() {
		domain.Infof(ctx, run.sink, "%s", service.Decide(intent, "", domain.SideFlat).Reason)
		return
	}

	ac.withLock(ctx, a.name, func(ctx context.Context) {
		a.tick(ctx, run, intent)
	})
}

// intent reads the signal. ok is false when the run should stop; the
// reason has already been reported.
func (a *PerpAgent) intent(ctx context.Context, run *perpRun) (service.Intent, bool) {
	signals := run.ac.Signals
	if a.mode == SignalCounts {
		domain.Infof(ctx, run.sink, "Fetching %s sentiment events...", a.ticker)
		events, err := signals.FetchEvents(ctx, a.ticker)
		if err != nil {
			domain.Errorf(ctx, run.sink, "Error fetching sentiment for %s: %v. Skipping run.", a.ticker, err)
			return service.IntentNone, false
		}
		counts := sentichain.CountSentiment(events)
		domain.Infof(ctx, run.sink, "Sentiment for %s: %d events, %d bullish, %d bearish.",
			a.ticker, counts.Total, counts.Bullish, counts.Bearish)
		return service.IntentFromCounts(counts), true
	}

	domain.Infof(ctx, run.sink, "Fetching %s trading signal...", a.ticker)
	sig, err := signals.FetchTradingSignal(ctx, a.ticker)
	if err != nil {
		domain.Errorf(ctx, run.sink, "Error fetching trading signal for %s: %v. Skipping run.", a.ticker, err)
		return service.IntentNone, false
	}
	if sig == nil {
		domain.Warnf(ctx, run.sink, "No valid trading signal for %s. Skipping run.", a.ticker)
		return service.IntentNone, false
	}
	domain.Infof(ctx, run.sink, "Trading signal for %s: %s (confidence %.2f, strength %s, conviction %.1f, risk %s).",
		sig.Ticker, sig.Signal.Direction, sig.Signal.Confidence, sig.Signal.Strength,
		sig.Metadata.ConvictionScore, sig.Metadata.RiskRating)

	note, err := signals.FetchResearchNote(ctx, a.ticker)
	switch {
	case err != nil:
		domain.Warnf(ctx, run.sink, "Could not fetch research note: %v", err)
	case note != "":
		domain.Infof(ctx, run.sink, "Research note: %s", sentichain.Truncate(note, researchNoteLen))
	}

	d, ok := domain.ParseDirection(sig.Signal.Direction)
	if !ok {
		domain.Warnf(ctx, run.sink, "Unrecognized signal direction %q. No action.", sig.Signal.Direction)
		return service.IntentNone, false
	}
	if d == domain.DirectionNeutral {
		domain.Infof(ctx, run.sink, "Signal is NEUTRAL. No action.")
		return service.IntentNone, false
	}
	return service.IntentFromDirection(d), true
}

func (a *PerpAgent) tick(ctx context.Context, run *perpRun, intent service.Intent) {
	ac := run.ac

	req := service.AllocationRequest{
		Wallet:     ac.Wallet,
		Strategy:   a.name,
		Ticker:     a.ticker,
		BaseToken:  a.coin,
		QuoteToken: perpQuote,
		Venue:      domain.VenuePerp,
		Cap:        ac.Allocation,
	}
	margin := service.BalanceFunc(func(ctx context.Context) (float64, int, error) {
		w, err := run.trader.Withdrawable(ctx)
		return w, perpQuoteDecimals, err
	})
	pos, ok := service.NewAllocationManager(ac.Positions, run.logger).EnsureAllocation(ctx, run.sink, req, margin)
	if !ok {
		return
	}

	side := a.reconcile(ctx, run, pos.CurrentSide)
	if side == domain.SideLong {
		a.checkLiquidation(ctx, run)
	}

	decision := service.Decide(intent, side, domain.SideFlat)
	domain.Infof(ctx, run.sink, "Decision: %s. %s", decision.Action, decision.Reason)

	switch decision.Action {
	case domain.ActionEnter:
		a.enter(ctx, run, pos)
	case domain.ActionExit:
		a.report(ctx, run, "close", run.trader.CloseLong(ctx), domain.SideFlat)
	}
}

func (a *PerpAgent) reconcile(ctx context.Context, run *perpRun, fallback string) string {
	return service.NewReconciler(run.ac.Positions, run.logger).Reconcile(ctx, run.sink, run.ac.Wallet, a.name, fallback,
		service.SideTruthFunc(func(ctx context.Context) (string, error) {
			info, open, err := run.trader.Position(ctx)
			if err != nil {
				return "", err
			}
			if !open {
				return domain.SideFlat, nil
			}
			return service.PerpSide(info.Size), nil
		}))
}

func (a *PerpAgent) checkLiquidation(ctx context.Context, run *perpRun) {
	info, open, err := run.trader.Position(ctx)
	if err != nil {
		domain.Warnf(ctx, run.sink, "Could not read position for liquidation check: %v", err)
		return
	}
	if !open {
		return
	}
	mid, err := run.trader.Mid(ctx)
	if err != nil {
		domain.Warnf(ctx, run.sink, "Could not read %s price for liquidation check: %v", a.coin, err)
		return
	}
	risky, msg := service.NewLiquidationMonitor(run.ac.LiquidationThresholdPct).CheckRisk(info, mid)
	if risky {
		domain.Alertf(ctx, run.sink, "LIQUIDATION RISK on %s: %s", a.coin, msg)
		return
	}
	domain.Infof(ctx, run.sink, "Position health: %s", msg)
}

// enter opens a long sized min(withdrawable, allocation) in USD notional.
func (a *PerpAgent) enter(ctx context.Context, run *perpRun, pos domain.Position) {
	withdrawable, err := run.trader.Withdrawable(ctx)
	if err != nil {
		domain.Errorf(ctx, run.sink, "Could not read withdrawable margin: %v. Skipping trade.", err)
		return
	}
	notional := service.EffectiveTradeAmount(withdrawable, pos.AllocatedAmount)
	if notional <= 0 {
		domain.Warnf(ctx, run.sink, "No margin available to trade. Skipping trade.")
		return
	}
	domain.Infof(ctx, run.sink, "Opening %s long with %.2f %s notional.", a.coin, notional, perpQuote)
	a.report(ctx, run, "open", run.trader.OpenLong(ctx, notional), domain.SideLong)
}

// report turns an order result into messages and, for fills, a side
// update. Resting orders leave the side untouched.
func (a *PerpAgent) report(ctx context.Context, run *perpRun, verb string, res domain.OrderResult, target string) bool {
	switch {
	case res.Filled():
		run.ac.commitSide(ctx, a.name, target)
		domain.Alertf(ctx, run.sink, "Perp %s %s long filled: %g @ %g.", verb, a.coin, res.FilledSize, res.AvgPrice)
		return true
	case res.Status == domain.OrderNoPosition || res.Status == domain.OrderNoLongPosition:
		run.ac.commitSide(ctx, a.name, domain.SideFlat)
		domain.Infof(ctx, run.sink, "No open %s long to close. Marked FLAT.", a.coin)
		return true
	case res.Success:
		domain.Alertf(ctx, run.sink, "Perp %s %s long not filled (%s): %s. Side unchanged; check the venue.",
			verb, a.coin, res.Status, res.Error)
		return false
	default:
		domain.Errorf(ctx, run.sink, "Perp %s %s long failed (%s): %s", verb, a.coin, res.Status, res.Error)
		return false
	}
}

// Unwind closes any open long regardless of sentiment.
func (a *PerpAgent) Unwind(ctx context.Context, ac *AgentContext) {
	run, ok := a.prepare(ctx, ac, "unwind")
	if !ok {
		return
	}

	ac.withLock(ctx, a.name, func(ctx context.Context) {
		pos, err := ac.Positions.Get(ctx, ac.Wallet, a.name)
		if errors.Is(err, domain.ErrNotFound) {
			domain.Infof(ctx, run.sink, "No position recorded for this agent. Nothing to unwind.")
			return
		}
		if err != nil {
			domain.Errorf(ctx, run.sink, "Could not read position: %v", err)
			return
		}

		if side := a.reconcile(ctx, run, pos.CurrentSide); side != domain.SideLong {
			domain.Infof(ctx, run.sink, "Position is already %s. Nothing to unwind.", side)
			return
		}
		domain.Infof(ctx, run.sink, "Unwinding: closing %s long.", a.coin)
		if a.report(ctx, run, "close", run.trader.CloseLong(ctx), domain.SideFlat) {
			domain.Infof(ctx, run.sink, "Unwind complete.")
		}
	})
}
