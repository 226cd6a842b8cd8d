package strategy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/executor"
	"github.com/alanyoungcy/sentitrader/internal/platform/sentichain"
	"github.com/alanyoungcy/sentitrader/internal/service"
)

// SpotAgent rotates an allocation between the stable token and one risk
// token on an EVM network, driven by bullish and bearish event counts.
type SpotAgent struct {
	name   string
	ticker string
	base   string
}

// NewSpotAgent creates a spot agent trading base against the network's
// stable token on ticker sentiment.
func NewSpotAgent(name, ticker, base string) *SpotAgent {
	return &SpotAgent{name: name, ticker: ticker, base: base}
}

func (a *SpotAgent) Name() string { return a.name }

func (a *SpotAgent) Info() AgentInfo {
	return AgentInfo{
		Name:       a.name,
		Venue:      domain.VenueSpot,
		Ticker:     a.ticker,
		BaseToken:  a.base,
		QuoteToken: "USDC",
		Signal:     "event counts",
	}
}

// spotRun carries the resolved state of one spot run.
type spotRun struct {
	ac     *AgentContext
	venue  *SpotVenue
	wallet common.Address
	base   common.Address
	sink   domain.MessageSink
	logger *slog.Logger
}

func (a *SpotAgent) prepare(ctx context.Context, ac *AgentContext, op string) (*spotRun, bool) {
	sink := ac.sink()
	venue, err := ac.spotVenue()
	if err != nil {
		domain.Errorf(ctx, sink, "Spot venue unavailable: %v", err)
		return nil, false
	}
	base, ok := venue.Token(a.base)
	if !ok {
		domain.Errorf(ctx, sink, "Token %s is not configured on this network.", a.base)
		return nil, false
	}
	if !common.IsHexAddress(ac.Wallet) {
		domain.Errorf(ctx, sink, "Wallet address %q is invalid.", ac.Wallet)
		return nil, false
	}
	return &spotRun{
		ac:     ac,
		venue:  venue,
		wallet: common.HexToAddress(ac.Wallet),
		base:   base,
		sink:   sink,
		logger: runLogger(ac, a.name, op),
	}, true
}

// RunTick fetches event sentiment and moves the position to match it.
func (a *SpotAgent) RunTick(ctx context.Context, ac *AgentContext) {
	run, ok := a.prepare(ctx, ac, "tick")
	if !ok {
		return
	}

	domain.Infof(ctx, run.sink, "Fetching %s sentiment events...", a.ticker)
	events, err := ac.Signals.FetchEvents(ctx, a.ticker)
	if err != nil {
		domain.Errorf(ctx, run.sink, "Error fetching sentiment for %s: %v. Skipping run.", a.ticker, err)
		return
	}
	counts := sentichain.CountSentiment(events)
	domain.Infof(ctx, run.sink, "Sentiment for %s: %d events, %d bullish, %d bearish.",
		a.ticker, counts.Total, counts.Bullish, counts.Bearish)
	for _, ev := range events {
		run.logger.DebugContext(ctx, "event",
			slog.String("timestamp", ev.Timestamp),
			slog.String("sentiment", ev.Sentiment),
			slog.String("event", ev.Event),
		)
	}

	intent := service.IntentFromCounts(counts)
	if !intent.Actionable() {
		domain.Infof(ctx, run.sink, "%s", service.Decide(intent, "", "").Reason)
		return
	}

	ac.withLock(ctx, a.name, func(ctx context.Context) {
		a.tick(ctx, run, intent)
	})
}

func (a *SpotAgent) tick(ctx context.Context, run *spotRun, intent service.Intent) {
	ac := run.ac
	quote := run.venue.StableSymbol

	req := service.AllocationRequest{
		Wallet:     ac.Wallet,
		Strategy:   a.name,
		Ticker:     a.ticker,
		BaseToken:  a.base,
		QuoteToken: quote,
		Venue:      domain.VenueSpot,
		Cap:        ac.Allocation,
		MinTrade:   run.venue.MinTrade,
	}
	stable := service.BalanceFunc(func(ctx context.Context) (float64, int, error) {
		bal, err := run.venue.Chain.TokenBalance(ctx, run.venue.StableToken, run.wallet)
		return bal.Human, bal.Decimals, err
	})
	pos, ok := service.NewAllocationManager(ac.Positions, run.logger).EnsureAllocation(ctx, run.sink, req, stable)
	if !ok {
		return
	}

	side := service.NewReconciler(ac.Positions, run.logger).Reconcile(ctx, run.sink, ac.Wallet, a.name, pos.CurrentSide,
		service.SideTruthFunc(func(ctx context.Context) (string, error) {
			bal, err := run.venue.Chain.TokenBalance(ctx, run.base, run.wallet)
			if err != nil {
				return "", err
			}
			return service.SpotSide(bal.Raw, a.base, quote), nil
		}))

	decision := service.Decide(intent, side, quote)
	domain.Infof(ctx, run.sink, "Decision: %s. %s", decision.Action, decision.Reason)

	switch decision.Action {
	case domain.ActionEnter:
		a.enter(ctx, run, pos)
	case domain.ActionExit:
		a.exit(ctx, run, quote)
	}
}

// enter buys the risk token with min(stable balance, allocation).
func (a *SpotAgent) enter(ctx context.Context, run *spotRun, pos domain.Position) {
	quote := run.venue.StableSymbol
	bal, err := run.venue.Chain.TokenBalance(ctx, run.venue.StableToken, run.wallet)
	if err != nil {
		domain.Errorf(ctx, run.sink, "Could not read %s balance: %v. Skipping trade.", quote, err)
		return
	}
	amount := service.EffectiveTradeRaw(bal.Raw, pos.AllocatedAmountRaw)
	if amount.Sign() <= 0 {
		domain.Warnf(ctx, run.sink, "No %s available to trade. Skipping trade.", quote)
		return
	}

	res := run.venue.Swapper.Execute(ctx, run.sink, executor.SwapRequest{
		From:        run.venue.StableToken,
		To:          run.base,
		FromSymbol:  quote,
		ToSymbol:    a.base,
		AmountRaw:   amount,
		AmountHuman: domain.FromRaw(amount, bal.Decimals),
	})
	if res.Success {
		run.ac.commitSide(ctx, a.name, a.base)
	}
}

// exit sells the whole risk token balance back to the stable token.
func (a *SpotAgent) exit(ctx context.Context, run *spotRun, quote string) bool {
	bal, err := run.venue.Chain.TokenBalance(ctx, run.base, run.wallet)
	if err != nil {
		domain.Errorf(ctx, run.sink, "Could not read %s balance: %v. Skipping trade.", a.base, err)
		return false
	}
	if bal.Raw == nil || bal.Raw.Sign() <= 0 {
		domain.Warnf(ctx, run.sink, "No %s balance to sell. Skipping trade.", a.base)
		return false
	}

	res := run.venue.Swapper.Execute(ctx, run.sink, executor.SwapRequest{
		From:        run.base,
		To:          run.venue.StableToken,
		FromSymbol:  a.base,
		ToSymbol:    quote,
		AmountRaw:   bal.Raw,
		AmountHuman: bal.Human,
	})
	if res.Success {
		run.ac.commitSide(ctx, a.name, quote)
	}
	return res.Success
}

// Unwind sells any held risk token back to the stable token, regardless of
// sentiment.
func (a *SpotAgent) Unwind(ctx context.Context, ac *AgentContext) {
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

		quote := pos.QuoteToken
		if quote == "" {
			quote = run.venue.StableSymbol
		}

		bal, err := run.venue.Chain.TokenBalance(ctx, run.base, run.wallet)
		if err != nil {
			domain.Errorf(ctx, run.sink, "Could not read %s balance: %v", a.base, err)
			return
		}
		if bal.Raw == nil || bal.Raw.Sign() <= 0 {
			if pos.CurrentSide != quote {
				ac.commitSide(ctx, a.name, quote)
				domain.Infof(ctx, run.sink, "No %s held. Stored side reset to %s.", a.base, quote)
				return
			}
			domain.Infof(ctx, run.sink, "Already in %s. Nothing to unwind.", quote)
			return
		}

		domain.Infof(ctx, run.sink, "Unwinding: selling %g %s for %s.", bal.Human, a.base, quote)
		if a.exit(ctx, run, quote) {
			domain.Infof(ctx, run.sink, "Unwind complete.")
		}
	})
}
