package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/strategy"
)

// agentContext builds the per-run context for agent.
func (a *App) agentContext(deps *Dependencies, agent strategy.Agent) *strategy.AgentContext {
	name := agent.Name()
	return &strategy.AgentContext{
		Wallet:                  deps.Wallet,
		Positions:               deps.Positions,
		Locks:                   deps.Locks,
		LockTTL:                 a.cfg.Agents.LockTTL.Duration,
		Sink:                    deps.Sink.For(deps.Wallet, name),
		Signals:                 deps.Signals,
		Spot:                    deps.Spot,
		Perp:                    deps.Perp,
		Allocation:              a.cfg.Agents.AllocationFor(name),
		LiquidationThresholdPct: a.cfg.Hyperliquid.LiquidationThresholdPct,
		Logger:                  a.logger,
	}
}

// runAgent runs one tick or unwind of agent under the configured timeout.
func (a *App) runAgent(ctx context.Context, deps *Dependencies, agent strategy.Agent, unwind bool) {
	if d := a.cfg.Agents.TickTimeout.Duration; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	op := "tick"
	if unwind {
		op = "unwind"
	}
	start := time.Now()
	ac := a.agentContext(deps, agent)
	if unwind {
		agent.Unwind(ctx, ac)
	} else {
		agent.RunTick(ctx, ac)
	}
	a.logger.InfoContext(ctx, "agent run finished",
		slog.String("agent", agent.Name()),
		slog.String("op", op),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// TickMode runs one tick of the configured agent.
func (a *App) TickMode(ctx context.Context, deps *Dependencies) error {
	agent, err := deps.Registry.Get(a.cfg.Agent)
	if err != nil {
		return fmt.Errorf("app: tick: %w (available: %v)", err, deps.Registry.List())
	}
	a.runAgent(ctx, deps, agent, false)
	return nil
}

// UnwindMode moves the configured agent back to its unallocated side.
func (a *App) UnwindMode(ctx context.Context, deps *Dependencies) error {
	agent, err := deps.Registry.Get(a.cfg.Agent)
	if err != nil {
		return fmt.Errorf("app: unwind: %w (available: %v)", err, deps.Registry.List())
	}
	a.runAgent(ctx, deps, agent, true)
	return nil
}

// RunAllMode runs one tick of every enabled agent concurrently. Agents
// hold distinct (wallet, agent) keys, so they never contend for a lock.
func (a *App) RunAllMode(ctx context.Context, deps *Dependencies) error {
	names := a.cfg.Agents.Enabled
	if len(names) == 0 {
		names = deps.Registry.List()
	}

	agents := make([]strategy.Agent, 0, len(names))
	for _, n := range names {
		agent, err := deps.Registry.Get(n)
		if err != nil {
			return fmt.Errorf("app: run-all: %w", err)
		}
		agents = append(agents, agent)
	}

	a.logger.InfoContext(ctx, "running agents", slog.Int("count", len(agents)))

	g, ctx := errgroup.WithContext(ctx)
	for _, agent := range agents {
		g.Go(func() error {
			a.runAgent(ctx, deps, agent, false)
			return nil
		})
	}
	return g.Wait()
}

// StatusMode prints every agent's stored position for the wallet.
func (a *App) StatusMode(ctx context.Context, deps *Dependencies) error {
	positions, err := deps.Positions.ListByWallet(ctx, deps.Wallet)
	if err != nil {
		return fmt.Errorf("app: status: %w", err)
	}
	fmt.Fprintf(a.out, "Wallet %s\n", deps.Wallet)
	return renderStatus(a.out, deps.Registry.ListInfo(), positions)
}

// renderStatus writes one row per registered agent, then one per stored
// position whose agent is no longer registered.
func renderStatus(out io.Writer, infos []strategy.AgentInfo, positions []domain.Position) error {
	byName := make(map[string]domain.Position, len(positions))
	for _, p := range positions {
		byName[p.StrategyName] = p
	}

	table := tablewriter.NewWriter(out)
	table.Header("Agent", "Venue", "Pair", "Side", "Allocated", "Updated")

	for _, info := range infos {
		pair := info.BaseToken + "/" + info.QuoteToken
		p, ok := byName[info.Name]
		if !ok {
			if err := table.Append(info.Name, string(info.Venue), pair, "-", "-", "-"); err != nil {
				return err
			}
			continue
		}
		delete(byName, info.Name)
		if err := table.Append(info.Name, string(info.Venue), pair, p.CurrentSide,
			fmt.Sprintf("%g %s", p.AllocatedAmount, p.QuoteToken),
			p.LastUpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	for _, p := range positions {
		if _, orphan := byName[p.StrategyName]; !orphan {
			continue
		}
		if err := table.Append(p.StrategyName, "?", p.BaseToken+"/"+p.QuoteToken, p.CurrentSide,
			fmt.Sprintf("%g %s", p.AllocatedAmount, p.QuoteToken),
			p.LastUpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return table.Render()
}

// ArchiveMode moves agent log entries older than the retention period to
// object storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return errors.New("app: archive: object storage is not configured")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)
	n, err := deps.Archiver.ArchiveAgentLogs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive: %w", err)
	}
	a.logger.InfoContext(ctx, "agent logs archived",
		slog.Int64("entries", n),
		slog.Time("before", cutoff),
	)
	fmt.Fprintf(a.out, "Archived %d log entries older than %s.\n", n, cutoff.Format(time.RFC3339))
	return nil
}
