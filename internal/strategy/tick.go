package strategy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// withLock runs fn while holding the (wallet, agent) tick lock. A held lock
// ends the run with a message; fn is never queued behind it.
func (ac *AgentContext) withLock(ctx context.Context, agent string, fn func(ctx context.Context)) {
	sink := ac.sink()
	if ac.Locks == nil {
		fn(ctx)
		return
	}

	key := domain.PositionKey(ac.Wallet, agent)
	unlock, err := ac.Locks.Acquire(ctx, key, ac.LockTTL)
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		domain.Warnf(ctx, sink, "Another run of this agent is in progress. Skipping.")
		return
	case err != nil:
		domain.Errorf(ctx, sink, "Could not acquire run lock: %v. Skipping run.", err)
		return
	}
	defer unlock()
	fn(ctx)
}

// commitSide records a side change after a confirmed trade. A failed write
// is left for the next run's reconciliation to correct.
func (ac *AgentContext) commitSide(ctx context.Context, agent, side string) {
	if err := ac.Positions.UpdateSide(ctx, ac.Wallet, agent, side); err != nil {
		domain.Errorf(ctx, ac.sink(), "Trade confirmed but the new side %s could not be saved: %v. The next run will reconcile it.", side, err)
		return
	}
	ac.logger().InfoContext(ctx, "side updated",
		slog.String("key", domain.PositionKey(ac.Wallet, agent)),
		slog.String("side", side),
	)
}

// runLogger tags a logger with the agent and a fresh run id.
func runLogger(ac *AgentContext, agent, op string) *slog.Logger {
	return ac.logger().With(
		slog.String("component", "agent"),
		slog.String("agent", agent),
		slog.String("op", op),
		slog.String("run", uuid.NewString()),
	)
}
