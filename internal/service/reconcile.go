package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// SideTruth queries the venue for the side a position is actually on.
type SideTruth interface {
	TrueSide(ctx context.Context) (string, error)
}

// SideTruthFunc adapts a function to SideTruth.
type SideTruthFunc func(ctx context.Context) (string, error)

func (f SideTruthFunc) TrueSide(ctx context.Context) (string, error) { return f(ctx) }

// SpotSide maps a risk-token balance to a spot side: base when any is held,
// quote otherwise. The stable balance does not matter.
func SpotSide(riskBalance *big.Int, base, quote string) string {
	if riskBalance != nil && riskBalance.Sign() > 0 {
		return base
	}
	return quote
}

// PerpSide maps a signed position size to LONG or FLAT.
func PerpSide(size float64) string {
	if size > 0 {
		return domain.SideLong
	}
	return domain.SideFlat
}

// Reconciler corrects stored sides that drifted from the venue.
type Reconciler struct {
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(positions domain.PositionStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		positions: positions,
		logger:    logger.With(slog.String("component", "reconcile")),
	}
}

// Reconcile returns the side that should drive this tick. It re-reads the
// stored side, asks truth for the real one and persists the real side only
// when they differ. If truth fails the stored side is used; if there is no
// stored record, fallback stands in for it.
func (r *Reconciler) Reconcile(ctx context.Context, sink domain.MessageSink, wallet, strategy, fallback string, truth SideTruth) string {
	stored := fallback
	hasRecord := false
	pos, err := r.positions.Get(ctx, wallet, strategy)
	switch {
	case err == nil:
		stored = pos.CurrentSide
		hasRecord = true
	case !errors.Is(err, domain.ErrNotFound):
		domain.Warnf(ctx, sink, "Could not read stored position: %v", err)
	}

	actual, err := truth.TrueSide(ctx)
	if err != nil {
		domain.Warnf(ctx, sink, "Could not verify position on venue (%v); using stored side %s.", err, stored)
		return stored
	}
	if actual == stored {
		return actual
	}

	domain.Infof(ctx, sink, "Reconciling position: stored=%s, actual=%s. Updating to %s.", stored, actual, actual)
	if hasRecord {
		if err := r.positions.UpdateSide(ctx, wallet, strategy, actual); err != nil {
			domain.Errorf(ctx, sink, "Could not persist reconciled side: %v", err)
		}
	}
	r.logger.InfoContext(ctx, "side corrected",
		slog.String("key", domain.PositionKey(wallet, strategy)),
		slog.String("stored", stored),
		slog.String("actual", actual),
	)
	return actual
}
