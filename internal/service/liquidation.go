package service

import (
	"fmt"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// DefaultLiquidationThresholdPct is the distance to liquidation, in percent
// of price, below which a position is flagged.
const DefaultLiquidationThresholdPct = 5.0

// LiquidationMonitor flags positions close to their liquidation price. It
// only reports; it never blocks trading.
type LiquidationMonitor struct {
	thresholdPct float64
}

// NewLiquidationMonitor creates a monitor. A non-positive threshold uses
// DefaultLiquidationThresholdPct.
func NewLiquidationMonitor(thresholdPct float64) *LiquidationMonitor {
	if thresholdPct <= 0 {
		thresholdPct = DefaultLiquidationThresholdPct
	}
	return &LiquidationMonitor{thresholdPct: thresholdPct}
}

// CheckRisk reports whether info is within the threshold of liquidation at
// currentPrice, with an operator-facing description.
func (m *LiquidationMonitor) CheckRisk(info domain.PositionInfo, currentPrice float64) (bool, string) {
	if info.LiquidationPrice == nil || *info.LiquidationPrice <= 0 {
		return false, "No liquidation price (position may be fully collateralized)"
	}
	if currentPrice <= 0 {
		return true, "Cannot determine current price"
	}

	liq := *info.LiquidationPrice
	kind := "Long"
	distance := (currentPrice - liq) / currentPrice * 100
	if info.Size < 0 {
		kind = "Short"
		distance = (liq - currentPrice) / currentPrice * 100
	}

	if distance < m.thresholdPct {
		return true, fmt.Sprintf("%s position at risk! Current: $%.2f, Liq: $%.2f (%.1f%% away)",
			kind, currentPrice, liq, distance)
	}
	return false, fmt.Sprintf("%s position OK. Current: $%.2f, Liq: $%.2f (%.1f%% away)",
		kind, currentPrice, liq, distance)
}
