package domain

import (
	"math"
	"math/big"
	"time"
)

// Perp sides. Spot positions use token symbols as their side instead.
const (
	SideFlat = "FLAT"
	SideLong = "LONG"
)

// Venue identifies where an agent trades.
type Venue string

const (
	VenueSpot Venue = "spot"
	VenuePerp Venue = "perp"
)

// Position is the persisted allocation record for one (wallet, strategy) pair.
//
// BaseToken is the risk asset (WETH, cbBTC, BTC) and QuoteToken is the
// stable collateral the allocation is denominated in (USDC). CurrentSide is
// QuoteToken or BaseToken for spot agents and FLAT or LONG for perp agents.
type Position struct {
	WalletAddress      string
	StrategyName       string
	Ticker             string
	BaseToken          string
	QuoteToken         string
	AllocatedAmount    float64
	AllocatedAmountRaw *big.Int
	CurrentSide        string
	LastUpdatedAt      time.Time
}

// Key returns the identity used for locks and log records.
func (p Position) Key() string {
	return PositionKey(p.WalletAddress, p.StrategyName)
}

// PositionKey builds the (wallet, strategy) identity string.
func PositionKey(wallet, strategy string) string {
	return wallet + "/" + strategy
}

// ToRaw converts a human decimal amount to the integer smallest-unit value
// round(amount * 10^decimals).
func ToRaw(amount float64, decimals int) *big.Int {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return new(big.Int)
	}
	scaled := new(big.Float).SetPrec(256).SetFloat64(amount)
	scaled.Mul(scaled, new(big.Float).SetPrec(256).SetInt(pow10(decimals)))
	scaled.Add(scaled, big.NewFloat(0.5))
	raw, _ := scaled.Int(nil)
	return raw
}

// FromRaw converts a smallest-unit integer to a human decimal value.
func FromRaw(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	f := new(big.Float).SetPrec(256).SetInt(raw)
	f.Quo(f, new(big.Float).SetPrec(256).SetInt(pow10(decimals)))
	v, _ := f.Float64()
	return v
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
