package domain_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

func TestToRaw(t *testing.T) {
	tests := []struct {
		amount   float64
		decimals int
		want     string
	}{
		{10, 6, "10000000"},
		{0.1, 6, "100000"},
		{2.5, 6, "2500000"},
		{1, 18, "1000000000000000000"},
		{0, 6, "0"},
		{-3, 6, "0"},
	}
	for _, tt := range tests {
		got := domain.ToRaw(tt.amount, tt.decimals)
		assert.Equal(t, tt.want, got.String(), "amount=%v decimals=%d", tt.amount, tt.decimals)
	}
}

func TestFromRaw(t *testing.T) {
	assert.InDelta(t, 10.0, domain.FromRaw(big.NewInt(10_000_000), 6), 1e-12)
	assert.InDelta(t, 0.5, domain.FromRaw(big.NewInt(50_000_000), 8), 1e-12)
	assert.Zero(t, domain.FromRaw(nil, 6))
}

func TestPositionKey(t *testing.T) {
	p := domain.Position{WalletAddress: "0xabc", StrategyName: "agent"}
	assert.Equal(t, "0xabc/agent", p.Key())
}
