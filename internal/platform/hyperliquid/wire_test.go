package hyperliquid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatToWire(t *testing.T) {
	for in, want := range map[float64]string{
		97026:    "97026",
		0.001:    "0.001",
		3525.9:   "3525.9",
		0:        "0",
		-0.00001: "-0.00001",
	} {
		got, err := floatToWire(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := floatToWire(1e-9)
	assert.Error(t, err)
}

func TestSlippagePrice(t *testing.T) {
	// BTC trades with 5 size decimals, leaving 1 price decimal.
	assert.Equal(t, 97026.0, slippagePrice(95123.5, true, 0.02, 5))
	assert.Equal(t, 93221.0, slippagePrice(95123.5, false, 0.02, 5))
	// ETH: 4 size decimals, 2 price decimals, 5 significant figures.
	assert.Equal(t, 3525.9, slippagePrice(3456.78, true, 0.02, 4))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 0.0001, roundTo(0.00012, 4))
	assert.Equal(t, 0.003, roundTo(0.00251, 3))
}
