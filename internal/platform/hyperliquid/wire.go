package hyperliquid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// floatToWire renders x with at most 8 decimals and no trailing zeros. It
// fails when 8 decimals would lose precision.
func floatToWire(x float64) (string, error) {
	rounded := strconv.FormatFloat(x, 'f', 8, 64)
	back, err := strconv.ParseFloat(rounded, 64)
	if err != nil {
		return "", err
	}
	if math.Abs(back-x) >= 1e-12 {
		return "", fmt.Errorf("hyperliquid: float %v loses precision on the wire", x)
	}
	s := strings.TrimRight(rounded, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		s = "0"
	}
	return s, nil
}

// roundTo rounds x to n decimal places, half away from zero.
func roundTo(x float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(x*p) / p
}

// slippagePrice moves mid by slippage against the taker, then rounds to 5
// significant figures and to (6 - szDecimals) decimals as perps require.
func slippagePrice(mid float64, isBuy bool, slippage float64, szDecimals int) float64 {
	px := mid * (1 - slippage)
	if isBuy {
		px = mid * (1 + slippage)
	}
	sig, _ := strconv.ParseFloat(strconv.FormatFloat(px, 'g', 5, 64), 64)
	decimals := 6 - szDecimals
	if decimals < 0 {
		decimals = 0
	}
	return roundTo(sig, decimals)
}
