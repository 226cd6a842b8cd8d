package sentichain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

func TestExtractFencedJSON(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		open  byte
		close byte
		want  string
		ok    bool
	}{
		{"json fence", "```json\n[{\"a\":1}]\n```", '[', ']', `[{"a":1}]`, true},
		{"bare fence", "```\n{\"a\":{\"b\":2}}\n```", '{', '}', `{"a":{"b":2}}`, true},
		{"no fence", `  [1,2]  `, '[', ']', `[1,2]`, true},
		{"prose around", "here you go: {\"x\":1} thanks", '{', '}', `{"x":1}`, true},
		{"missing", "nothing to see", '[', ']', "", false},
		{"reversed", "] [", '[', ']', "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFencedJSON(tt.in, tt.open, tt.close)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEvents(t *testing.T) {
	reasoning := "```json\n[" +
		`{"timestamp":"2025-01-01T00:00:00Z","summary":"ETF inflows","event":"ETF","sentiment":"Bullish"},` +
		`{"timestamp":"2025-01-01T01:00:00Z","summary":"Hack","event":"Exploit","sentiment":"bearish"},` +
		`{"timestamp":"2025-01-01T02:00:00Z","summary":"Quiet","event":"None","sentiment":"neutral"}` +
		"]\n```"

	events := ParseEvents(reasoning)
	require.Len(t, events, 3)
	assert.Equal(t, "ETF inflows", events[0].Summary)

	counts := CountSentiment(events)
	assert.Equal(t, domain.SentimentCounts{Bullish: 1, Bearish: 1, Total: 3}, counts)
}

func TestParseEvents_Malformed(t *testing.T) {
	assert.Empty(t, ParseEvents(""))
	assert.Empty(t, ParseEvents("```json\n[{not json]\n```"))
	assert.Empty(t, ParseEvents("no array here"))
}

func TestParseTradingSignal(t *testing.T) {
	reasoning := "```json\n" + `{
  "ticker": "ETH",
  "timestamp": "2025-06-01T12:00:00Z",
  "signal": {"direction": "long", "confidence": 0.72, "strength": "MODERATE"},
  "position": {"sizing": "HALF", "max_allocation_pct": 50, "leverage_recommended": "NONE"},
  "timing": {"urgency": "LOW", "suggested_entry": "now", "timeframe": "1-3 days"},
  "risk_management": {"stop_loss_condition": "below 3000", "take_profit_condition": "3600", "invalidation": "ETF outflows"},
  "metadata": {"data_quality": "HIGH", "conviction_score": 7, "risk_rating": "MEDIUM"}
}` + "\n```"

	sig := ParseTradingSignal(reasoning, "ETH")
	require.NotNil(t, sig)
	assert.Equal(t, "LONG", sig.Signal.Direction)
	assert.Equal(t, 0.72, sig.Signal.Confidence)
	assert.Equal(t, domain.LooseString("NONE"), sig.Position.LeverageRecommended)
	assert.Equal(t, 7.0, sig.Metadata.ConvictionScore)

	d, ok := domain.ParseDirection(sig.Signal.Direction)
	assert.True(t, ok)
	assert.Equal(t, domain.DirectionLong, d)
}

func TestParseTradingSignal_NumericLeverageAndDefaultTicker(t *testing.T) {
	sig := ParseTradingSignal(`{"signal":{"direction":"SHORT"},"position":{"leverage_recommended":2}}`, "BTC")
	require.NotNil(t, sig)
	assert.Equal(t, "BTC", sig.Ticker)
	assert.Equal(t, domain.LooseString("2"), sig.Position.LeverageRecommended)
}

func TestParseTradingSignal_Malformed(t *testing.T) {
	assert.Nil(t, ParseTradingSignal("", "ETH"))
	assert.Nil(t, ParseTradingSignal("```json\n{\"signal\": }\n```", "ETH"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
}
