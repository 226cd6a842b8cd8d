package sentichain

import (
	"encoding/json"
	"strings"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// ExtractFencedJSON strips a surrounding markdown code fence (``` or ```json)
// from text and returns the outermost span that starts with opening and ends
// with closing. ok is false when no such span exists.
func ExtractFencedJSON(text string, opening, closing byte) (string, bool) {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	start := strings.IndexByte(s, opening)
	end := strings.LastIndexByte(s, closing)
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// ParseEvents decodes an event list out of a reasoning payload. Anything
// unparseable yields nil.
func ParseEvents(reasoning string) []domain.SentimentEvent {
	raw, ok := ExtractFencedJSON(reasoning, '[', ']')
	if !ok {
		return nil
	}
	var events []domain.SentimentEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil
	}
	return events
}

// ParseTradingSignal decodes a structured signal out of a reasoning payload.
// It returns nil when no JSON object can be decoded. An empty ticker in the
// payload falls back to defaultTicker.
func ParseTradingSignal(reasoning, defaultTicker string) *domain.TradingSignal {
	raw, ok := ExtractFencedJSON(reasoning, '{', '}')
	if !ok {
		return nil
	}
	var sig domain.TradingSignal
	if err := json.Unmarshal([]byte(raw), &sig); err != nil {
		return nil
	}
	if sig.Ticker == "" {
		sig.Ticker = defaultTicker
	}
	sig.Signal.Direction = strings.ToUpper(strings.TrimSpace(sig.Signal.Direction))
	return &sig
}

// CountSentiment tallies bullish and bearish events, case-insensitively.
// Total counts every event, including neutral ones.
func CountSentiment(events []domain.SentimentEvent) domain.SentimentCounts {
	c := domain.SentimentCounts{Total: len(events)}
	for _, e := range events {
		switch strings.ToLower(strings.TrimSpace(e.Sentiment)) {
		case "bullish":
			c.Bullish++
		case "bearish":
			c.Bearish++
		}
	}
	return c
}

// Truncate shortens s to at most n bytes, marking the cut with "...".
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
