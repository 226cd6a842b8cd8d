package service

import (
	"fmt"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// Intent is what a signal asks for, before the current side is considered.
type Intent int

const (
	IntentNone Intent = iota
	IntentTie
	IntentBullish
	IntentBearish
)

func (i Intent) String() string {
	switch i {
	case IntentTie:
		return "tie"
	case IntentBullish:
		return "bullish"
	case IntentBearish:
		return "bearish"
	default:
		return "none"
	}
}

// Actionable reports whether the intent can lead to a trade. Ticks stop
// before allocation when it cannot.
func (i Intent) Actionable() bool {
	return i == IntentBullish || i == IntentBearish
}

// IntentFromCounts turns event counts into an intent. Equal counts,
// including zero and zero, never act.
func IntentFromCounts(c domain.SentimentCounts) Intent {
	switch {
	case c.Bullish == 0 && c.Bearish == 0:
		return IntentNone
	case c.Bullish == c.Bearish:
		return IntentTie
	case c.Bullish > c.Bearish:
		return IntentBullish
	default:
		return IntentBearish
	}
}

// IntentFromDirection maps a long-only direction signal. SHORT only ever
// exits; NEUTRAL and unknown values do nothing.
func IntentFromDirection(d domain.Direction) Intent {
	switch d {
	case domain.DirectionLong:
		return IntentBullish
	case domain.DirectionShort:
		return IntentBearish
	default:
		return IntentNone
	}
}

// Decide picks the action for intent given the reconciled side and the
// side that means "not in the market".
func Decide(intent Intent, side, unallocated string) domain.Decision {
	switch intent {
	case IntentTie:
		return domain.Decision{Action: domain.ActionHold, Reason: "Sentiment is tied. No action."}
	case IntentBullish:
		if side == unallocated {
			return domain.Decision{Action: domain.ActionEnter, Reason: "Signal is bullish and position is out of the market."}
		}
		return domain.Decision{Action: domain.ActionHold, Reason: fmt.Sprintf("Signal is bullish, already holding %s.", side)}
	case IntentBearish:
		if side != unallocated {
			return domain.Decision{Action: domain.ActionExit, Reason: fmt.Sprintf("Signal is bearish and position is in %s.", side)}
		}
		return domain.Decision{Action: domain.ActionHold, Reason: fmt.Sprintf("Signal is bearish, already in %s.", unallocated)}
	default:
		return domain.Decision{Action: domain.ActionHold, Reason: "No signal. No action."}
	}
}

// DecideCounts applies the policy to bullish/bearish counts.
func DecideCounts(bullish, bearish int, side, unallocated string) domain.Decision {
	return Decide(IntentFromCounts(domain.SentimentCounts{Bullish: bullish, Bearish: bearish}), side, unallocated)
}

// DecideDirection applies the long-only policy to a direction for a perp
// side (FLAT or LONG).
func DecideDirection(d domain.Direction, side string) domain.Decision {
	return Decide(IntentFromDirection(d), side, domain.SideFlat)
}
