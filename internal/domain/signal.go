package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SentimentEvent is one entry of an event-sentiment signal feed.
type SentimentEvent struct {
	Timestamp string `json:"timestamp"`
	Summary   string `json:"summary"`
	Event     string `json:"event"`
	Sentiment string `json:"sentiment"`
}

// SentimentCounts tallies bullish and bearish events.
type SentimentCounts struct {
	Bullish int
	Bearish int
	Total   int
}

// Direction is the directional call of a structured trading signal.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// ParseDirection normalizes a raw direction string. ok is false when the
// value is not one of LONG, SHORT or NEUTRAL.
func ParseDirection(raw string) (Direction, bool) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(raw))); d {
	case DirectionLong, DirectionShort, DirectionNeutral:
		return d, true
	default:
		return d, false
	}
}

// TradingSignal is a structured directional signal with advisory fields.
// Only Direction drives decisions; the rest is logged.
type TradingSignal struct {
	Ticker    string `json:"ticker"`
	Timestamp string `json:"timestamp"`
	Signal    struct {
		Direction  string  `json:"direction"`
		Confidence float64 `json:"confidence"`
		Strength   string  `json:"strength"`
	} `json:"signal"`
	Position struct {
		Sizing              string      `json:"sizing"`
		MaxAllocationPct    float64     `json:"max_allocation_pct"`
		LeverageRecommended LooseString `json:"leverage_recommended"`
	} `json:"position"`
	Timing struct {
		Urgency        string `json:"urgency"`
		SuggestedEntry string `json:"suggested_entry"`
		Timeframe      string `json:"timeframe"`
	} `json:"timing"`
	RiskManagement struct {
		StopLossCondition   string `json:"stop_loss_condition"`
		TakeProfitCondition string `json:"take_profit_condition"`
		Invalidation        string `json:"invalidation"`
	} `json:"risk_management"`
	Metadata struct {
		DataQuality     string  `json:"data_quality"`
		ConvictionScore float64 `json:"conviction_score"`
		RiskRating      string  `json:"risk_rating"`
	} `json:"metadata"`
}

// LooseString decodes from either a JSON string or a JSON number.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = LooseString(str)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*s = LooseString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Action is the outcome of the decision policy.
type Action string

const (
	ActionEnter Action = "ENTER"
	ActionExit  Action = "EXIT"
	ActionHold  Action = "HOLD"
)

// Decision pairs an action with a short operator-facing reason.
type Decision struct {
	Action Action
	Reason string
}

// LogLevel is the severity of an operator message.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelAlert LogLevel = "ALERT"
)

// LogEntry is one durable operator message.
type LogEntry struct {
	ID            string
	WalletAddress string
	AgentName     string
	Level         LogLevel
	Message       string
	CreatedAt     time.Time
}
