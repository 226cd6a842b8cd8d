package hyperliquid

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// UserState is the clearinghouseState info response.
type UserState struct {
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	Withdrawable       string          `json:"withdrawable"`
	AssetPositions     []AssetPosition `json:"assetPositions"`
}

// MarginSummary holds account-level margin totals as decimal strings.
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
	Withdrawable    string `json:"withdrawable,omitempty"`
}

// AssetPosition wraps one open perp position.
type AssetPosition struct {
	Type     string       `json:"type"`
	Position PerpPosition `json:"position"`
}

// PerpPosition is a venue position. Szi is signed: positive long.
type PerpPosition struct {
	Coin          string   `json:"coin"`
	Szi           string   `json:"szi"`
	EntryPx       *string  `json:"entryPx"`
	PositionValue string   `json:"positionValue"`
	UnrealizedPnl string   `json:"unrealizedPnl"`
	LiquidationPx *string  `json:"liquidationPx"`
	MarginUsed    string   `json:"marginUsed"`
	Leverage      Leverage `json:"leverage"`
}

// Leverage is the position's leverage setting.
type Leverage struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// WithdrawableUSD returns the free margin, preferring the top-level field.
func (u UserState) WithdrawableUSD() float64 {
	if u.Withdrawable != "" {
		return parseNum(u.Withdrawable)
	}
	return parseNum(u.MarginSummary.Withdrawable)
}

// Position returns the open position in coin, if any.
func (u UserState) Position(coin string) (domain.PositionInfo, bool) {
	for _, ap := range u.AssetPositions {
		p := ap.Position
		if !strings.EqualFold(p.Coin, coin) {
			continue
		}
		info := domain.PositionInfo{
			Coin:          p.Coin,
			Size:          parseNum(p.Szi),
			UnrealizedPnL: parseNum(p.UnrealizedPnl),
			MarginUsed:    parseNum(p.MarginUsed),
			Leverage:      p.Leverage.Value,
		}
		if p.EntryPx != nil {
			info.EntryPrice = parseNum(*p.EntryPx)
		}
		if p.LiquidationPx != nil && *p.LiquidationPx != "" {
			liq := parseNum(*p.LiquidationPx)
			info.LiquidationPrice = &liq
		}
		return info, true
	}
	return domain.PositionInfo{}, false
}

// Meta is the perp universe description.
type Meta struct {
	Universe []AssetMeta `json:"universe"`
}

// AssetMeta describes one perp asset. Its index in Universe is the asset id
// used in order actions.
type AssetMeta struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
}

// Asset resolves coin to its asset id and metadata.
func (m Meta) Asset(coin string) (int, AssetMeta, bool) {
	for i, a := range m.Universe {
		if strings.EqualFold(a.Name, coin) {
			return i, a, true
		}
	}
	return 0, AssetMeta{}, false
}

// OrderResponse is the raw exchange response. Response is an object on
// success and a plain string on error.
type OrderResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type orderResponseBody struct {
	Type string `json:"type"`
	Data struct {
		Statuses []json.RawMessage `json:"statuses"`
	} `json:"data"`
}

type orderStatus struct {
	Filled *struct {
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
		Oid     int64  `json:"oid"`
	} `json:"filled"`
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting"`
	Error *string `json:"error"`
}

// ---------------------------------------------------------------------------
// Exchange actions. Field order is significant: actions are msgpack-encoded
// in declaration order before hashing.
// ---------------------------------------------------------------------------

type orderAction struct {
	Type     string      `msgpack:"type" json:"type"`
	Orders   []orderWire `msgpack:"orders" json:"orders"`
	Grouping string      `msgpack:"grouping" json:"grouping"`
}

type orderWire struct {
	Asset      int           `msgpack:"a" json:"a"`
	IsBuy      bool          `msgpack:"b" json:"b"`
	LimitPx    string        `msgpack:"p" json:"p"`
	Size       string        `msgpack:"s" json:"s"`
	ReduceOnly bool          `msgpack:"r" json:"r"`
	OrderType  orderTypeWire `msgpack:"t" json:"t"`
}

type orderTypeWire struct {
	Limit limitWire `msgpack:"limit" json:"limit"`
}

type limitWire struct {
	Tif string `msgpack:"tif" json:"tif"`
}

type updateLeverageAction struct {
	Type     string `msgpack:"type" json:"type"`
	Asset    int    `msgpack:"asset" json:"asset"`
	IsCross  bool   `msgpack:"isCross" json:"isCross"`
	Leverage int    `msgpack:"leverage" json:"leverage"`
}

func parseNum(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
