package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/crypto"
	"github.com/alanyoungcy/sentitrader/internal/domain"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

const userStateJSON = `{
  "marginSummary": {"accountValue": "120.5", "totalNtlPos": "95.1", "totalRawUsd": "25.4", "totalMarginUsed": "95.1"},
  "crossMarginSummary": {"accountValue": "120.5", "totalNtlPos": "95.1", "totalRawUsd": "25.4", "totalMarginUsed": "95.1"},
  "withdrawable": "25.4",
  "assetPositions": [
    {"type": "oneWay", "position": {"coin": "BTC", "szi": "0.001", "entryPx": "95100.0", "positionValue": "95.1",
      "unrealizedPnl": "0.02", "liquidationPx": "47000.5", "marginUsed": "95.1", "leverage": {"type": "cross", "value": 1}}}
  ]
}`

type venue struct {
	mu        sync.Mutex
	exchanges []map[string]json.RawMessage
	orderResp string
}

func (v *venue) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		switch r.URL.Path {
		case "/info":
			var req struct {
				Type string `json:"type"`
				User string `json:"user"`
			}
			require.NoError(t, json.Unmarshal(body, &req))
			switch req.Type {
			case "allMids":
				_, _ = io.WriteString(w, `{"BTC":"95123.5","ETH":"3456.78"}`)
			case "meta":
				_, _ = io.WriteString(w, `{"universe":[{"name":"BTC","szDecimals":5,"maxLeverage":40},{"name":"ETH","szDecimals":4,"maxLeverage":25}]}`)
			case "clearinghouseState":
				_, _ = io.WriteString(w, userStateJSON)
			default:
				http.Error(w, "unknown", http.StatusBadRequest)
			}
		case "/exchange":
			var req map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(body, &req))
			v.mu.Lock()
			v.exchanges = append(v.exchanges, req)
			v.mu.Unlock()
			_, _ = io.WriteString(w, v.orderResp)
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestClient(t *testing.T, v *venue) *Client {
	t.Helper()
	srv := httptest.NewServer(v.handler(t))
	t.Cleanup(srv.Close)
	s, err := crypto.NewSigner(testKey)
	require.NoError(t, err)
	return New(Config{BaseURL: srv.URL, Mainnet: true, Timeout: 5 * time.Second}, s, nil)
}

func TestUserState(t *testing.T) {
	c := newTestClient(t, &venue{})
	st, err := c.UserState(context.Background(), "0xabc")
	require.NoError(t, err)

	assert.Equal(t, 25.4, st.WithdrawableUSD())
	pos, ok := st.Position("btc")
	require.True(t, ok)
	assert.Equal(t, 0.001, pos.Size)
	assert.Equal(t, 95100.0, pos.EntryPrice)
	require.NotNil(t, pos.LiquidationPrice)
	assert.Equal(t, 47000.5, *pos.LiquidationPrice)

	_, ok = st.Position("ETH")
	assert.False(t, ok)
}

func TestWithdrawableFallback(t *testing.T) {
	st := UserState{MarginSummary: MarginSummary{Withdrawable: "7"}}
	assert.Equal(t, 7.0, st.WithdrawableUSD())
}

func TestMarketOpen_SignsIOCOrder(t *testing.T) {
	v := &venue{orderResp: `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"0.0001","avgPx":"95200","oid":9}}]}}}`}
	c := newTestClient(t, v)

	resp, err := c.MarketOpen(context.Background(), "BTC", true, 0.0001, 0.02)
	require.NoError(t, err)
	assert.True(t, ClassifyOrderResponse(resp).Filled())

	require.Len(t, v.exchanges, 1)
	var action orderAction
	require.NoError(t, json.Unmarshal(v.exchanges[0]["action"], &action))
	require.Len(t, action.Orders, 1)
	o := action.Orders[0]
	assert.Equal(t, 0, o.Asset)
	assert.True(t, o.IsBuy)
	assert.Equal(t, "97026", o.LimitPx)
	assert.Equal(t, "0.0001", o.Size)
	assert.False(t, o.ReduceOnly)
	assert.Equal(t, "Ioc", o.OrderType.Limit.Tif)
	assert.Equal(t, "na", action.Grouping)

	var sig crypto.Signature
	require.NoError(t, json.Unmarshal(v.exchanges[0]["signature"], &sig))
	assert.Contains(t, []int{27, 28}, sig.V)
	assert.Equal(t, "null", string(v.exchanges[0]["vaultAddress"]))
}

func TestMarketClose_ReduceOnlyForPositionSize(t *testing.T) {
	v := &venue{orderResp: `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"0.001","avgPx":"93300","oid":10}}]}}}`}
	c := newTestClient(t, v)

	_, err := c.MarketClose(context.Background(), "BTC", 0.02)
	require.NoError(t, err)

	var action orderAction
	require.NoError(t, json.Unmarshal(v.exchanges[0]["action"], &action))
	o := action.Orders[0]
	assert.False(t, o.IsBuy)
	assert.True(t, o.ReduceOnly)
	assert.Equal(t, "0.001", o.Size)
	assert.Equal(t, "93221", o.LimitPx)

	_, err = c.MarketClose(context.Background(), "ETH", 0.02)
	assert.Equal(t, domain.KindInvariant, domain.KindOf(err))
}

func TestUpdateLeverage(t *testing.T) {
	v := &venue{orderResp: `{"status":"ok","response":{"type":"default"}}`}
	c := newTestClient(t, v)
	require.NoError(t, c.UpdateLeverage(context.Background(), "ETH", 3, true))

	var action updateLeverageAction
	require.NoError(t, json.Unmarshal(v.exchanges[0]["action"], &action))
	assert.Equal(t, updateLeverageAction{Type: "updateLeverage", Asset: 1, IsCross: true, Leverage: 3}, action)

	v.orderResp = `{"status":"err","response":"Invalid leverage"}`
	err := c.UpdateLeverage(context.Background(), "ETH", 100, true)
	assert.ErrorContains(t, err, "Invalid leverage")
}

func TestNonceStrictlyIncreases(t *testing.T) {
	c := New(Config{}, nil, nil)
	fixed := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return fixed }
	a := c.nextNonce()
	b := c.nextNonce()
	assert.Equal(t, a+1, b)
}

func TestHTTPErrorsAreKinded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil, nil)
	_, err := c.AllMids(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindTransient, domain.KindOf(err))
}
