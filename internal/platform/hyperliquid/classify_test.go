package hyperliquid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

func decodeResponse(t *testing.T, raw string) OrderResponse {
	t.Helper()
	var r OrderResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return r
}

func TestClassifyOrderResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.OrderResult
	}{
		{
			name: "filled",
			raw:  `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"0.001","avgPx":"95000","oid":1}}]}}}`,
			want: domain.OrderResult{Success: true, Status: domain.OrderFilled, FilledSize: 0.001, AvgPrice: 95000},
		},
		{
			name: "error",
			raw:  `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Insufficient margin"}]}}}`,
			want: domain.OrderResult{Success: false, Status: domain.OrderError, Error: "Insufficient margin"},
		},
		{
			name: "resting",
			raw:  `{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":77}}]}}}`,
			want: domain.OrderResult{Success: true, Status: domain.OrderResting, Error: "Order resting in book"},
		},
		{
			name: "no statuses",
			raw:  `{"status":"ok","response":{"type":"order","data":{"statuses":[]}}}`,
			want: domain.OrderResult{Success: false, Status: domain.OrderNoStatuses, Error: "No order status returned"},
		},
		{
			name: "non-ok status keeps raw status",
			raw:  `{"status":"err","response":"User or API Wallet does not exist."}`,
			want: domain.OrderResult{Success: false, Status: "err", Error: "User or API Wallet does not exist."},
		},
		{
			name: "unrecognized status entry",
			raw:  `{"status":"ok","response":{"type":"order","data":{"statuses":["waitingForFill"]}}}`,
			want: domain.OrderResult{Success: false, Status: domain.OrderUnknown, Error: `Unknown order status: "waitingForFill"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyOrderResponse(decodeResponse(t, tt.raw))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_FirstStatusWins(t *testing.T) {
	raw := `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"bad"},{"filled":{"totalSz":"1","avgPx":"2","oid":3}}]}}}`
	got := ClassifyOrderResponse(decodeResponse(t, raw))
	assert.Equal(t, domain.OrderError, got.Status)
}
