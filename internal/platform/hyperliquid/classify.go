package hyperliquid

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// ClassifyOrderResponse maps a raw exchange response to an OrderResult.
// The first matching rule wins:
//
//	status != "ok"       -> failure carrying the raw status
//	no statuses          -> no_statuses
//	statuses[0].error    -> error
//	statuses[0].filled   -> filled with size and average price
//	statuses[0].resting  -> success, but not a fill
//	anything else        -> unknown
func ClassifyOrderResponse(raw OrderResponse) domain.OrderResult {
	if raw.Status != "ok" {
		return domain.OrderResult{
			Success: false,
			Status:  domain.OrderStatus(raw.Status),
			Error:   responseText(raw.Response),
		}
	}

	var body orderResponseBody
	if err := json.Unmarshal(raw.Response, &body); err != nil || len(body.Data.Statuses) == 0 {
		return domain.OrderResult{
			Success: false,
			Status:  domain.OrderNoStatuses,
			Error:   "No order status returned",
		}
	}

	first := body.Data.Statuses[0]
	var st orderStatus
	if err := json.Unmarshal(first, &st); err != nil {
		return domain.OrderResult{
			Success: false,
			Status:  domain.OrderUnknown,
			Error:   fmt.Sprintf("Unknown order status: %s", string(first)),
		}
	}

	switch {
	case st.Error != nil:
		return domain.OrderResult{Success: false, Status: domain.OrderError, Error: *st.Error}
	case st.Filled != nil:
		return domain.OrderResult{
			Success:    true,
			Status:     domain.OrderFilled,
			FilledSize: parseNum(st.Filled.TotalSz),
			AvgPrice:   parseNum(st.Filled.AvgPx),
		}
	case st.Resting != nil:
		return domain.OrderResult{Success: true, Status: domain.OrderResting, Error: "Order resting in book"}
	default:
		return domain.OrderResult{
			Success: false,
			Status:  domain.OrderUnknown,
			Error:   fmt.Sprintf("Unknown order status: %s", string(first)),
		}
	}
}

func responseText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
