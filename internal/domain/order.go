package domain

// OrderStatus is the terminal classification of a perp order attempt.
type OrderStatus string

const (
	OrderFilled             OrderStatus = "filled"
	OrderResting            OrderStatus = "resting"
	OrderError              OrderStatus = "error"
	OrderUnknown            OrderStatus = "unknown"
	OrderNoStatuses         OrderStatus = "no_statuses"
	OrderInsufficientMargin OrderStatus = "margin_check_failed"
	OrderPriceError         OrderStatus = "price_error"
	OrderSizeError          OrderStatus = "size_error"
	OrderNoPosition         OrderStatus = "no_position"
	OrderNoLongPosition     OrderStatus = "no_long_position"
	OrderException          OrderStatus = "exception"
)

// OrderResult is the uniform outcome of OpenLong and CloseLong.
//
// Resting orders are reported as Success with Error describing the resting
// state; callers must not treat them as fills.
type OrderResult struct {
	Success    bool
	FilledSize float64
	AvgPrice   float64
	Status     OrderStatus
	Error      string
}

// Filled reports whether the order actually executed.
func (r OrderResult) Filled() bool {
	return r.Success && r.Status == OrderFilled
}

// PositionInfo is a point-in-time view of an open perp position.
// Size is signed: positive long, negative short.
type PositionInfo struct {
	Coin             string
	Size             float64
	EntryPrice       float64
	UnrealizedPnL    float64
	LiquidationPrice *float64
	MarginUsed       float64
	Leverage         float64
}
