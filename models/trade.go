package models

type TradeAction string

const (
	TradeBuy  TradeAction = "BUY"
	TradeSell TradeAction = "SELL"
)

// Trade is one entry in the portfolio's append-only trade log.
type Trade struct {
	Date   Date        `json:"date"`
	Action TradeAction `json:"action"`
	Symbol string      `json:"symbol"`
	Shares int64       `json:"shares"`
	Price  int64       `json:"price"`
	Total  int64       `json:"total"`
	Reason string      `json:"reason"`

	// Status is set only for broker-rejected attempts (live mode); a
	// rejected entry records the attempt without mutating cash or positions.
	Status string `json:"status,omitempty"`
}

type OrderStatus string

const (
	OrderFilled   OrderStatus = "FILLED"
	OrderPending  OrderStatus = "PENDING"
	OrderRejected OrderStatus = "REJECTED"
)

// Order is the brokerage collaborator's response to a placed order.
// In paper mode orders always fill at the requested price.
type Order struct {
	ID     string      `json:"order_id"`
	Symbol string      `json:"symbol"`
	Side   TradeAction `json:"side"`
	Qty    int64       `json:"qty"`
	Price  int64       `json:"price"`
	Status OrderStatus `json:"status"`
}
