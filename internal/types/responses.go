package types

import "time"

// OrderResponse is the API view of an order, decorated with the
// volume-weighted average price over its executions.
type OrderResponse struct {
	OrderID               string      `json:"order_id"`
	Ticker                string      `json:"ticker"`
	Side                  Side        `json:"side"`
	OrderType             OrderType   `json:"order_type"`
	Price                 *int64      `json:"price,omitempty"`
	Quantity              int64       `json:"quantity"`
	FilledQuantity        int64       `json:"filled_quantity"`
	RemainingQuantity     int64       `json:"remaining_quantity"`
	AverageExecutionPrice *float64    `json:"average_execution_price,omitempty"`
	Status                OrderStatus `json:"status"`
	CreatedAt             time.Time   `json:"created_at"`
}

// BookLevel is one aggregated price level of the order book.
type BookLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// OrderBook is a depth-limited snapshot of resting limit liquidity.
// Bids are ordered best (highest) first, asks best (lowest) first.
type OrderBook struct {
	Ticker string      `json:"ticker"`
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
}
