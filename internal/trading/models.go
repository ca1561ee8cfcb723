package trading

import (
	"github.com/azabchk/zappppppix/internal/types"
)

// PlaceOrderRequest is the body for order submission. Price is required
// for LIMIT orders and ignored for MARKET orders.
type PlaceOrderRequest struct {
	Ticker    string          `json:"ticker" binding:"required"`
	Side      types.Side      `json:"side" binding:"required"`
	OrderType types.OrderType `json:"order_type" binding:"required"`
	Quantity  int64           `json:"quantity" binding:"required"`
	Price     *int64          `json:"price"`
}
