package types

// Side indicates whether an order buys or sells the instrument.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the closed set of values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the side a matching counter-order must have.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes resting limit orders from immediate market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// Valid reports whether the order type is LIMIT or MARKET.
func (t OrderType) Valid() bool {
	return t == OrderTypeLimit || t == OrderTypeMarket
}

// OrderStatus is the lifecycle state of an order.
//
// NEW and PARTIALLY_EXECUTED orders are open: limit orders in these states
// rest on the book and remain eligible for matching. EXECUTED and CANCELLED
// are terminal; no field of a terminal order ever changes again.
type OrderStatus string

const (
	OrderStatusNew               OrderStatus = "NEW"
	OrderStatusPartiallyExecuted OrderStatus = "PARTIALLY_EXECUTED"
	OrderStatusExecuted          OrderStatus = "EXECUTED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

// Open reports whether the order can still participate in matching.
func (s OrderStatus) Open() bool {
	return s == OrderStatusNew || s == OrderStatusPartiallyExecuted
}

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusExecuted || s == OrderStatusCancelled
}

// Role separates administrative callers from regular traders.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)
