package types

import (
	"time"

	"gorm.io/gorm"
)

// QuoteCurrency is the reserved ticker every trade settles against. It is
// seeded at startup and cannot be delisted.
const QuoteCurrency = "RUB"

// User represents a registered account. The api key is issued once at
// registration and later exchanged for a JWT.
type User struct {
	gorm.Model `json:"-"`
	UserID     string    `json:"id" gorm:"uniqueIndex"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	APIKey     string    `json:"api_key" gorm:"uniqueIndex"`
	CreatedAt  time.Time `json:"created_at"`
}

// Instrument represents a tradeable asset listed on the exchange.
type Instrument struct {
	gorm.Model `json:"-"`
	Ticker     string    `json:"ticker" gorm:"uniqueIndex"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

// Balance represents one user's holding of one ticker. Rows are created
// lazily on first credit; (user_id, ticker) is unique so settlement folds
// concurrent deltas into a single row.
type Balance struct {
	gorm.Model `json:"-"`
	UserID     string    `json:"user_id" gorm:"uniqueIndex:idx_balances_user_ticker"`
	Ticker     string    `json:"ticker" gorm:"uniqueIndex:idx_balances_user_ticker"`
	Amount     int64     `json:"amount"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Order represents an order in the system. Price is nil for market orders.
type Order struct {
	gorm.Model     `json:"-"`
	OrderID        string      `json:"order_id" gorm:"uniqueIndex"`
	UserID         string      `json:"user_id" gorm:"index"`
	Ticker         string      `json:"ticker" gorm:"index"`
	Side           Side        `json:"side"`
	OrderType      OrderType   `json:"order_type"`
	Price          *int64      `json:"price,omitempty"`
	Quantity       int64       `json:"quantity"`
	FilledQuantity int64       `json:"filled_quantity"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Remaining returns the quantity still open for execution.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// Trade represents a single execution between a buy and a sell order,
// priced at the resting order's limit price.
type Trade struct {
	gorm.Model  `json:"-"`
	Ticker      string    `json:"ticker" gorm:"index"`
	Price       int64     `json:"price"`
	Quantity    int64     `json:"quantity"`
	BuyOrderID  string    `json:"buy_order_id" gorm:"index"`
	SellOrderID string    `json:"sell_order_id" gorm:"index"`
	ExecutedAt  time.Time `json:"executed_at"`
}
