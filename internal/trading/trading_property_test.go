package trading

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/azabchk/zappppppix/internal/types"
)

// randomOrder draws an arbitrary submission within bounds the seeded
// balances can mostly afford.
func randomOrder(t *rapid.T) PlaceOrderRequest {
	req := PlaceOrderRequest{
		Ticker:   "AAPL",
		Side:     types.SideBuy,
		Quantity: rapid.Int64Range(1, 50).Draw(t, "quantity"),
	}
	if rapid.Bool().Draw(t, "sell") {
		req.Side = types.SideSell
	}
	if rapid.Bool().Draw(t, "market") {
		req.OrderType = types.OrderTypeMarket
	} else {
		req.OrderType = types.OrderTypeLimit
		price := rapid.Int64Range(50, 150).Draw(t, "price")
		req.Price = &price
	}
	return req
}

// submitRandomFlow runs a random burst of submissions from the two seeded
// traders. Submissions rejected for insufficient funds are fine; anything
// else fails the property.
func submitRandomFlow(t *rapid.T, x *testExchange, users []string, maxSteps int) {
	steps := rapid.IntRange(1, maxSteps).Draw(t, "steps")
	for i := 0; i < steps; i++ {
		userID := users[rapid.IntRange(0, len(users)-1).Draw(t, "user")]
		if _, err := x.svc.SubmitOrder(userID, randomOrder(t)); err != nil && !errors.Is(err, types.ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// loadOrderByID fetches any order by id, regardless of owner.
func loadOrderByID(t testReporter, x *testExchange, orderID string) *types.Order {
	t.Helper()
	var order types.Order
	if err := x.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		t.Fatalf("loading order %s: %v", orderID, err)
	}
	return &order
}

// No order flow can create or destroy value: settlement only ever moves
// amounts between the two sides of a trade.
func TestSubmitOrder_ConservesTotalValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := newTestExchange(t, "AAPL")
		defer closeTestDB(x.db)
		users := []string{"alice", "bob"}
		for _, userID := range users {
			seedUser(t, x.db, userID, map[string]int64{"RUB": 1_000_000, "AAPL": 500})
		}

		submitRandomFlow(t, x, users, 25)

		var quoteTotal, assetTotal int64
		for _, userID := range users {
			quoteTotal += balanceOf(t, x, userID, "RUB")
			assetTotal += balanceOf(t, x, userID, "AAPL")
		}
		if quoteTotal != 2_000_000 {
			t.Fatalf("quote total drifted to %d", quoteTotal)
		}
		if assetTotal != 1_000 {
			t.Fatalf("asset total drifted to %d", assetTotal)
		}
	})
}

// Fill accounting stays coherent for every order: fills never exceed the
// ordered quantity, market orders always finish terminal, and open orders
// always have quantity left.
func TestSubmitOrder_FillAccountingInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := newTestExchange(t, "AAPL")
		defer closeTestDB(x.db)
		users := []string{"alice", "bob"}
		for _, userID := range users {
			seedUser(t, x.db, userID, map[string]int64{"RUB": 1_000_000, "AAPL": 500})
		}

		submitRandomFlow(t, x, users, 25)

		for _, userID := range users {
			orders, err := x.svc.ListOrders(userID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, order := range orders {
				if order.FilledQuantity < 0 || order.FilledQuantity > order.Quantity {
					t.Fatalf("fill out of bounds: %d of %d", order.FilledQuantity, order.Quantity)
				}
				if order.OrderType == types.OrderTypeMarket && !order.Status.Terminal() {
					t.Fatalf("market order left open with status %s", order.Status)
				}
				if order.OrderType == types.OrderTypeLimit && order.Status == types.OrderStatusExecuted && order.RemainingQuantity != 0 {
					t.Fatalf("executed limit order has %d remaining", order.RemainingQuantity)
				}
				if order.Status.Open() && order.RemainingQuantity <= 0 {
					t.Fatalf("open order has nothing remaining: %+v", order)
				}
				if order.OrderType == types.OrderTypeMarket && order.Status == types.OrderStatusCancelled && order.FilledQuantity != 0 {
					t.Fatalf("cancelled market order reports fills: %+v", order)
				}
			}
		}
	})
}

// The book can never be crossed: matching consumes all overlapping
// liquidity before an order is allowed to rest.
func TestOrderBook_NeverCrossed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := newTestExchange(t, "AAPL")
		defer closeTestDB(x.db)
		users := []string{"alice", "bob"}
		for _, userID := range users {
			seedUser(t, x.db, userID, map[string]int64{"RUB": 1_000_000, "AAPL": 500})
		}

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			userID := users[rapid.IntRange(0, len(users)-1).Draw(t, "user")]
			if _, err := x.svc.SubmitOrder(userID, randomOrder(t)); err != nil && !errors.Is(err, types.ErrInsufficientFunds) {
				t.Fatalf("unexpected error: %v", err)
			}

			book, err := x.svc.OrderBook("AAPL", 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(book.Bids) > 0 && len(book.Asks) > 0 && book.Bids[0].Price >= book.Asks[0].Price {
				t.Fatalf("book crossed after step %d: bid %d >= ask %d", i, book.Bids[0].Price, book.Asks[0].Price)
			}
		}
	})
}

// Every execution stays inside both participants' limits, and at least one
// side of every trade is a limit order.
func TestRecentTrades_PricedWithinBothLimits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := newTestExchange(t, "AAPL")
		defer closeTestDB(x.db)
		users := []string{"alice", "bob"}
		for _, userID := range users {
			seedUser(t, x.db, userID, map[string]int64{"RUB": 1_000_000, "AAPL": 500})
		}

		submitRandomFlow(t, x, users, 25)

		trades, err := x.svc.RecentTrades("AAPL", 1_000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, trade := range trades {
			buy := loadOrderByID(t, x, trade.BuyOrderID)
			sell := loadOrderByID(t, x, trade.SellOrderID)
			if buy.OrderType == types.OrderTypeMarket && sell.OrderType == types.OrderTypeMarket {
				t.Fatalf("trade %d@%d has no limit side", trade.Quantity, trade.Price)
			}
			if buy.OrderType == types.OrderTypeLimit && trade.Price > *buy.Price {
				t.Fatalf("trade at %d above the buy limit %d", trade.Price, *buy.Price)
			}
			if sell.OrderType == types.OrderTypeLimit && trade.Price < *sell.Price {
				t.Fatalf("trade at %d below the sell limit %d", trade.Price, *sell.Price)
			}
		}
	})
}
