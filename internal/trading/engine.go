package trading

import (
	"fmt"
	"sort"
	"time"

	"github.com/azabchk/zappppppix/internal/types"
)

// balanceKey identifies one (user, ticker) position touched by a trade.
type balanceKey struct {
	UserID string
	Ticker string
}

// matchOrder runs the taker against the book and finalises its status.
// The caller holds the gate and an open transaction; any error here rolls
// the whole submission back.
func (s *Service) matchOrder(tx *Database, taker *types.Order) error {
	candidates, err := tx.MatchCandidates(taker)
	if err != nil {
		return err
	}

	logger := s.logger.With().
		Str("order_id", taker.OrderID).
		Str("ticker", taker.Ticker).
		Logger()
	logger.Debug().Int("candidates", len(candidates)).Msg("matching against book")

	for i := range candidates {
		if taker.Remaining() <= 0 {
			break
		}

		maker := &candidates[i]
		quantity := taker.Remaining()
		if available := maker.Remaining(); available < quantity {
			quantity = available
		}
		if quantity <= 0 {
			continue
		}

		if err := s.executeTrade(tx, taker, maker, quantity, *maker.Price); err != nil {
			return err
		}
	}

	switch {
	case taker.FilledQuantity == taker.Quantity:
		taker.Status = types.OrderStatusExecuted
	case taker.OrderType == types.OrderTypeMarket && taker.FilledQuantity > 0:
		// Market orders never rest: a partial fill still completes the order.
		taker.Status = types.OrderStatusExecuted
	case taker.OrderType == types.OrderTypeMarket:
		taker.Status = types.OrderStatusCancelled
	case taker.FilledQuantity > 0:
		taker.Status = types.OrderStatusPartiallyExecuted
	default:
		taker.Status = types.OrderStatusNew
	}

	if err := tx.UpdateOrder(taker); err != nil {
		return err
	}

	logger.Info().
		Str("status", string(taker.Status)).
		Int64("filled_quantity", taker.FilledQuantity).
		Msg("order matching completed")
	return nil
}

// executeTrade books one execution at the maker's resting price, updates
// both orders' fill state and settles the two legs.
func (s *Service) executeTrade(tx *Database, taker, maker *types.Order, quantity, price int64) error {
	taker.FilledQuantity += quantity
	maker.FilledQuantity += quantity
	if maker.FilledQuantity == maker.Quantity {
		maker.Status = types.OrderStatusExecuted
	} else {
		maker.Status = types.OrderStatusPartiallyExecuted
	}
	if err := tx.UpdateOrder(maker); err != nil {
		return err
	}

	buyOrderID, sellOrderID := taker.OrderID, maker.OrderID
	buyerID, sellerID := taker.UserID, maker.UserID
	if taker.Side == types.SideSell {
		buyOrderID, sellOrderID = maker.OrderID, taker.OrderID
		buyerID, sellerID = maker.UserID, taker.UserID
	}

	trade := &types.Trade{
		Ticker:      taker.Ticker,
		Price:       price,
		Quantity:    quantity,
		BuyOrderID:  buyOrderID,
		SellOrderID: sellOrderID,
		ExecutedAt:  time.Now().UTC(),
	}
	if err := tx.CreateTrade(trade); err != nil {
		return err
	}

	s.logger.Debug().
		Str("ticker", trade.Ticker).
		Int64("price", price).
		Int64("quantity", quantity).
		Str("buy_order_id", buyOrderID).
		Str("sell_order_id", sellOrderID).
		Msg("trade executed")

	return s.settleTrade(tx, buyerID, sellerID, taker.Ticker, quantity, price)
}

// settleTrade moves the asset and quote legs of one execution: the buyer
// gains the asset and pays quantity*price of the quote currency, the
// seller the reverse. Deltas are folded per (user, ticker) first, so a
// self-trade nets to zero and writes nothing, then applied in ascending
// key order.
func (s *Service) settleTrade(tx *Database, buyerID, sellerID, ticker string, quantity, price int64) error {
	total := quantity * price

	deltas := map[balanceKey]int64{}
	deltas[balanceKey{buyerID, ticker}] += quantity
	deltas[balanceKey{buyerID, types.QuoteCurrency}] -= total
	deltas[balanceKey{sellerID, ticker}] -= quantity
	deltas[balanceKey{sellerID, types.QuoteCurrency}] += total

	keys := make([]balanceKey, 0, len(deltas))
	for key := range deltas {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].UserID != keys[j].UserID {
			return keys[i].UserID < keys[j].UserID
		}
		return keys[i].Ticker < keys[j].Ticker
	})

	balances := s.balances.WithTx(tx.db)
	for _, key := range keys {
		delta := deltas[key]
		if delta == 0 {
			continue
		}
		if err := balances.ApplyDelta(key.UserID, key.Ticker, delta); err != nil {
			return fmt.Errorf("failed to settle %s/%s: %w", key.UserID, key.Ticker, err)
		}
	}
	return nil
}
