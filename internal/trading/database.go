package trading

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Transaction runs fn inside one database transaction so the order
// writes, trade inserts and balance deltas of a submission commit or
// roll back together.
func (d *Database) Transaction(fn func(tx *Database) error) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&Database{db: tx}); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (d *Database) GetInstrument(ticker string) (*types.Instrument, error) {
	var instrument types.Instrument
	if err := d.db.Where("ticker = ?", ticker).First(&instrument).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &instrument, nil
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) UpdateOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

func (d *Database) GetUserOrder(orderID, userID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ? AND user_id = ?", orderID, userID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) ListUserOrders(userID string) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// MatchCandidates returns the resting limit orders a taker can execute
// against: opposite side, still open, best price first and oldest first
// within a price. Limit takers only see candidates satisfying their
// limit; market takers see the whole opposite side.
func (d *Database) MatchCandidates(taker *types.Order) ([]types.Order, error) {
	query := d.db.Where(
		"ticker = ? AND side = ? AND order_type = ? AND status IN ?",
		taker.Ticker,
		taker.Side.Opposite(),
		types.OrderTypeLimit,
		openStatuses(),
	)

	if taker.OrderType == types.OrderTypeLimit {
		if taker.Side == types.SideBuy {
			query = query.Where("price <= ?", *taker.Price)
		} else {
			query = query.Where("price >= ?", *taker.Price)
		}
	}

	ordering := "price ASC, created_at ASC, id ASC"
	if taker.Side == types.SideSell {
		ordering = "price DESC, created_at ASC, id ASC"
	}

	var candidates []types.Order
	if err := query.Order(ordering).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to load match candidates: %w", err)
	}
	return candidates, nil
}

func (d *Database) CreateTrade(trade *types.Trade) error {
	return d.db.Create(trade).Error
}

func (d *Database) RecentTrades(ticker string, limit int) ([]types.Trade, error) {
	var trades []types.Trade
	err := d.db.Where("ticker = ?", ticker).
		Order("executed_at DESC, id DESC").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// BookLevels aggregates open limit remainder by price for one side of
// the book. Bids come back highest price first, asks lowest first.
func (d *Database) BookLevels(ticker string, side types.Side, depth int) ([]types.BookLevel, error) {
	ordering := "price ASC"
	if side == types.SideBuy {
		ordering = "price DESC"
	}

	var levels []types.BookLevel
	err := d.db.Model(&types.Order{}).
		Select("price, SUM(quantity - filled_quantity) AS quantity").
		Where("ticker = ? AND side = ? AND order_type = ? AND status IN ?",
			ticker, side, types.OrderTypeLimit, openStatuses()).
		Group("price").
		Order(ordering).
		Limit(depth).
		Scan(&levels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate book levels: %w", err)
	}
	return levels, nil
}

// FillTotals aggregates executed quantity and traded value across every
// trade the order took part in.
func (d *Database) FillTotals(orderID string) (quantity int64, value int64, err error) {
	var totals struct {
		TotalQuantity int64
		TotalValue    int64
	}
	err = d.db.Raw(`
		SELECT
			COALESCE(SUM(quantity), 0) AS total_quantity,
			COALESCE(SUM(price * quantity), 0) AS total_value
		FROM trades
		WHERE deleted_at IS NULL
		  AND (buy_order_id = ? OR sell_order_id = ?)
	`, orderID, orderID).Scan(&totals).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate fills: %w", err)
	}
	return totals.TotalQuantity, totals.TotalValue, nil
}

// openStatuses covers orders still resting on the book.
func openStatuses() []types.OrderStatus {
	return []types.OrderStatus{
		types.OrderStatusNew,
		types.OrderStatusPartiallyExecuted,
	}
}
