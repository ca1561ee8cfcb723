package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

// AddOrderBookIndexes adds the composite indexes behind the hot queries:
// matching-candidate scans, book aggregation, trade history and per-user
// order listings.
func AddOrderBookIndexes(db *gorm.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_orders_book_scan ON orders(ticker, side, status, price)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ticker_time ON trades(ticker, executed_at)`,
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
