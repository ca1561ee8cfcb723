package migrations

import (
	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/types"
)

// CreateExchangeSchema creates the core tables: users, instruments,
// balances, orders and trades.
func CreateExchangeSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.User{},
		&types.Instrument{},
		&types.Balance{},
		&types.Order{},
		&types.Trade{},
	)
}
