package instruments

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/types"
)

// Database handles instrument persistence.
type Database struct {
	db *gorm.DB
}

// NewDatabase creates a new database instance
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// List returns every listed instrument ordered by ticker.
func (d *Database) List() ([]types.Instrument, error) {
	var instruments []types.Instrument
	if err := d.db.Order("ticker ASC").Find(&instruments).Error; err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	return instruments, nil
}

// GetByTicker looks up one instrument, returning nil when it is not
// listed.
func (d *Database) GetByTicker(ticker string) (*types.Instrument, error) {
	var instrument types.Instrument
	err := d.db.Where("ticker = ?", ticker).First(&instrument).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return &instrument, nil
}

// Create inserts a new instrument row.
func (d *Database) Create(instrument *types.Instrument) error {
	if err := d.db.Create(instrument).Error; err != nil {
		return fmt.Errorf("failed to create instrument: %w", err)
	}
	return nil
}

// DeleteCascade removes the instrument and everything that references its
// ticker: orders, balances and trades. All rows go in one transaction.
func (d *Database) DeleteCascade(ticker string) error {
	tx := d.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	for _, step := range []struct {
		name  string
		model interface{}
	}{
		{"trades", &types.Trade{}},
		{"orders", &types.Order{}},
		{"balances", &types.Balance{}},
		{"instrument", &types.Instrument{}},
	} {
		if err := tx.Unscoped().Where("ticker = ?", ticker).Delete(step.model).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete %s for %s: %w", step.name, ticker, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit delisting: %w", err)
	}
	return nil
}
