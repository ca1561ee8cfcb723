package auth

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/types"
)

// Database handles user persistence.
type Database struct {
	db *gorm.DB
}

// NewDatabase creates a new database instance
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateUser inserts a new user row.
func (d *Database) CreateUser(user *types.User) error {
	if err := d.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByAPIKey looks a user up by api key, returning nil when the key
// is unknown.
func (d *Database) GetUserByAPIKey(apiKey string) (*types.User, error) {
	var user types.User
	err := d.db.Where("api_key = ?", apiKey).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByID looks a user up by id, returning nil when it is unknown.
func (d *Database) GetUserByID(userID string) (*types.User, error) {
	var user types.User
	err := d.db.Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// DeleteUserCascade removes the user together with their balances, their
// orders and every trade those orders took part in, as one transaction.
func (d *Database) DeleteUserCascade(userID string) error {
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

	var orderIDs []string
	if err := tx.Model(&types.Order{}).Where("user_id = ?", userID).Pluck("order_id", &orderIDs).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to collect user orders: %w", err)
	}

	if len(orderIDs) > 0 {
		err := tx.Unscoped().
			Where("buy_order_id IN ? OR sell_order_id IN ?", orderIDs, orderIDs).
			Delete(&types.Trade{}).Error
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete user trades: %w", err)
		}
	}

	if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&types.Order{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete user orders: %w", err)
	}

	if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&types.Balance{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete user balances: %w", err)
	}

	if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&types.User{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit user deletion: %w", err)
	}
	return nil
}
