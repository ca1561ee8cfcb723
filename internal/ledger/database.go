package ledger

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/azabchk/zappppppix/internal/types"
)

// RetryPolicy bounds how often a balance upsert is retried when the store
// reports a transient write conflict.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy retries twice more after the first failure, waiting a
// randomised 10-100ms doubled on each attempt.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	MinBackoff:  10 * time.Millisecond,
	MaxBackoff:  100 * time.Millisecond,
}

// backoff returns the wait before retry number attempt (zero-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	window := int64(p.MaxBackoff - p.MinBackoff)
	base := p.MinBackoff + time.Duration(rand.Int63n(window+1))
	return base << attempt
}

// Database handles balance persistence.
type Database struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewDatabase creates a balance store around an open gorm handle.
func NewDatabase(db *gorm.DB) *Database {
	return &Database{
		db:    db,
		retry: DefaultRetryPolicy,
	}
}

// WithTx returns a view of the store bound to an open transaction, so
// settlement writes commit together with the order updates that caused
// them.
func (d *Database) WithTx(tx *gorm.DB) *Database {
	return &Database{
		db:    tx,
		retry: d.retry,
	}
}

// ApplyDelta atomically adds delta to the (userID, ticker) balance,
// creating the row on first touch. Transient conflicts are retried with
// randomised exponential backoff; exhausting the retries surfaces
// ErrStoreConflict so the caller rolls back the enclosing transaction.
func (d *Database) ApplyDelta(userID, ticker string, delta int64) error {
	var lastErr error
	for attempt := 0; attempt < d.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := d.retry.backoff(attempt - 1)
			log.Warn().
				Str("user_id", userID).
				Str("ticker", ticker).
				Dur("backoff", wait).
				Msg("retrying balance upsert after transient conflict")
			time.Sleep(wait)
		}

		lastErr = d.upsertDelta(userID, ticker, delta)
		if lastErr == nil {
			return nil
		}
		if !isTransientConflict(lastErr) {
			return fmt.Errorf("failed to apply balance delta: %w", lastErr)
		}
	}
	return fmt.Errorf("%w: %v", types.ErrStoreConflict, lastErr)
}

// upsertDelta performs a single insert-or-increment on the balance row.
func (d *Database) upsertDelta(userID, ticker string, delta int64) error {
	now := time.Now().UTC()
	balance := types.Balance{
		UserID:    userID,
		Ticker:    ticker,
		Amount:    delta,
		UpdatedAt: now,
	}
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "ticker"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("balances.amount + ?", delta),
			"updated_at": now,
		}),
	}).Create(&balance).Error
}

// isTransientConflict matches storage signals worth retrying: sqlite lock
// contention and server-side deadlocks.
func isTransientConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "deadlock")
}

// GetBalance returns the amount held, zero when no row exists yet.
func (d *Database) GetBalance(userID, ticker string) (int64, error) {
	var balance types.Balance
	err := d.db.Where("user_id = ? AND ticker = ?", userID, ticker).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance.Amount, nil
}

// HasAtLeast reports whether the user holds at least amount of ticker.
func (d *Database) HasAtLeast(userID, ticker string, amount int64) (bool, error) {
	held, err := d.GetBalance(userID, ticker)
	if err != nil {
		return false, err
	}
	return held >= amount, nil
}

// ListByUser returns every balance row for the user, ordered by ticker.
func (d *Database) ListByUser(userID string) ([]types.Balance, error) {
	var balances []types.Balance
	err := d.db.Where("user_id = ?", userID).Order("ticker ASC").Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

// UserExists reports whether a user row exists for the id.
func (d *Database) UserExists(userID string) (bool, error) {
	var count int64
	err := d.db.Model(&types.User{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}

// InstrumentExists reports whether a ticker is listed.
func (d *Database) InstrumentExists(ticker string) (bool, error) {
	var count int64
	err := d.db.Model(&types.Instrument{}).Where("ticker = ?", ticker).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check instrument: %w", err)
	}
	return count > 0, nil
}
