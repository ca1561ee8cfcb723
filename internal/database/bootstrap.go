package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/config"
	"github.com/azabchk/zappppppix/internal/types"
)

// Bootstrap seeds the data a fresh exchange needs to operate: the quote
// currency, the configured default instruments and the admin account tied
// to ADMIN_TOKEN. It is idempotent and runs on every start.
func Bootstrap(db *gorm.DB, cfg *config.Config) error {
	if err := seedInstruments(db, cfg.InstrumentList()); err != nil {
		return err
	}
	return seedAdmin(db, cfg.AdminToken)
}

func seedInstruments(db *gorm.DB, tickers []string) error {
	hasQuote := false
	for _, ticker := range tickers {
		if ticker == types.QuoteCurrency {
			hasQuote = true
			break
		}
	}
	if !hasQuote {
		tickers = append([]string{types.QuoteCurrency}, tickers...)
	}

	for _, ticker := range tickers {
		var count int64
		err := db.Model(&types.Instrument{}).Where("ticker = ?", ticker).Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check instrument %s: %w", ticker, err)
		}
		if count > 0 {
			continue
		}

		instrument := types.Instrument{
			Ticker:    ticker,
			Type:      "CURRENCY",
			CreatedAt: time.Now().UTC(),
		}
		if err := db.Create(&instrument).Error; err != nil {
			return fmt.Errorf("failed to seed instrument %s: %w", ticker, err)
		}
		log.Info().Str("ticker", ticker).Msg("Seeded default instrument")
	}
	return nil
}

// seedAdmin creates the admin account on first start and keeps its api
// key in sync with ADMIN_TOKEN afterwards. An empty token skips seeding.
func seedAdmin(db *gorm.DB, adminToken string) error {
	if adminToken == "" {
		return nil
	}

	var admin types.User
	err := db.Where("role = ?", types.RoleAdmin).First(&admin).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		admin = types.User{
			UserID:    uuid.New().String(),
			Name:      "admin",
			Role:      types.RoleAdmin,
			APIKey:    adminToken,
			CreatedAt: time.Now().UTC(),
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
		log.Info().Str("user_id", admin.UserID).Msg("Seeded admin user")
	case err != nil:
		return fmt.Errorf("failed to look up admin user: %w", err)
	default:
		if admin.APIKey != adminToken {
			admin.APIKey = adminToken
			if err := db.Save(&admin).Error; err != nil {
				return fmt.Errorf("failed to rotate admin api key: %w", err)
			}
			log.Info().Str("user_id", admin.UserID).Msg("Rotated admin api key")
		}
	}
	return nil
}
