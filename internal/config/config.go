package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries everything the server reads from the environment.
type Config struct {
	Port               string
	Env                string
	Debug              bool
	DatabaseDSN        string
	JWTSecret          string
	AdminToken         string
	DefaultInstruments string
}

// Load builds a Config from the environment, reading a .env file first
// when one exists. Variables already set in the environment win. Every
// value has a development default, so a bare `go run ./cmd/server` works.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getStr("PORT", "8080"),
		Env:                getStr("ENV", "development"),
		Debug:              getBool("DEBUG", false),
		DatabaseDSN:        getStr("DATABASE_DSN", "zappppppix.db"),
		JWTSecret:          getStr("JWT_SECRET", "zappppppix-dev-secret"),
		AdminToken:         getStr("ADMIN_TOKEN", "admin-key"),
		DefaultInstruments: getStr("DEFAULT_INSTRUMENTS", "RUB,USD"),
	}
}

// InstrumentList splits DefaultInstruments into upper-cased tickers,
// dropping empty entries.
func (c *Config) InstrumentList() []string {
	parts := strings.Split(c.DefaultInstruments, ",")
	tickers := make([]string, 0, len(parts))
	for _, part := range parts {
		if ticker := strings.ToUpper(strings.TrimSpace(part)); ticker != "" {
			tickers = append(tickers, ticker)
		}
	}
	return tickers
}

func getStr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
