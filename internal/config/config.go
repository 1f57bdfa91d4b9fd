package config

import (
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port string

	FastPayBaseURL string
	FastPayAPIKey  string
	FastPayTimeout time.Duration
	WebhookSecret  string

	Currency string
	TaxRate  decimal.Decimal

	ReaperInterval time.Duration
	ReaperMaxAge   time.Duration
}

func Load() Config {
	return Config{
		Port:           getenv("PORT", "8080"),
		FastPayBaseURL: os.Getenv("FASTPAY_BASE_URL"),
		FastPayAPIKey:  os.Getenv("FASTPAY_API_KEY"),
		FastPayTimeout: getduration("FASTPAY_TIMEOUT", 10*time.Second),
		WebhookSecret:  os.Getenv("FASTPAY_WEBHOOK_SECRET"),
		Currency:       getenv("CHECKOUT_CURRENCY", "USD"),
		TaxRate:        getdecimal("CHECKOUT_TAX_RATE", "0.08"),
		ReaperInterval: getduration("REAPER_INTERVAL", 1*time.Minute),
		ReaperMaxAge:   getduration("REAPER_MAX_AGE", 30*time.Minute),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getdecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}
