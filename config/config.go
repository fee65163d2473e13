package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Ledger   LedgerConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// LedgerConfig tunes how ledger mutations behave under contention.
// Storage-level conflicts (deadlocks, lock waits) are retried up to
// RetryAttempts with linear backoff before surfacing as transient failures.
type LedgerConfig struct {
	RetryAttempts   int
	RetryBackoff    time.Duration
	MaxGiftAmount   int64
	MaxTopUpAmount  int64
	HistoryPageSize int
}

// AdminConfig seeds the initial admin account at boot.
type AdminConfig struct {
	Email    string
	Username string
	Password string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envOr("PORT", "8080"),
			Env:          envOr("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envOr("DB_DSN", "tikbook:tikbook@tcp(localhost:3306)/tikbook?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  envOr("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: envOr("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "tikbook",
		},
		Ledger: LedgerConfig{
			RetryAttempts:   envOrInt("LEDGER_RETRY_ATTEMPTS", 3),
			RetryBackoff:    50 * time.Millisecond,
			MaxGiftAmount:   envOrInt64("LEDGER_MAX_GIFT", 1_000_000),
			MaxTopUpAmount:  envOrInt64("LEDGER_MAX_TOPUP", 1_000_000),
			HistoryPageSize: 50,
		},
		Admin: AdminConfig{
			Email:    envOr("ADMIN_EMAIL", "admin@tikbook.local"),
			Username: envOr("ADMIN_USERNAME", "admin"),
			Password: envOr("ADMIN_PASSWORD", "change-me-admin"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
