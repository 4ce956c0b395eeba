// Package config loads application settings from a .env file and from
// environment variables. The storage backend is chosen here explicitly
// rather than inferred at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backend names accepted in STORE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds every runtime setting for the application.
type Config struct {
	// StoreBackend selects the storage implementation: sqlite, postgres or memory.
	StoreBackend string
	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string
	// PostgresDSN is the connection string used by the postgres backend.
	PostgresDSN string
	// TelegramToken authenticates the bot with the Telegram API.
	TelegramToken string
	// AdminIDs lists Telegram user IDs allowed to run admin commands.
	AdminIDs []int64
	// SnapshotHour is the UTC hour at which the nightly stats snapshot runs.
	SnapshotHour int
	// LogMode selects zap's config: "dev" (default) or "prod".
	LogMode string
}

// Load reads the optional .env file, then the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		StoreBackend:  getEnv("STORE_BACKEND", BackendSQLite),
		SQLitePath:    getEnv("SQLITE_PATH", "data/conceptbot.db"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		SnapshotHour:  3,
		LogMode:       getEnv("LOG_MODE", "dev"),
	}

	switch cfg.StoreBackend {
	case BackendSQLite, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.StoreBackend == BackendPostgres && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND=postgres")
	}

	if raw := os.Getenv("SNAPSHOT_HOUR"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("invalid SNAPSHOT_HOUR %q", raw)
		}
		cfg.SnapshotHour = h
	}

	for _, part := range strings.Split(os.Getenv("ADMIN_USER_IDS"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin user id %q", part)
		}
		cfg.AdminIDs = append(cfg.AdminIDs, id)
	}

	return cfg, nil
}

// IsAdmin reports whether the given Telegram user is configured as an admin.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
