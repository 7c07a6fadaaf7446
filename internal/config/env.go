package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays cfg with environment variables, loading a .env file
// first when one exists next to the binary. Supported variables:
//
//	KITCHENSYNC_DATABASE_PATH
//	KITCHENSYNC_SERVER_ADDR
//	KITCHENSYNC_ACCESS_TOKEN
//	KITCHENSYNC_HOUSEHOLD_ID
//	KITCHENSYNC_ONLINE_CHECK_INTERVAL  (seconds)
//	KITCHENSYNC_SYNC_INTERVAL          (seconds)
func parseEnv(cfg *Config) {
	// missing .env is the normal case
	_ = godotenv.Load()

	if v := os.Getenv("KITCHENSYNC_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("KITCHENSYNC_SERVER_ADDR"); v != "" {
		cfg.ServerEndpointAddr = v
	}
	if v := os.Getenv("KITCHENSYNC_ACCESS_TOKEN"); v != "" {
		cfg.AccessToken = v
	}
	if v := os.Getenv("KITCHENSYNC_HOUSEHOLD_ID"); v != "" {
		cfg.HouseholdID = v
	}
	if v := os.Getenv("KITCHENSYNC_ONLINE_CHECK_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.OnlineCheckInterval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("KITCHENSYNC_SYNC_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.SyncInterval = time.Duration(secs) * time.Second
		}
	}
}
