package config

import "time"

// Config holds runtime settings for the kitchensync CLI.
//
// Fields:
//   - DatabasePath: path of the local SQLite cache database.
//   - ServerEndpointAddr: base URL of the backend HTTP API.
//   - AccessToken: bearer token identifying the user to the backend.
//   - HouseholdID: the household this session operates on.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - SyncInterval: how often a full reconciliation pass runs while online.
//
// Units: intervals are time.Duration values (e.g. 3*time.Second).
type Config struct {
	DatabasePath        string
	ServerEndpointAddr  string
	AccessToken         string
	HouseholdID         string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "kitchensync.db"
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present), the environment, and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
