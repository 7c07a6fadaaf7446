package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "kitchensync.db", c.DatabasePath)
	assert.Equal(t, "http://127.0.0.1:8080", c.ServerEndpointAddr)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 30*time.Second, c.SyncInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerEndpointAddr)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
}

func TestParseEnv_Overlay(t *testing.T) {
	t.Setenv("KITCHENSYNC_SERVER_ADDR", "http://backend:9000")
	t.Setenv("KITCHENSYNC_HOUSEHOLD_ID", "hh-42")
	t.Setenv("KITCHENSYNC_SYNC_INTERVAL", "45")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, "http://backend:9000", c.ServerEndpointAddr)
	assert.Equal(t, "hh-42", c.HouseholdID)
	assert.Equal(t, 45*time.Second, c.SyncInterval)
	// untouched fields keep their defaults
	assert.Equal(t, "kitchensync.db", c.DatabasePath)
}

func TestParseEnv_IgnoresGarbageIntervals(t *testing.T) {
	t.Setenv("KITCHENSYNC_ONLINE_CHECK_INTERVAL", "soon")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
}
