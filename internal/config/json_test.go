package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestParseJson_Overlay(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"server_endpoint_addr":  "http://json:9000",
		"household_id":          "hh-json",
		"online_check_interval": "5s",
	})
	os.Args = []string{"kitchensync", "-c", path}

	var c Config
	c.LoadDefaults()
	parseJson(&c)

	assert.Equal(t, "http://json:9000", c.ServerEndpointAddr)
	assert.Equal(t, "hh-json", c.HouseholdID)
	assert.Equal(t, 5*time.Second, c.OnlineCheckInterval)
	// fields absent from the JSON keep their defaults
	assert.Equal(t, "kitchensync.db", c.DatabasePath)
	assert.Equal(t, 30*time.Second, c.SyncInterval)
}

func TestParseJson_NoFlagLoadsNothing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"kitchensync"}

	var c Config
	c.LoadDefaults()
	parseJson(&c)

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerEndpointAddr)
}

func TestParseJson_BadFilePanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"kitchensync", "-config", filepath.Join(t.TempDir(), "missing.json")}

	var c Config
	c.LoadDefaults()
	assert.Panics(t, func() { parseJson(&c) })
}
