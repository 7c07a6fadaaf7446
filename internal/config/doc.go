// Package config loads runtime configuration for the kitchensync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. Environment variables, optionally from a .env file (see parseEnv).
//  4. Command-line flags, which override everything earlier.
//
// Supported flags
//
//	-a string   base URL of the backend HTTP API
//	-d string   path of the local database file
//	-t string   access token
//	-H string   household id
//	-i int      online status check interval (seconds)
//	-s int      sync interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be
// either strings like "3s" or integer nanoseconds:
//
//	{
//	  "database_path": "kitchensync.db",
//	  "server_endpoint_addr": "http://127.0.0.1:8080",
//	  "household_id": "hh-42",
//	  "online_check_interval": "3s",
//	  "sync_interval": "30s"
//	}
package config
