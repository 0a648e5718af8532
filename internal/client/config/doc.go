// Package config loads runtime configuration for the vaultguard client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. VAULTGUARD_* environment variables.
//  4. Command-line flags.
//
// Supported flags
//
//	-a string   API base URL (default http://localhost:8000/api)
//	-t int      request timeout in seconds
//	-d string   local metadata database path
//	-l string   log level
//	-i int      health check interval in seconds
//
// # JSON schema
//
// Durations may be strings like "30s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "https://vault.example.com/api",
//	  "request_timeout": "30s",
//	  "database_path": "/var/lib/vaultguard/client.db",
//	  "log_level": "debug",
//	  "health_check_interval": "5s"
//	}
package config
