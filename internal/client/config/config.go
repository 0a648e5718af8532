package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings of the vaultguard terminal client.
type Config struct {
	// APIBaseURL is the root of the REST API, including the /api prefix.
	APIBaseURL     string        `env:"VAULTGUARD_API_URL"`
	RequestTimeout time.Duration `env:"VAULTGUARD_REQUEST_TIMEOUT"`

	// DatabasePath is the SQLite file holding non-secret client hints.
	DatabasePath string `env:"VAULTGUARD_DB"`
	LogLevel     string `env:"VAULTGUARD_LOG_LEVEL"`

	// HealthCheckInterval is how often the client probes API reachability.
	HealthCheckInterval time.Duration `env:"VAULTGUARD_HEALTH_INTERVAL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000/api"
	c.RequestTimeout = 30 * time.Second
	c.DatabasePath = "vaultguard.db"
	c.LogLevel = "info"
	c.HealthCheckInterval = 5 * time.Second
}

// LoadConfig applies defaults, then the JSON file named by -c/-config, then
// environment variables, then flags. Later sources win.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := parseEnv(cfg, nil); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}
