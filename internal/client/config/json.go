package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/flagx"
)

// Duration accepts "30s"-style strings or integer nanoseconds in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x))
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return errors.New("invalid duration")
	}
	return nil
}

// JSONConfig is the on-disk shape of Config. Absent fields keep their
// previous value.
type JSONConfig struct {
	APIBaseURL     string    `json:"api_base_url"`
	RequestTimeout *Duration `json:"request_timeout"`
	DatabasePath   string    `json:"database_path"`
	LogLevel       string    `json:"log_level"`
	HealthInterval *Duration `json:"health_check_interval"`
}

// parseJSON overlays cfg with the file named by -c or -config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = time.Duration(*jc.RequestTimeout)
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.HealthInterval != nil {
		cfg.HealthCheckInterval = time.Duration(*jc.HealthInterval)
	}
	return nil
}
