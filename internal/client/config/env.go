package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays cfg with the VAULTGUARD_* variables that are set. A nil
// environ reads the process environment.
func parseEnv(cfg *Config, environ map[string]string) error {
	return env.ParseWithOptions(cfg, env.Options{Environment: environ})
}
