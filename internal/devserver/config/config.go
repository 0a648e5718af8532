// Package config handles configuration for the development API server:
// defaults, environment overlay and command-line flags.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings of the dev server.
//
// Fields:
//   - Addr: bind address of the HTTP listener.
//   - SecretKey: HMAC secret for signing access tokens (HS256). Do not reuse outside development.
//   - AccessTokenTTL / RefreshTokenTTL: token lifetimes, also used as cookie max age.
//   - OTPTTL: lifetime of an issued verification code.
//   - OTPResendCooldown: minimum spacing between two resends.
//   - MaxFailedLogins / LockoutDuration: reported failures before an email is locked, and for how long.
type Config struct {
	Addr            string        `env:"VAULTGUARD_DEV_ADDR"`
	SecretKey       string        `env:"VAULTGUARD_DEV_SECRET"`
	AccessTokenTTL  time.Duration `env:"VAULTGUARD_DEV_ACCESS_TTL"`
	RefreshTokenTTL time.Duration `env:"VAULTGUARD_DEV_REFRESH_TTL"`

	OTPTTL            time.Duration `env:"VAULTGUARD_DEV_OTP_TTL"`
	OTPResendCooldown time.Duration `env:"VAULTGUARD_DEV_OTP_COOLDOWN"`

	MaxFailedLogins int           `env:"VAULTGUARD_DEV_MAX_FAILED_LOGINS"`
	LockoutDuration time.Duration `env:"VAULTGUARD_DEV_LOCKOUT"`

	LogLevel string `env:"VAULTGUARD_DEV_LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret is public; override it when the server is reachable by others.
func (c *Config) LoadDefaults() {
	c.Addr = ":8000"
	c.SecretKey = "dev-secret-key"
	c.AccessTokenTTL = 15 * time.Minute
	c.RefreshTokenTTL = 7 * 24 * time.Hour
	c.OTPTTL = 10 * time.Minute
	c.OTPResendCooldown = 60 * time.Second
	c.MaxFailedLogins = 5
	c.LockoutDuration = 10 * time.Minute
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then environment
// variables and finally command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg, nil); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}
