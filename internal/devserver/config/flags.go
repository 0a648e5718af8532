package config

import (
	"flag"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/vaultguard/internal/flagx"
)

// parseEnv overlays cfg with the VAULTGUARD_DEV_* variables that are set. A
// nil environ reads the process environment.
func parseEnv(cfg *Config, environ map[string]string) error {
	return env.ParseWithOptions(cfg, env.Options{Environment: environ})
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   bind address (e.g., ":8000")
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-o int      OTP validity, minutes
//	-l string   log level
//
// Duration flags are accepted as integers in minutes.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-s", "-t", "-r", "-o", "-l"})

	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "address and port to run server")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	access := fs.Int("t", int(cfg.AccessTokenTTL.Minutes()), "access token validity (in minutes)")
	refresh := fs.Int("r", int(cfg.RefreshTokenTTL.Minutes()), "refresh token validity (in minutes)")
	otp := fs.Int("o", int(cfg.OTPTTL.Minutes()), "OTP validity (in minutes)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.AccessTokenTTL = time.Duration(*access) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(*refresh) * time.Minute
	cfg.OTPTTL = time.Duration(*otp) * time.Minute
	return nil
}
