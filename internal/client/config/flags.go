package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-a string   API base URL
//	-t int      request timeout (seconds)
//	-d string   path of the local metadata database
//	-l string   log level (debug, info, warn, error)
//	-i int      health check interval (seconds)
//
// Only these flags are looked at, so -c/-config and unknown arguments pass.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-t", "-d", "-l", "-i"})

	fs := flag.NewFlagSet("vaultguard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local metadata database")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	interval := fs.Int("i", int(cfg.HealthCheckInterval.Seconds()), "health check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	cfg.HealthCheckInterval = time.Duration(*interval) * time.Second
	return nil
}
