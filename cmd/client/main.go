package main

import (
	"context"
	"log"
	"os"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/vaultguard/internal/client/cli"
	"github.com/dmitrijs2005/vaultguard/internal/client/config"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
)

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
