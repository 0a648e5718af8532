package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/vaultguard/internal/devserver"
	"github.com/dmitrijs2005/vaultguard/internal/devserver/config"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)
	app := devserver.NewApp(cfg, logger, devserver.WithMailer(devserver.NewWriterMailer(os.Stdout)))

	if err := app.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}
