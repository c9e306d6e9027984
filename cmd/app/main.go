package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"WalletScore/internal/di"
	"WalletScore/pkg/config"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	input := flag.String("input", "", "transaction file, overrides input.path")
	serve := flag.Bool("serve", false, "serve the HTTP API and scheduler instead of a single run")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("env file: %v", err)
	}
	if *input != "" {
		_ = os.Setenv("INPUT_PATH", *input)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	app, cleanup, err := di.InitializeApp(ctx, cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *serve {
		err = app.Serve(ctx)
	} else {
		err = app.RunOnce(ctx)
	}
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
