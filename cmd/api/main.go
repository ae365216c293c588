// Command api runs the DoubleLife elevation service: the HTTP API used by the game server bridge,
// the expiry sweep and the webhook notifier.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/THEROER/DoubleLife/internal/infra/app"
	"github.com/THEROER/DoubleLife/internal/infra/config"
)

func main() {
	flagSet := pflag.NewFlagSet("doublelife", pflag.ExitOnError)
	envFile := flagSet.String("env-file", ".env", "dotenv file loaded before the environment is read")
	configDir := flagSet.String("config-dir", "", "directory holding doublelife.yaml")
	_ = flagSet.Parse(os.Args[1:])

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping %s: %v", *envFile, err)
	}

	var dirs []string
	if *configDir != "" {
		dirs = append(dirs, *configDir)
	}
	cfg, err := config.Load(dirs...)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init doublelife: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Printf("doublelife stopped: %v", err)
		os.Exit(1)
	}
}
