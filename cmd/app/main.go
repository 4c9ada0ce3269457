package main

import (
	"flag"
	"log"
	"os"

	"hermes/internal/di"
	"hermes/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s kafka=%t clickhouse=%t redis=%t newsfeed=%t",
		cfg.Environment, cfg.Kafka.Enabled, cfg.ClickHouse.Enabled, cfg.Redis.Enabled, cfg.Newsfeed.Enabled)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
