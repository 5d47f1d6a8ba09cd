package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/service"
	"github.com/makkenzo/keygate/internal/storage"
	"go.uber.org/zap"
)

// createapikey issues a key directly against the configured snapshot
// storage. A running server only sees it after a restart.
func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	clientName := flag.String("client", "", "Client name recorded with the key")
	daysValid := flag.Int("days", apikey.DefaultDaysValid, "Number of days the key stays valid")
	flag.Parse()

	if *clientName == "" {
		fmt.Fprintln(os.Stderr, "-client is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx := context.Background()

	backend, closeBackend, err := storage.NewSnapshotBackend(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open snapshot storage: %v", err)
	}
	defer closeBackend()

	store, err := service.NewKeyStore(ctx, backend, service.RateDefaults{
		Capacity:     cfg.RateLimit.Capacity,
		RefillPerSec: cfg.RateLimit.RefillPerSec,
	}, nil, nil, nil, logger)
	if err != nil {
		log.Fatalf("Failed to load api keys: %v", err)
	}

	key, record, err := store.Create(ctx, *clientName, *daysValid)
	if err != nil {
		log.Fatalf("Failed to create API key: %v", err)
	}

	fmt.Printf("Generated API Key (SAVE THIS securely!):\n%s\n\n", key)
	fmt.Printf("Client: %s\n", record.ClientName)
	fmt.Printf("Expires at (unix): %d\n", record.ExpiresAt)
	fmt.Printf("Rate limit: %d tokens, %.3f/s refill\n", record.RateCapacity, record.RateRefillPerSec)
}
