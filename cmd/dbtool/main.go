package main

import (
	"context"
	"fmt"
	"os"

	"ece-placement-service/internal/adapters/repositories"
	"ece-placement-service/internal/app"
	"ece-placement-service/internal/config"

	"go.uber.org/zap"
)

// dbtool creates the schema for the configured store and seeds tracts from
// store.seed_path (SEED_PATH also accepted) when the store is empty.
func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return err
	}
	defer func() { _ = zap.L().Sync() }()

	// Seeding needs no oracle or cache.
	cfg.Cache.Backend = config.CacheNone

	seedPath := cfg.Store.SeedPath
	if v := os.Getenv("SEED_PATH"); v != "" {
		seedPath = v
	}

	zap.L().Info("initializing database schema", zap.String("driver", cfg.Store.Driver))
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()
	zap.L().Info("schema ready")

	if err := repositories.SeedFromCSV(ctx, stores.Repo, seedPath); err != nil {
		return err
	}
	zap.L().Info("seeding complete")
	return nil
}
