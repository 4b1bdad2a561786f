// Command inventory validates the seed catalogue and upserts it into the
// store without starting the engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"reservo/internal/config"
	"reservo/internal/database"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		inventoryPath = flag.String("inventory", "configs/inventory.yaml", "path to inventory.yaml")
		configPath    = flag.String("config", "configs/config.yaml", "path to config.yaml")
		dryRun        = flag.Bool("dry-run", false, "validate only, do not touch the store")
	)
	flag.Parse()

	inv, err := config.LoadInventory(*inventoryPath)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}
	if len(inv.Properties) == 0 {
		return fmt.Errorf("no properties in %s", *inventoryPath)
	}
	if *dryRun {
		fmt.Printf("ok: properties=%d room_types=%d\n", len(inv.Properties), len(inv.RoomTypes))
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := db.SyncInventory(ctx, inv.Properties, inv.RoomTypes); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	fmt.Printf("done: properties=%d room_types=%d\n", len(inv.Properties), len(inv.RoomTypes))
	return nil
}
