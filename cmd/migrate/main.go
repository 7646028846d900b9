package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"synapse-project-api/internal/config"
	"synapse-project-api/internal/database"
	"synapse-project-api/internal/logging"
)

func main() {
	var (
		driver = flag.String("driver", "", "postgres or sqlite (overrides STORAGE_DRIVER)")
		dsn    = flag.String("dsn", "", "connection string or sqlite path (overrides DATABASE_URL)")
		down   = flag.Int("down", 0, "roll back this many migrations instead of applying")
		status = flag.Bool("status", false, "print the current schema version and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *driver != "" {
		cfg.Storage.Driver = *driver
	}
	if *dsn != "" {
		cfg.Storage.DSN = *dsn
	}
	if cfg.Storage.Driver == "memory" {
		fmt.Println("Error: the memory driver has no schema; pass -driver=postgres or -driver=sqlite")
		os.Exit(1)
	}
	if cfg.Storage.DSN == "" {
		fmt.Println("Error: a DSN is required (-dsn or DATABASE_URL)")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	fmt.Printf("Using %s database %s\n", cfg.Storage.Driver, logging.SanitizeConnectionString(cfg.Storage.DSN))

	switch {
	case *status:
		version, dirty, ok, err := database.MigrationVersion(cfg.Storage.Driver, cfg.Storage.DSN, logger)
		if err != nil {
			log.Fatalf("Failed to read schema version: %s", logging.SanitizeError(err))
		}
		if !ok {
			fmt.Println("No migrations applied")
			return
		}
		fmt.Printf("Schema version %d (dirty=%v)\n", version, dirty)
	case *down > 0:
		if err := database.RollbackMigrations(cfg.Storage.Driver, cfg.Storage.DSN, *down, logger); err != nil {
			log.Fatalf("Rollback failed: %s", logging.SanitizeError(err))
		}
		fmt.Printf("Rolled back %d migration(s)\n", *down)
	default:
		if err := database.RunMigrations(cfg.Storage.Driver, cfg.Storage.DSN, logger); err != nil {
			log.Fatalf("Migration failed: %s", logging.SanitizeError(err))
		}
		fmt.Println("All migrations applied successfully")
	}
}
