// Command migrate applies the schema migrations compiled into the binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/minter-scanner/internal/config"
	"github.com/minter-scanner/internal/storage"
	"github.com/minter-scanner/migrations"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch *dbType {
	case "postgres":
		err = migratePostgres(cfg, *action)
	case "clickhouse":
		err = migrateClickHouse(cfg, *action)
	default:
		err = fmt.Errorf("unknown database type: %s", *dbType)
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func migratePostgres(cfg *config.Config, action string) error {
	databaseURL := cfg.Database.Postgres.URL()
	files := migrations.Postgres()

	switch action {
	case "up":
		log.Println("Running Postgres migrations...")
		if err := storage.RunMigrations(databaseURL, files); err != nil {
			return err
		}
		log.Println("Postgres migrations completed")
		return nil

	case "down":
		log.Println("Rolling back one Postgres migration...")
		if err := storage.RollbackMigrations(databaseURL, files); err != nil {
			return err
		}
		log.Println("Postgres migration rolled back")
		return nil

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, files)
		if err != nil {
			return err
		}
		log.Printf("Current Postgres migration version: %d (dirty: %v)", version, dirty)
		return nil

	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

func migrateClickHouse(cfg *config.Config, action string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up'")
	}

	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing ClickHouse connection: %v", err)
		}
	}()

	log.Println("Running ClickHouse migrations...")
	if err := storage.RunClickHouseMigrations(context.Background(), db, migrations.ClickHouse()); err != nil {
		return err
	}
	log.Println("ClickHouse migrations completed")
	return nil
}
