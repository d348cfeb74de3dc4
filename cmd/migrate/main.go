package main

import (
	"errors"
	"flag"
	"log"

	"storefront-be/internal/config"
	"storefront-be/internal/db"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up or down")
	dir := flag.String("dir", "./migrations", "migrations directory")
	flag.Parse()

	cfg := config.LoadConfig()
	database := db.InitDB(cfg)
	defer database.Close()

	driver, err := postgres.WithInstance(database, &postgres.Config{})
	if err != nil {
		log.Fatalf("failed to init migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+*dir, cfg.DBName, driver)
	if err != nil {
		log.Fatalf("failed to init migrator: %v", err)
	}

	switch *mode {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		log.Fatalf("unknown mode: %s (use 'up' or 'down')", *mode)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("no migrations to apply")
		return
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("migrations applied")
}
