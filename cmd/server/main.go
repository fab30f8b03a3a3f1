package main

import (
	"log"
	"os"
	"path/filepath"

	"booklog/internal/config"
	"booklog/internal/lookup"
	"booklog/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal(err)
		}
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	if cfg.SeedFile != "" {
		entries, err := database.LoadEntriesFromJSON(cfg.SeedFile)
		if err != nil {
			log.Fatal(err)
		}
		n, err := database.SeedEntries(db, cfg.SeedOwner, entries)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Seeded %d entries for owner %s", n, cfg.SeedOwner)
	}

	resolver := lookup.NewResolver(db,
		lookup.NewGoogleBooks(cfg.GoogleBooksAPIKey),
		lookup.NewOpenLibrary())

	r := newRouter(db, cfg, resolver)
	log.Printf("HTTP API listening on %s (timezone %s)", cfg.Addr, cfg.Timezone)
	log.Fatal(r.Run(cfg.Addr))
}
