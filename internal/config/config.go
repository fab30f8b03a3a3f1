package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server's runtime configuration, loaded from environment
// variables.
type Config struct {
	Addr      string `env:"BOOKLOG_ADDR" envDefault:":8080"`
	DBPath    string `env:"BOOKLOG_DB" envDefault:"./data/booklog.db"`
	JWTSecret string `env:"BOOKLOG_JWT_SECRET" envDefault:"dev-secret-change-me"`
	SeedFile  string `env:"BOOKLOG_SEED_FILE"`
	SeedOwner string `env:"BOOKLOG_SEED_OWNER" envDefault:"local"`

	// Timezone for "today" in date stamping and stats, e.g. America/Chicago.
	Timezone string `env:"APP_TIMEZONE" envDefault:"UTC"`

	// Optional Google Books API key (unkeyed requests get throttled).
	GoogleBooksAPIKey string `env:"GOOGLE_BOOKS_API_KEY"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

// Location resolves the configured timezone. Load already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
