package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"crewpay/internal/platform/config"
	"crewpay/internal/platform/db"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}
	cfg := config.Load()

	migrationsDir := flag.String("dir", cfg.MigrationsDir, "directory containing migration files")
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	if err := run(action, *migrationsDir, cfg.DatabaseURL); err != nil {
		slog.Error("migration failed", "action", action, "err", err)
		os.Exit(1)
	}
	slog.Info("migration completed", "action", action)
}

func run(action, dir, databaseURL string) error {
	m, err := db.NewMigrator(dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	switch action {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		slog.Info("migration version", "version", version, "dirty", dirty)
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}
