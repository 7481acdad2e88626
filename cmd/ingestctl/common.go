package main

import (
	"fmt"

	"github.com/fatih/color"

	"vaultingest/internal/config"
	"vaultingest/internal/database"
	"vaultingest/internal/queue"
)

// openStore loads configuration and connects to the queue's database. Every
// subcommand that touches the queue calls this once and closes the returned
// db when done.
func openStore() (*queue.Store, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	db, err := database.New(cfg.DatabaseURL, database.PoolConfig{MinConns: cfg.PoolMin, MaxConns: cfg.PoolMax})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := queue.New(db, cfg.Retry.BackoffMinutes, cfg.Retry.MaxRetries)
	return store, db, nil
}

var (
	statusColor = map[string]func(format string, a ...interface{}) string{
		"pending":      color.YellowString,
		"processing":   color.CyanString,
		"moved":        color.BlueString,
		"emby_pending": color.MagentaString,
		"completed":    color.GreenString,
		"error":        color.RedString,
	}
)

func colorizeStatus(status string) string {
	if f, ok := statusColor[status]; ok {
		return f("%s", status)
	}
	return status
}
