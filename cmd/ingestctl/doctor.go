package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vaultingest/internal/config"
	"vaultingest/internal/database"
	"vaultingest/internal/mediaserver"
)

// doctorCmd runs a preflight sanity check an operator invokes before
// starting the daemon.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and connectivity",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		report("config load", false, err)
		return nil
	}
	report("config load", true, nil)

	if err := cfg.Validate(); err != nil {
		report("config validate", false, err)
	} else {
		report("config validate", true, nil)
	}

	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL, database.PoolConfig{MinConns: cfg.PoolMin, MaxConns: cfg.PoolMax})
		if err != nil {
			report("database connect", false, err)
		} else {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := db.Health(ctx); err != nil {
				report("database ping", false, err)
			} else {
				report("database ping", true, nil)
			}
			db.Close()
		}
	}

	if cfg.MediaServer.BaseURL == "" {
		report("media server ping", false, fmt.Errorf("MEDIA_SERVER_BASE_URL not configured"))
	} else {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		client := mediaserver.New(cfg.MediaServer.BaseURL, cfg.MediaServer.APIKey, cfg.MediaServer.UserID)
		if err := client.Ping(ctx); err != nil {
			report("media server ping", false, err)
		} else {
			report("media server ping", true, nil)
		}
	}

	return nil
}

func report(check string, ok bool, err error) {
	if ok {
		fmt.Printf("%s  %s\n", color.GreenString("ok"), check)
		return
	}
	fmt.Printf("%s %s: %v\n", color.RedString("fail"), check, err)
}
