package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete completed rows older than --days",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "delete completed rows last updated more than this many days ago")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	store, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := store.Cleanup(cmd.Context(), time.Duration(cleanupDays)*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d completed row(s) older than %d day(s)\n", n, cleanupDays)
	return nil
}
