package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "ingestctl",
	Short: "Operator CLI for the vaultingest queue",
	Long: `ingestctl inspects and repairs the ingestion work queue:

  ingestctl status                 - counts by status
  ingestctl list --status error    - list rows in a given state
  ingestctl retry <id>             - re-arm one error row
  ingestctl retry-all              - re-arm every retriable error row
  ingestctl cleanup --days 30      - delete old completed rows
  ingestctl reset <id>             - force a row back to pending
  ingestctl doctor                 - sanity-check configuration and connectivity`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json)")
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
