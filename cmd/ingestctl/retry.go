package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vaultingest/internal/models"
	"vaultingest/internal/workers"
)

var retryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Re-arm one error row for reprocessing",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

var retryAllCmd = &cobra.Command{
	Use:   "retry-all",
	Short: "Re-arm every retriable error row",
	RunE:  runRetryAll,
}

func init() {
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(retryAllCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[0], err)
	}

	store, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	item, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("no row with id %d", id)
	}
	if item.Status != models.StatusError {
		return fmt.Errorf("row %d is %s, not error", id, item.Status)
	}

	if err := store.ResetForRetry(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("row %d reset to pending\n", id)
	return nil
}

func runRetryAll(cmd *cobra.Command, args []string) error {
	store, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := store.ListRetryableErrors(cmd.Context(), 1000)
	if err != nil {
		return err
	}

	reset := 0
	for _, row := range rows {
		if workers.IsNonRetriable(row.ErrorMessage) {
			continue
		}
		if err := store.ResetForRetry(cmd.Context(), row.ID); err != nil {
			fmt.Printf("row %d: %v\n", row.ID, err)
			continue
		}
		reset++
	}
	fmt.Printf("reset %d of %d error rows\n", reset, len(rows))
	return nil
}
