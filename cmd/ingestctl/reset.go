package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Force a row back to pending regardless of its current status",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
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

	if err := store.Reset(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("row %d forced to pending (was %s)\n", id, item.Status)
	return nil
}
