package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vaultingest/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print row counts by status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := store.CountByStatus(cmd.Context())
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(counts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	order := []models.Status{
		models.StatusPending, models.StatusProcessing, models.StatusMoved,
		models.StatusEmbyPending, models.StatusCompleted, models.StatusError,
	}
	total := 0
	for _, s := range order {
		n := counts[s]
		total += n
		fmt.Printf("%-14s %d\n", colorizeStatus(string(s)), n)
	}
	fmt.Printf("%-14s %d\n", "total", total)
	return nil
}
