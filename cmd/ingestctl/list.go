package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vaultingest/internal/models"
)

var (
	listStatus string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List rows in a given status",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", string(models.StatusError), "status to filter on")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows to print")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := store.ListByStatus(cmd.Context(), models.Status(listStatus), listLimit)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(items) == 0 {
		fmt.Println("no rows")
		return nil
	}
	for _, item := range items {
		fmt.Printf("%-6d %-10s %-40s %s\n", item.ID, colorizeStatus(string(item.Status)), item.FilePath, item.ErrorMessage)
	}
	return nil
}
