package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Parse command line arguments: migrate <command> [args...], e.g.
	// "migrate up-to 20260101000000" or "migrate create add_column sql".
	command := "up"
	var extraArgs []string
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if len(os.Args) > 2 {
		extraArgs = os.Args[2:]
	}

	fmt.Printf("Running goose %s...\n", command)

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Verify connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("✓ Connected to PostgreSQL")

	// Set migration directory, overridable for running against a checkout
	// laid out differently than the daemon's own working directory.
	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	// Run goose command
	if err := goose.Run(command, db, migrationsDir, extraArgs...); err != nil {
		log.Fatalf("Goose %s failed: %v", command, err)
	}

	fmt.Printf("✓ Goose %s completed successfully!\n", command)
}
