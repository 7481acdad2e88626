// Command ingestctl is the operator CLI for the ingestion queue: status,
// row listing, manual retry, cleanup, and reset. One subcommand per file,
// registered onto a shared rootCmd with persistent output-format flags.
package main

func main() {
	Execute()
}
