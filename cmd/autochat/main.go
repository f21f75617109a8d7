// Package main is the entry point for the autochat engine.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autochat",
	Short: "autochat - automated replies for marketplace seller chats",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every unread conversation once and print the run summary",
	RunE:  runOnce,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler on a cron schedule and serve the operator API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	loadEnvFiles()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnvFiles overlays .env files from the working directory and its parent, if present.
func loadEnvFiles() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", path, err)
		}
	}
}
