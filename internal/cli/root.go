package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taskpilot-api",
	Short: "TaskPilot task-tracking API server",
	Long: `REST backend for the TaskPilot task tracker: user accounts, task CRUD,
start/stop time tracking and dashboard analytics over PostgreSQL.`,
}

func Execute() {
	// load .env file if present so os.Getenv picks values from it
	// best-effort: if no .env exists, continue with real env
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to taskpilot.yaml (default: probe working directory)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
