package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskpilot/service-api-go/internal/config"
	taskrepo "github.com/taskpilot/service-api-go/internal/task/repo"
	userrepo "github.com/taskpilot/service-api-go/internal/user/repo"
	"github.com/taskpilot/service-api-go/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  `Applies the idempotent schema DDL for the users and tasks tables and exits.`,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := database.Connect(database.Config{
		DSN:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := userrepo.NewUserRepo(db).EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure users table: %w", err)
	}
	if err := taskrepo.NewTaskRepo(db).EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure tasks table: %w", err)
	}

	fmt.Println("schema is up to date")
	return nil
}
