package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskpilot/service-api-go/internal/auth"
	"github.com/taskpilot/service-api-go/internal/config"
	"github.com/taskpilot/service-api-go/internal/router"
	taskrepo "github.com/taskpilot/service-api-go/internal/task/repo"
	userrepo "github.com/taskpilot/service-api-go/internal/user/repo"
	"github.com/taskpilot/service-api-go/pkg/database"
	"github.com/taskpilot/service-api-go/pkg/utilities"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// init logger
	lg, err := utilities.NewLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting taskpilot-api")

	cfg, err := config.Load(configPath)
	if err != nil {
		sugar.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		sugar.Fatalf("config: %v", err)
	}

	// init db
	db, err := database.Connect(database.Config{
		DSN:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// ensure schema at boot; tables are created idempotently
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer bootCancel()
	if err := userrepo.NewUserRepo(db).EnsureTable(bootCtx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}
	if err := taskrepo.NewTaskRepo(db).EnsureTable(bootCtx); err != nil {
		sugar.Fatalf("ensure tasks table: %v", err)
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := router.RegisterRoutes(sugar, db, tokens, cfg.CORSOrigin)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	// run server in background
	go func() {
		sugar.Infow("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
	return nil
}
