package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yungbote/orgdesk-backend/internal/app"
	"github.com/yungbote/orgdesk-backend/internal/data/db"
	"github.com/yungbote/orgdesk-backend/internal/platform/envutil"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "orgdesk",
	Short:         "orgdesk API server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the cron orchestrator",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

var cronOnceCmd = &cobra.Command{
	Use:   "cron-once",
	Short: "Run every cron job once and print the report",
	RunE:  runCronOnce,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, cronOnceCmd)
}

func bootstrap() (*logger.Logger, app.Config, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		return nil, app.Config{}, err
	}
	log.Info("Loading configuration...")
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Error("Invalid configuration", "error", err)
		log.Sync()
		return nil, app.Config{}, err
	}
	return log, cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), log, cfg)
	if err != nil {
		log.Error("Startup failed", "error", err)
		log.Sync()
		return err
	}
	defer a.Close()

	if err := a.Run(cmd.Context()); err != nil {
		log.Error("Server failed", "error", err)
		return err
	}
	log.Info("Shut down cleanly")
	return nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log, cfg.Postgres())
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		return err
	}
	defer pg.Close()
	if err := pg.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		return err
	}
	log.Info("Schema up to date")
	return nil
}

func runCronOnce(cmd *cobra.Command, _ []string) error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), log, cfg)
	if err != nil {
		log.Error("Startup failed", "error", err)
		log.Sync()
		return err
	}
	defer a.Close()

	report, err := a.Services.Cron.RunOnce(cmd.Context())
	if err != nil {
		log.Error("Cron run failed", "error", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Status != "ok" {
		return fmt.Errorf("cron run finished with status %s", report.Status)
	}
	return nil
}
