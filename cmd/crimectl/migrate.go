package main

import (
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/noah-isme/crime-report-api/db/migrations"
	"github.com/noah-isme/crime-report-api/pkg/config"
	"github.com/noah-isme/crime-report-api/pkg/database"
)

const migrationTable = "schema_migrations"

var (
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded SQL migrations",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE:  runGoose("up"),
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE:  runGoose("down"),
	}
	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		RunE:  runGoose("status"),
	}
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runGoose(command string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close() //nolint:errcheck

		goose.SetBaseFS(migrations.FS)
		goose.SetTableName(migrationTable)
		if err := goose.SetDialect("postgres"); err != nil {
			return err
		}

		if err := goose.RunContext(ctx, command, db.DB, "."); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	}
}
