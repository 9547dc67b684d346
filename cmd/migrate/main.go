package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"hotelops/internal/migrations"
	mongoMigration "hotelops/internal/migrations/mongo"
	sqlMigration "hotelops/internal/migrations/sql"
	"hotelops/pkg/client"
	"hotelops/pkg/config"

	"github.com/spf13/cobra"
)

const JobName = "slots-migration"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the slot allocation schema to the configured store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 120*time.Second, "overall migration deadline")

	root.AddCommand(newMongoCommand(&timeout), newSQLCommand(&timeout))
	return root
}

func newMongoCommand(timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "mongo",
		Short: "Create the allocation collections, validator and indexes in MongoDB",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			cfg := config.Load(JobName)
			cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
			defer cfg.GracefulShutdown()

			cfg.Log.Info("Starting Mongo migration job", "database", cfg.MongoDatabaseName)
			report := migrations.NewReporter(cmd.OutOrStdout())
			if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName), report); err != nil {
				return fmt.Errorf("mongo migration failed: %w", err)
			}
			report.Successf("Migration completed successfully.")
			return nil
		},
	}
}

func newSQLCommand(timeout *time.Duration) *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Create the slot_allocations table and indexes in PostgreSQL or SQLite",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			cfg := config.Load(JobName)
			if driver == "" {
				driver = cfg.StorageDriver
			}
			if dsn == "" {
				dsn = cfg.SQLDSN
			}
			if driver != config.DriverPostgres && driver != config.DriverSQLite {
				return fmt.Errorf("--driver must be %q or %q, got %q", config.DriverPostgres, config.DriverSQLite, driver)
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or SQL_DSN is required")
			}

			db, err := client.OpenSQL(ctx, driver, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			cfg.Log.Info("Starting SQL migration job", "driver", driver)
			report := migrations.NewReporter(cmd.OutOrStdout())
			if err := sqlMigration.Migrate(ctx, db, driver, report); err != nil {
				return fmt.Errorf("sql migration failed: %w", err)
			}
			report.Successf("Migration completed successfully.")
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "SQL dialect: postgres or sqlite (defaults to STORAGE_DRIVER)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (defaults to SQL_DSN)")
	return cmd
}
