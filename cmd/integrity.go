package cmd

import (
	"context"
	"fmt"

	"turnover-sync/core/config"
	"turnover-sync/core/database"
	"turnover-sync/core/logger"
	"turnover-sync/core/storage"
	"turnover-sync/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixFlag bool

// integrityCmd represents the integrity command
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check storage, database and feed catalog readiness",
	Long:  `Checks the bucket folders, the reservations schema and the feed catalog. Exits non-zero when a check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, true, true)
	},
}

// structureCmd represents the integrity structure command
var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Check and fix bucket folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, false, false)
	},
}

// schemaCmd represents the integrity schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check the reservations database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, true, false)
	},
}

// catalogCmd represents the integrity catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Check the feed catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, false, true)
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(structureCmd, schemaCmd, catalogCmd)

	structureCmd.Flags().BoolVar(&fixFlag, "fix", false, "Create missing folders")
}

func runIntegrityChecks(ctx context.Context, runStructure, runSchema, runCatalog bool) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logg.Sync()

	var client storage.Client
	if runStructure {
		if client, err = storage.NewClient(cfg.Storage); err != nil {
			logg.Warn("Storage client unavailable", zap.Error(err))
		}
	}

	// The schema check is the only one that needs the database.
	var db *gorm.DB
	if runSchema {
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Database connection failed", zap.Error(err))
		} else {
			db = conn
		}
	}

	svc := integrity.NewService(client, cfg.Storage, db, cfg.Ingest.CatalogPath, logg)
	healthy := true

	if runStructure {
		logg.Info("Checking bucket folders...", zap.String("bucket", cfg.Storage.Bucket))
		missing, err := svc.CheckStructure(ctx)
		switch {
		case err != nil:
			logg.Error("Structure check failed", zap.Error(err))
			healthy = false
		case len(missing) == 0:
			logg.Info("Structure is intact.")
		case fixFlag:
			logg.Info("Fixing missing folders...", zap.Strings("missing", missing))
			if err := svc.FixStructure(ctx, missing); err != nil {
				logg.Error("Failed to fix structure", zap.Error(err))
				healthy = false
			} else {
				logg.Info("Structure fixed successfully.")
			}
		default:
			logg.Warn("Missing folders detected", zap.Strings("missing", missing))
			logg.Info("Run 'integrity structure --fix' to create missing folders.")
			healthy = false
		}
	}

	if runSchema {
		logg.Info("Checking database schema...", zap.String("driver", cfg.Database.Driver))
		report, err := svc.CheckSchema()
		switch {
		case err != nil:
			logg.Error("Schema check failed", zap.Error(err))
			healthy = false
		case report.Matched:
			logg.Info("Schema matches the reservation models.")
		default:
			healthy = false
			for table, tbl := range report.Tables {
				if tbl.Status != "ok" {
					logg.Warn("Table mismatch",
						zap.String("table", table),
						zap.String("status", tbl.Status),
						zap.Strings("missing_columns", tbl.MissingColumns),
					)
				}
			}
			for _, e := range report.Errors {
				logg.Error("Inspection error", zap.String("error", e))
			}
		}
	}

	if runCatalog {
		logg.Info("Checking feed catalog...", zap.String("path", cfg.Ingest.CatalogPath))
		report := svc.CheckCatalog()
		if report.Valid {
			logg.Info("Feed catalog is valid.",
				zap.Int("feeds", report.Feeds),
				zap.Int("enabled", report.Enabled),
				zap.Strings("properties", report.Properties),
			)
		} else {
			logg.Error("Feed catalog is invalid", zap.String("error", report.Error))
			healthy = false
		}
	}

	if !healthy {
		return fmt.Errorf("integrity checks failed")
	}
	return nil
}
