package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gatepass/internal/db"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store/postgres"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema for the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closeLog, err := setup("")
			if err != nil {
				return err
			}
			defer closeLog()

			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()

			switch cfg.Store.Driver {
			case "postgres":
				pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				if err := postgres.EnsureSchema(ctx, pool); err != nil {
					return err
				}
			case "sqlite":
				// Open applies pending migrations.
				sqlDB, err := db.Open(ctx, db.Config{Path: cfg.Store.SQLitePath, Env: cfg.Env})
				if err != nil {
					return err
				}
				defer sqlDB.Close()
			default:
				logger.Info("nothing to migrate", "driver", cfg.Store.Driver)
				return nil
			}

			logger.Info("schema up to date", "driver", cfg.Store.Driver)
			return nil
		},
	}
}
