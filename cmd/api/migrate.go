package main

import (
	"fmt"

	"pickme-intel/internal/config"
	"pickme-intel/internal/credits/sqlitestore"
	"pickme-intel/migrations"
	"pickme-intel/pkg/utils"

	"github.com/spf13/cobra"
)

func migrateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch c.cfg.Store.Driver {
			case config.DriverPostgres:
				db, err := utils.OpenPostgres(ctx, "pgx", c.cfg.PostgresDSN(), utils.PostgresPoolConfig{})
				if err != nil {
					return fmt.Errorf("postgres init: %w", err)
				}
				defer db.Close()
				if err := migrations.Apply(ctx, db); err != nil {
					return err
				}
			case config.DriverSQLite:
				// Opening the store runs the gorm auto-migration.
				s, err := sqlitestore.New(c.cfg.Store.SQLitePath, c.log)
				if err != nil {
					return fmt.Errorf("sqlite init: %w", err)
				}
				defer s.Close()
			default:
				c.log.Info("memory store has no schema to migrate")
				return nil
			}
			c.log.Info("schema migrated", "store", c.cfg.Store.Driver)
			return nil
		},
	}
}
