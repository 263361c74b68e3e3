package main

import (
	"fmt"

	"github.com/spf13/cobra"

	mongodb "github.com/hms/hospital-auth/internal/infrastructure/db/mongo"
	"github.com/hms/hospital-auth/internal/infrastructure/db/postgres"
	"github.com/hms/hospital-auth/internal/pkg/config"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations (postgres) or create indexes (mongo)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			if cfg.StoreDriver == config.StoreDriverMongo {
				client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
				if err != nil {
					return err
				}
				defer func() { _ = client.Disconnect(ctx) }()

				if err := mongodb.NewCredentialRepository(db).EnsureIndexes(ctx); err != nil {
					return fmt.Errorf("users indexes: %w", err)
				}
				if err := mongodb.NewAuditRepository(db).EnsureIndexes(ctx); err != nil {
					return fmt.Errorf("audit_log indexes: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Indexes are up to date.")
				return nil
			}

			pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := postgres.Migrate(ctx, pool, log)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
}
