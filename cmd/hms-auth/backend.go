package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/api/handler"
	"github.com/hms/hospital-auth/internal/core/ports"
	mongodb "github.com/hms/hospital-auth/internal/infrastructure/db/mongo"
	"github.com/hms/hospital-auth/internal/infrastructure/db/postgres"
	"github.com/hms/hospital-auth/internal/pkg/config"
)

// backend is the credential and audit storage selected by STORE_DRIVER.
type backend struct {
	creds  ports.CredentialRepository
	audit  ports.AuditRepository
	checks map[string]handler.Check
	close  func()
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		return openMongo(ctx, cfg, log)
	default:
		return openPostgres(ctx, cfg, log)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	pool, err := postgres.Connect(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		return nil, err
	}

	applied, err := postgres.Migrate(ctx, pool, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Int("applied", applied).Msg("connected to postgres")

	return &backend{
		creds: postgres.NewCredentialRepository(pool),
		audit: postgres.NewAuditRepository(pool),
		checks: map[string]handler.Check{
			"postgres": pool.Ping,
		},
		close: pool.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		return nil, err
	}

	creds := mongodb.NewCredentialRepository(db)
	audit := mongodb.NewAuditRepository(db)
	if err := creds.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("ensure users indexes failed")
	}
	if err := audit.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("ensure audit_log indexes failed")
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	return &backend{
		creds: creds,
		audit: audit,
		checks: map[string]handler.Check{
			"mongodb": mongodb.Pinger(client),
		},
		close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("mongo disconnect error")
			}
		},
	}, nil
}
