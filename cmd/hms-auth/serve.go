package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/hms/hospital-auth/internal/api"
	"github.com/hms/hospital-auth/internal/api/metrics"
	"github.com/hms/hospital-auth/internal/core/ports"
	"github.com/hms/hospital-auth/internal/core/service"
	redisdb "github.com/hms/hospital-auth/internal/infrastructure/db/redis"
	"github.com/hms/hospital-auth/internal/infrastructure/memory"
	"github.com/hms/hospital-auth/internal/infrastructure/notify"
	"github.com/hms/hospital-auth/internal/infrastructure/queue"
	"github.com/hms/hospital-auth/internal/jobs"
	"github.com/hms/hospital-auth/internal/pkg/config"
	"github.com/hms/hospital-auth/internal/pkg/password"
	"github.com/hms/hospital-auth/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the session expiry monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

// loadConfig reads the environment and initialises the process logger.
func loadConfig(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadWith(ctx, envconfig.OsLookuper())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "hms-auth",
		Env:     cfg.Env,
	})
	return cfg, log, nil
}

func runServer(ctx context.Context) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open credential store")
		return err
	}
	defer be.close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Error().Err(err).Msg("failed to connect redis")
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("redis close error")
			}
		}()
		be.checks["redis"] = redisdb.Pinger(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	// --- Stores ---
	var (
		lockoutStore ports.LockoutStore
		sessionStore ports.SessionStore
		monitorOpts  = []jobs.Option{jobs.WithObserver(metrics.SweepObserver{})}
	)
	if cfg.Lockout.Store == config.LockoutStoreRedis {
		lockoutStore = redisdb.NewLockoutStore(rdb)
	} else {
		mem := memory.NewLockoutStore()
		lockoutStore = mem
		monitorOpts = append(monitorOpts, jobs.WithPruner(mem))
	}
	if rdb != nil {
		sessionStore = redisdb.NewSessionStore(rdb)
	} else {
		sessionStore = memory.NewSessionStore()
	}

	// --- Services ---
	hub := notify.NewHub(logger.Component("notify"))
	hasher := password.NewHasher(cfg.BcryptCost)

	guard := service.NewLockoutGuard(lockoutStore, logger.Component("lockout"),
		service.WithLockoutThreshold(cfg.Lockout.Threshold),
		service.WithLockoutDuration(cfg.Lockout.Duration),
	)
	var userGuard *service.LockoutGuard
	if cfg.Lockout.UserThreshold > 0 {
		userGuard = service.NewLockoutGuard(lockoutStore, logger.Component("lockout"),
			service.WithLockoutThreshold(cfg.Lockout.UserThreshold),
			service.WithLockoutDuration(cfg.Lockout.Duration),
		)
	}
	tracker := service.NewSessionTracker(sessionStore, logger.Component("session"),
		service.WithSessionTimeout(cfg.Session.Timeout),
		service.WithSessionWarning(cfg.Session.Warning),
		service.WithSessionNotifier(hub),
		service.WithSessionAudit(be.audit),
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	dispatcher := queue.NewDispatcher(cfg.LastLoginWorkers, be.creds, metrics.LastLoginObserver{}, logger.Component("last_login"))
	dispatcher.Start(workerCtx)

	authService := service.NewAuthService(service.AuthDeps{
		Repo:      be.creds,
		Hasher:    hasher,
		Guard:     guard,
		UserGuard: userGuard,
		Sessions:  tracker,
		LastLogin: dispatcher,
		Upgrader:  dispatcher,
		Audit:     be.audit,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Log:       logger.Component("auth"),
	})
	userService := service.NewUserService(be.creds, hasher, be.audit, logger.Component("users"),
		service.WithSessionClearer(tracker))
	auditService := service.NewAuditService(be.audit)

	monitor := jobs.NewMonitor(cfg.Session.Tick, tracker, logger.Component("monitor"), monitorOpts...)
	if err := monitor.Start(); err != nil {
		log.Error().Err(err).Msg("session monitor start failed")
		return err
	}

	e := api.NewRouter(api.Deps{
		Auth:            authService,
		Sessions:        tracker,
		Users:           userService,
		Audit:           auditService,
		Hub:             hub,
		Checks:          be.checks,
		JWTSecret:       cfg.JWTSecret,
		LockoutDuration: guard.Duration(),
		Log:             logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-serverErr:
		if runErr != nil {
			log.Error().Err(runErr).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	<-monitor.Stop().Done()
	stopWorkers()
	dispatcher.Wait()

	log.Info().Msg("server exited cleanly")
	return runErr
}
