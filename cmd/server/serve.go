package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crm/internal/app"
	"crm/internal/cache"
	"crm/internal/config"
	"crm/internal/driverapi"
	"crm/internal/handler"
	"crm/internal/logger"
	"crm/internal/prefetch"
	internalRedis "crm/internal/redis"
	"crm/internal/repository/postgres"
	"crm/internal/service"
	"crm/internal/workflow"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cfg, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func serve(cfg *config.Config, migrate bool) error {
	log := logger.New(cfg.Environment)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize New Relic")
		} else {
			log.Info().Str("app", cfg.NewRelic.AppName).Msg("New Relic enabled")
		}
	}

	if migrate {
		if err := app.Migrate(cfg.Database.URL(), false, log); err != nil {
			return err
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info().Msg("connected to Redis")

	server, registry := wireServer(db, redisClient, nrApp, cfg, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		registry.Close()
		return err
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	err = server.Shutdown(shutdownCtx)
	registry.Close()
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	if err != nil {
		return err
	}

	log.Info().Msg("server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server together with
// the session registry, which owns background prefetch goroutines.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log zerolog.Logger) (*http.Server, *workflow.Registry) {
	// Driver cache, shared by every operator; keys are workspace scoped.
	var snapshots cache.SnapshotStore = internalRedis.NewSnapshotStore(redisClient)
	if cfg.Cache.SnapshotFile != "" {
		snapshots = cache.NewFileSnapshotStore(cfg.Cache.SnapshotFile)
	}
	driverCache := cache.New(
		cache.WithCapacity(cfg.Cache.Capacity),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithSnapshotStore(snapshots),
		cache.WithLogger(log.With().Str("component", "driver_cache").Logger()),
	)

	// Initialize Redis stores.
	counterStore := internalRedis.NewCounterStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient)

	// Initialize repositories.
	callLogRepo := postgres.NewCallLogRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	driverRepo := postgres.NewDriverRepository(db)

	// Remote driver API.
	api := driverapi.NewClient(cfg.DriverAPI.BaseURL, cfg.DriverAPI.Timeout, nrApp,
		driverapi.WithLogger(log.With().Str("component", "driver_api").Logger()))
	loader := prefetch.NewLoader(driverCache, api, log)

	// Operator sessions.
	registry := workflow.NewRegistry(workflow.Deps{
		Loader:   loader,
		API:      api,
		CallLogs: callLogRepo,
		Counters: counterStore,
		Locks:    lockStore,
		Prefetch: prefetch.Config{
			InitialBatch:     cfg.Prefetch.InitialBatch,
			TopUpBatch:       cfg.Prefetch.TopUpBatch,
			LowWaterMark:     cfg.Prefetch.LowWaterMark,
			PriorityCount:    cfg.Prefetch.PriorityCount,
			AvgTimePerDriver: cfg.Prefetch.AvgTimePerDriver,
		},
		Location: cfg.Stats.Location(),
		Log:      log,
	})

	// Initialize services.
	dashboardService := service.NewDashboardService(orderRepo, driverRepo, api, cfg.Stats.Location(), log)
	callLogService := service.NewCallLogService(callLogRepo)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		SessionHandler:   handler.NewSessionHandler(registry),
		CallLogHandler:   handler.NewCallLogHandler(callLogService),
		DashboardHandler: handler.NewDashboardHandler(dashboardService),
		Idempotency:      idempotencyStore,
		CORSOrigins:      cfg.Server.CORSOrigins,
		NewRelicApp:      nrApp,
		Log:              log,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, registry
}
