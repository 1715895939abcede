package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comfydeploy/engine/internal/api"
	"github.com/comfydeploy/engine/internal/api/handlers"
	"github.com/comfydeploy/engine/internal/billing"
	"github.com/comfydeploy/engine/internal/cache"
	"github.com/comfydeploy/engine/internal/repository"
	"github.com/comfydeploy/engine/internal/services"
	"github.com/comfydeploy/engine/internal/storage"
	"github.com/comfydeploy/engine/pkg/config"
	"github.com/comfydeploy/engine/pkg/database"
	"github.com/comfydeploy/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting deploy engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseURL, database.Options{
		Retries: cfg.DBConnectRetries,
		Delay:   cfg.DBConnectDelay,
		Verbose: cfg.AppEnv == "development",
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to access database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	var pages cache.PageCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer rdb.Close()
		pages = cache.NewRedis(rdb)
	} else {
		log.Info("REDIS_ADDR not set, using in-memory page cache")
		pages = cache.NewMemory()
	}

	workflowRepo := repository.NewWorkflowRepository(db)
	machineRepo := repository.NewMachineRepository(db)
	deployRepo := repository.NewDeploymentRepository(db)
	runRepo := repository.NewRunRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	auth := services.NewAuthService(apiKeyRepo, directoryRepo, []byte(cfg.SessionSecret), []byte(cfg.MachineTokenSecret))
	deploySvc := services.NewDeploymentService(workflowRepo, machineRepo, deployRepo, directoryRepo, auth, pages)
	registrySvc := services.NewRegistryService(
		workflowRepo,
		machineRepo,
		repository.NewCheckpointRepository(db),
		repository.NewModelRepository(db),
		apiKeyRepo,
		pages,
	)

	var (
		billingHandler *handlers.BillingHandler
		usage          services.UsageReporter
	)
	if cfg.StripeSecretKey != "" {
		bridge := billing.NewBridge(
			billing.NewStripe(cfg.StripeSecretKey),
			repository.NewBillingAccountRepository(db),
			cfg.StripePrices(),
			cfg.BillingReturnURL,
		)
		billingHandler = handlers.NewBillingHandler(bridge)
		usage = bridge
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, billing routes disabled")
	}

	runSvc := services.NewRunService(
		runRepo,
		workflowRepo,
		machineRepo,
		storage.NewLocator(cfg.SpacesEndpoint, cfg.SpacesBucket, cfg.SpacesEndpointCDN),
		usage,
	)

	router := api.NewRouter(api.Dependencies{
		Auth:               auth,
		MachineAuth:        auth,
		Pages:              pages,
		PageTTL:            cfg.PageCacheTTL,
		AllowedOrigins:     cfg.AllowedOrigins(),
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		HealthHandler:      handlers.NewHealthHandler(sqlDB),
		WorkflowsHandler:   handlers.NewWorkflowsHandler(registrySvc, runSvc),
		DeploymentsHandler: handlers.NewDeploymentsHandler(deploySvc),
		MachinesHandler:    handlers.NewMachinesHandler(registrySvc, deploySvc, cfg.TrustProxyHeaders),
		RunsHandler:        handlers.NewRunsHandler(runSvc),
		RegistryHandler:    handlers.NewRegistryHandler(registrySvc),
		BillingHandler:     billingHandler,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
