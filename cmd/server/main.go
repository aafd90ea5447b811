package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eclairia/internal/core/ports"
	"eclairia/internal/core/services"
	httphandlers "eclairia/internal/handlers/http"
	"eclairia/internal/infrastructure/catalog"
	"eclairia/internal/infrastructure/events"
	"eclairia/internal/infrastructure/middleware"
	"eclairia/internal/infrastructure/monitoring"
	"eclairia/internal/infrastructure/probe"
	"eclairia/internal/infrastructure/repositories"
	"eclairia/pkg/config"
	"eclairia/pkg/distributed"
	"eclairia/pkg/logger"
	"eclairia/pkg/tracing"
	"eclairia/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	serviceName = "eclairia"
	version     = "1.0.0"

	runLockKey = "eclairia:lock:validation"
	runLockTTL = 30 * time.Second
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}
	if p := os.Getenv("ECLAIRIA_CONFIG"); p != "" {
		configPaths = append([]string{p}, configPaths...)
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()
	if err != nil {
		log.Warnw("using default configuration", "error", err)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: serviceName,
		Version:     version,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Repositories
	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	stationRepo := repoFactory.CreateStationRepository()

	stations, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		log.Fatalw("failed to load station catalog", "path", cfg.Catalog.Path, "error", err)
	}
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = repositories.Seed(seedCtx, stationRepo, stations)
	seedCancel()
	if err != nil {
		log.Fatalw("failed to seed station repository", "error", err)
	}
	log.Infow("station catalog loaded",
		"path", cfg.Catalog.Path,
		"stations", len(stations),
		"backend", repoFactory.Backend(),
	)

	// Monitoring
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := monitoring.NewPrometheusCollector(registry)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("redis", repoFactory.HealthCheck, 2*time.Second)
	healthChecker.AddRepositoryCheck(stationRepo, 2*time.Second)

	// Services
	validator, err := services.NewValidator(services.ValidatorOptions{
		MaxConcurrent: cfg.Validation.MaxConcurrent,
		RetryAttempts: cfg.Validation.RetryAttempts,
		Timeout:       cfg.Validation.Timeout,
		DispatchDelay: cfg.Validation.DispatchDelay,
		BackoffStep:   cfg.Validation.BackoffStep,
	}, collector, log.Named("validator"))
	if err != nil {
		log.Fatalw("invalid validation options", "error", err)
	}

	prober := probe.NewHTTPProber(&http.Client{}, probe.Config{
		Method:       cfg.Probe.Method,
		ProxyBaseURL: cfg.Probe.ProxyBaseURL,
		UserAgent:    cfg.Probe.UserAgent,
	})

	hub := events.NewHub(events.Config{
		PingInterval: cfg.Events.PingInterval,
		WriteTimeout: cfg.Events.WriteTimeout,
		BufferSize:   cfg.Events.BufferSize,
	}, log.Named("events"))

	var publisher ports.EventPublisher = hub
	relayCtx, relayCancel := context.WithCancel(context.Background())
	defer relayCancel()
	if client := repoFactory.RedisClient(); client != nil {
		bus := events.NewRedisBus(client, utils.NewInstanceID(), log.Named("relay"))
		publisher = events.Fanout{hub, bus}
		go func() {
			if err := bus.Subscribe(relayCtx, hub.Publish); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("event relay stopped", "error", err)
			}
		}()
	}

	stationService := services.NewStationService(stationRepo, validator, prober, publisher, log.Named("stations"))
	if client := repoFactory.RedisClient(); client != nil {
		stationService.SetRunGuard(distributed.NewLock(client, runLockKey, runLockTTL))
	}

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	ctxLogger := logger.NewContextLogger(zapLogger)

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.AccessLogMiddleware(ctxLogger, collector))
	router.Use(middleware.ErrorHandlerMiddleware(ctxLogger))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	httphandlers.NewHealthHandler(serviceName, version, healthChecker).SetupRoutes(router)
	httphandlers.NewStationHandler(stationService, hub).SetupRoutes(router)

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting Eclairia server", "address", cfg.Server.Address, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	relayCancel()
	// Subscribers hold hijacked connections that Shutdown does not wait for.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	stationService.Close()

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}

	log.Info("Eclairia server stopped")
}
