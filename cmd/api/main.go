package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventmarket/internal/api"
	"eventmarket/internal/client"
	"eventmarket/internal/config"
	"eventmarket/internal/database"
	"eventmarket/internal/domain"
	"eventmarket/internal/events"
	"eventmarket/internal/logging"
	"eventmarket/internal/metrics"
	"eventmarket/internal/repository"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	metrics.Register()

	db, err := database.Open(cfg.Database, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}

	eventBus := events.NewEventBus()
	subscribeEvents(eventBus, &logger)

	c := client.New(db, cfg.Client, eventBus, &logger)
	defer c.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, checks, redisClient := initLimitStore(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	backup := database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup"))
	go backup.Start(ctx)

	dispatcher := api.NewDispatcher(c, &logger)

	grpcServer, err := api.NewGRPCServer(&cfg.API, dispatcher, store, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, dispatcher, store, checks, &logger)
	httpServer.MountMarketplace(api.NewMarketplace(c, eventBus, cfg.Bookings.MaxAdvanceDays, &logger))

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initLimitStore counts rate-limit windows in Redis when it is reachable and in
// memory otherwise. The memory store is swept until ctx ends.
func initLimitStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.LimitStore, map[string]domain.HealthChecker, *redis.Client) {
	memory := repository.NewMemoryLimitStore()
	go sweep(ctx, memory)

	checks := map[string]domain.HealthChecker{}
	if cfg.Redis.Address == "" {
		return memory, checks, nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with memory limits")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	store := repository.NewFailoverLimitStore(repository.NewRedisLimitStore(redisClient), memory, logger)
	checks["redis"] = store
	return store, checks, redisClient
}

func sweep(ctx context.Context, store *repository.MemoryLimitStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}

func subscribeEvents(bus *events.EventBus, logger *zerolog.Logger) {
	l := logging.Component(logger, "events")
	record := func(event *events.Event) error {
		l.Debug().Str("type", event.Type).RawJSON("payload", event.Payload).Msg("record event")
		return nil
	}
	for _, t := range []string{events.EventRecordCreated, events.EventRecordUpdated, events.EventRecordDeleted, events.EventRecordsChanged} {
		bus.Subscribe(t, record)
	}

	marketplace := func(event *events.Event) error {
		l.Info().Str("type", event.Type).RawJSON("payload", event.Payload).Msg("marketplace event")
		return nil
	}
	for _, t := range []string{
		events.EventVendorOnboarded, events.EventReviewCreated, events.EventReviewDeleted,
		events.EventBookingCreated, events.EventBookingApproved, events.EventBookingCompleted, events.EventBookingPaid,
	} {
		bus.Subscribe(t, marketplace)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// startServers runs the enabled listeners until ctx ends or one of them
// fails, then drains both.
func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	failed := make(chan error, 2)
	if cfg.API.GRPC.Enabled {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				failed <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}
	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil {
				failed <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	logger.Info().
		Bool("grpc", cfg.API.GRPC.Enabled).
		Str("grpc_addr", grpcServer.Addr()).
		Bool("http", cfg.API.HTTP.Enabled).
		Int("http_port", cfg.API.HTTP.Port).
		Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-failed:
		logger.Error().Err(runErr).Msg("listener failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}
