package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/fakestore-systems/fakestore-api/internal/analytics"
	"github.com/fakestore-systems/fakestore-api/internal/config"
	"github.com/fakestore-systems/fakestore-api/internal/eventbus"
	"github.com/fakestore-systems/fakestore-api/internal/handlers"
	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/queue"
	"github.com/fakestore-systems/fakestore-api/internal/ratelimit"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
	"github.com/fakestore-systems/fakestore-api/internal/server"
	"github.com/fakestore-systems/fakestore-api/internal/webhook"
	"github.com/fakestore-systems/fakestore-api/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(slog.String("service", "fakestore"))
	logging.SetDefault(logger)

	slog.Info("Starting fakestore service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Initialize repository based on config
	var repo repository.Repository
	if cfg.Database.Type == "postgres" {
		slog.Info("Connecting to PostgreSQL")
		pgRepo, err := repository.NewPostgresRepository(context.Background(), cfg.Database.URL)
		if err != nil {
			slog.Error("Failed to connect to PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pgRepo.Close()
		repo = pgRepo
		slog.Info("Connected to PostgreSQL")

		// Run database migrations
		slog.Info("Running database migrations")
		m, err := migrate.New(
			"file://migrations",
			cfg.Database.URL,
		)
		if err != nil {
			slog.Error("Failed to initialize migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			slog.Error("Failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}

		version, dirty, err := m.Version()
		if err != nil {
			slog.Warn("Could not get migration version", slog.String("error", err.Error()))
		} else {
			slog.Info("Database migration complete",
				slog.Uint64("version", uint64(version)),
				slog.Bool("dirty", dirty),
			)
		}
	} else {
		slog.Warn("Using in-memory repository (development only)")
		repo = repository.NewMemoryRepository()
	}

	// Initialize Redis for rate limiting and abuse scoring
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled || cfg.Abuse.Enabled {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("Invalid redis URL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			slog.Warn("Redis unavailable, disabling rate limiting and abuse scoring",
				slog.String("error", err.Error()))
			redisClient = nil
		}
	}

	rateLimiter := ratelimit.RateLimiter(&ratelimit.NoOpRateLimiter{})
	if cfg.RateLimit.Enabled && redisClient != nil {
		rateLimiter = ratelimit.NewRedisRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		slog.Info("Rate limiting enabled",
			slog.Int("requests", cfg.RateLimit.Requests),
			slog.String("window", cfg.RateLimit.Window.String()),
		)
	}

	var abuseGuard *ratelimit.AbuseGuard
	if cfg.Abuse.Enabled && redisClient != nil {
		abuseGuard = ratelimit.NewAbuseGuard(redisClient, cfg.Abuse.SoftThreshold, cfg.Abuse.HardThreshold, cfg.Abuse.SoftDelay)
		slog.Info("Abuse scoring enabled",
			slog.Int64("soft_threshold", cfg.Abuse.SoftThreshold),
			slog.Int64("hard_threshold", cfg.Abuse.HardThreshold),
		)
	}

	// Initialize the durable queue
	var q queue.Queue
	if cfg.Queue.Backend == "jetstream" {
		jsCfg := queue.DefaultJetStreamConfig(cfg.NATS.URL)
		jsCfg.MaxDeliver = cfg.Queue.MaxAttempts
		jsCfg.AckWait = cfg.Queue.AckWait
		jsQueue, err := queue.NewJetStreamQueue(context.Background(), jsCfg, logger)
		if err != nil {
			slog.Error("Failed to connect to NATS", slog.String("error", err.Error()))
			os.Exit(1)
		}
		q = jsQueue
		slog.Info("JetStream queue connected", slog.String("nats_url", cfg.NATS.URL))
	} else {
		slog.Warn("Using in-memory queue (development only)")
		q = queue.NewMemoryQueue(0, logger)
	}
	defer q.Close()

	// Event bus with a volatile in-process subscriber for request-scoped
	// logging; the durable path feeds the worker below.
	bus := eventbus.New(q, logger)
	bus.Subscribe(eventbus.OrderCreated, func(ctx context.Context, event eventbus.Event) error {
		logger.InfoContext(ctx, "order placed", "order_id", event.Payload["orderId"])
		return nil
	})

	// Webhook dispatcher, analytics and the queue worker
	dispatcher := webhook.NewDispatcher(repo, repo, cfg.Webhooks.DeliveryTimeout, logger)
	analyticsSvc := analytics.NewService(logger)
	wrk := worker.New(q, dispatcher, analyticsSvc, repo, logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		if err := wrk.Run(workerCtx, cfg.Queue.Concurrency); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Worker stopped", slog.String("error", err.Error()))
		}
	}()

	// Initialize HTTP handlers
	handler := handlers.New(repo, bus, q, logger)
	router := server.NewRouter(handler, repo, rateLimiter, abuseGuard, logger)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Fakestore service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}
	stopWorker()

	if redisClient != nil {
		rateLimiter.Close()
	}

	slog.Info("Server stopped gracefully")
}
