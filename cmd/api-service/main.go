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
	"time"

	"github.com/cuongbtq/analysis-service/internal/account"
	"github.com/cuongbtq/analysis-service/internal/analysis"
	"github.com/cuongbtq/analysis-service/internal/api/dto"
	"github.com/cuongbtq/analysis-service/internal/api/handler"
	"github.com/cuongbtq/analysis-service/internal/api/router"
	"github.com/cuongbtq/analysis-service/internal/config"
	"github.com/cuongbtq/analysis-service/internal/ratelimit"
	"github.com/cuongbtq/analysis-service/internal/storage"
	"github.com/cuongbtq/analysis-service/shared/logger"
	"github.com/cuongbtq/analysis-service/shared/postgresql"
	"github.com/cuongbtq/analysis-service/shared/rabbitmq"
	"github.com/cuongbtq/analysis-service/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	serviceName            = "analysis-api-service"
	defaultShutdownTimeout = 30 * time.Second
)

// counterStore is what both the limiter and account management need from a backend
type counterStore interface {
	ratelimit.CounterStore
	account.CounterStore
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logging.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend),
		slog.String("charge_policy", cfg.RateLimit.ChargePolicy),
	)

	// Initialize PostgreSQL client
	dbClient, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	healthCheckers := map[string]handler.HealthChecker{"postgres": dbClient}

	// Initialize Redis client when configured
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.NewClient(cfg.Redis.ClientConfig(), appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()

		healthCheckers["redis"] = redisClient
		appLogger.Info("Redis connection established")
	}

	// Initialize RabbitMQ client
	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	healthCheckers["rabbitmq"] = rabbitClient
	appLogger.Info("RabbitMQ connection established")

	db := dbClient.GetDB()
	accountStore := storage.NewAccountStorage(db, appLogger.Logger)

	counters, err := initCounterStore(&cfg.RateLimit, accountStore, redisClient)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(counters, cfg.RateLimit.LimiterWindows(),
		ratelimit.WithLogger(appLogger.Component("ratelimit")),
		ratelimit.WithChargePolicy(cfg.RateLimit.LimiterChargePolicy()),
	)

	// The API only produces jobs; analysis runs in the worker service
	analysisService := analysis.NewService(
		storage.NewJobStorage(db, appLogger.Logger),
		rabbitClient,
		nil,
		appLogger.Component("analysis"),
	)
	accountService := account.NewService(accountStore, counters, appLogger.Component("account"))

	if err := dto.RegisterValidators(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var throttle *router.IPThrottle
	if cfg.Throttle.Enabled {
		throttle = router.NewIPThrottle(cfg.Throttle.RequestsPerSecond, cfg.Throttle.Burst, cfg.Throttle.IdleTTL)
		go throttle.Run(ctx)
	}

	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:         appLogger.Component("http"),
		ServiceName:    serviceName,
		Analysis:       analysisService,
		HealthCheckers: healthCheckers,
	}, router.Options{
		Authenticator: accountService,
		Limiter:       limiter,
		Throttle:      throttle,
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down server...")
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initCounterStore selects the rate limit counter backend
func initCounterStore(cfg *config.RateLimitConfig, accounts *storage.AccountStorage, redisClient *redis.Client) (counterStore, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return accounts, nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, errors.New("redis backend selected but redis is not configured")
		}
		var opts []ratelimit.RedisStoreOption
		if cfg.KeyPrefix != "" {
			opts = append(opts, ratelimit.WithKeyPrefix(cfg.KeyPrefix))
		}
		return ratelimit.NewRedisStore(redisClient.GetClient(), opts...), nil
	case config.BackendMemory:
		return ratelimit.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend: %q", cfg.Backend)
	}
}
