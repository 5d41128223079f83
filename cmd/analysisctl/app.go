package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cuongbtq/analysis-service/internal/account"
	"github.com/cuongbtq/analysis-service/internal/config"
	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/cuongbtq/analysis-service/internal/ratelimit"
	"github.com/cuongbtq/analysis-service/internal/storage"
	"github.com/cuongbtq/analysis-service/shared/logger"
	"github.com/cuongbtq/analysis-service/shared/postgresql"
	"github.com/cuongbtq/analysis-service/shared/redis"
	"github.com/jmoiron/sqlx"
)

// accountManager is the account administration surface used by the CLI
type accountManager interface {
	Create(ctx context.Context, email string, unlimited bool) (*domain.Account, string, error)
	SetType(ctx context.Context, email, accountType string) error
	Limits(ctx context.Context, email string) (*domain.LimitCounters, error)
	ResetLimits(ctx context.Context, email string) error
}

// accountEnv is an opened account manager plus the windows it is measured against
type accountEnv struct {
	manager accountManager
	windows []ratelimit.Window
	close   func()
}

// app resolves configuration and opens backing services on demand
type app struct {
	configPath   string
	out          io.Writer
	openDB       func(ctx context.Context, a *app) (*sqlx.DB, func(), error)
	openAccounts func(ctx context.Context, a *app) (*accountEnv, error)
}

func newApp() *app {
	configPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/api-service/config.yaml"
	}

	return &app{
		configPath:   configPath,
		out:          os.Stdout,
		openDB:       openDB,
		openAccounts: openAccounts,
	}
}

func (a *app) loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.NewDefault(), nil
}

func openDB(_ context.Context, a *app) (*sqlx.DB, func(), error) {
	cfg, appLogger, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	dbClient, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return dbClient.GetDB(), func() { dbClient.Close() }, nil
}

func openAccounts(_ context.Context, a *app) (*accountEnv, error) {
	cfg, appLogger, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	dbClient, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	closers := []func(){func() { dbClient.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	accounts := storage.NewAccountStorage(dbClient.GetDB(), appLogger.Logger)

	var counters account.CounterStore
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		redisClient, err := redis.NewClient(cfg.Redis.ClientConfig(), appLogger.Logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		closers = append(closers, func() { redisClient.Close() })

		var opts []ratelimit.RedisStoreOption
		if cfg.RateLimit.KeyPrefix != "" {
			opts = append(opts, ratelimit.WithKeyPrefix(cfg.RateLimit.KeyPrefix))
		}
		counters = ratelimit.NewRedisStore(redisClient.GetClient(), opts...)
	case config.BackendMemory:
		// counters live inside the API process and cannot be reached from here
		counters = nil
	default:
		counters = accounts
	}

	return &accountEnv{
		manager: account.NewService(accounts, counters, appLogger.Logger),
		windows: cfg.RateLimit.LimiterWindows(),
		close:   closeAll,
	}, nil
}
