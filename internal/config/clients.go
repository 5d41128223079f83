package config

import (
	"time"

	"github.com/cuongbtq/analysis-service/internal/analyzer"
	"github.com/cuongbtq/analysis-service/internal/ratelimit"
	"github.com/cuongbtq/analysis-service/shared/logger"
	"github.com/cuongbtq/analysis-service/shared/postgresql"
	"github.com/cuongbtq/analysis-service/shared/rabbitmq"
	"github.com/cuongbtq/analysis-service/shared/redis"
)

// LoggerConfig converts the logging section for shared/logger
func (c *LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:        c.Level,
		Format:       c.Format,
		Output:       c.Output,
		EnableSource: c.EnableCaller,
		TimeFormat:   time.RFC3339,
	}
}

// ClientConfig converts the database section for shared/postgresql
func (c *DatabaseConfig) ClientConfig() *postgresql.Config {
	return &postgresql.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

// ClientConfig converts the rabbitmq section for shared/rabbitmq
func (c *RabbitMQConfig) ClientConfig() *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               c.Host,
		Port:               c.Port,
		User:               c.User,
		Password:           c.Password,
		VHost:              c.VHost,
		ExchangeName:       c.Exchange.Name,
		ExchangeType:       c.Exchange.Type,
		ExchangeDurable:    c.Exchange.Durable,
		ExchangeAutoDelete: c.Exchange.AutoDelete,
		QueueName:          c.Queue.Name,
		QueueDurable:       c.Queue.Durable,
		QueueAutoDelete:    c.Queue.AutoDelete,
		QueueExclusive:     c.Queue.Exclusive,
		RoutingKey:         c.RoutingKey,
		PrefetchCount:      c.Consumer.PrefetchCount,
		RetryAttempts:      c.Connection.RetryAttempts,
		RetryInterval:      c.Connection.RetryInterval,
		Heartbeat:          c.Connection.Heartbeat,
		ConnectionTimeout:  c.Connection.ConnectionTimeout,
		PublishRetries:     c.Publish.RetryAttempts,
		PublishRetryDelay:  c.Publish.RetryInterval,
		PublishBackoffMult: c.Publish.BackoffMultiplier,
	}
}

// ClientConfig converts the redis section for shared/redis
func (c *RedisConfig) ClientConfig() *redis.Config {
	return &redis.Config{
		URL:      c.URL,
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	}
}

// LimiterWindows returns the configured windows, or the defaults when none are set
func (c *RateLimitConfig) LimiterWindows() []ratelimit.Window {
	if len(c.Windows) == 0 {
		return ratelimit.DefaultWindows()
	}

	windows := make([]ratelimit.Window, 0, len(c.Windows))
	for _, w := range c.Windows {
		windows = append(windows, ratelimit.Window{Name: w.Name, Duration: w.Duration, Limit: w.Limit})
	}
	return windows
}

// LimiterChargePolicy maps the configured policy name
func (c *RateLimitConfig) LimiterChargePolicy() ratelimit.ChargePolicy {
	if c.ChargePolicy == ChargeAllOrNothing {
		return ratelimit.ChargeAllOrNothing
	}
	return ratelimit.ChargePartial
}

// AnalyzerSettings converts the analyzer section
func (c *AnalyzerConfig) AnalyzerSettings() analyzer.Config {
	return analyzer.Config{Command: c.Command, Args: c.Args}
}
