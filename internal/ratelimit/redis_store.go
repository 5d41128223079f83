package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultRedisMaxRetries = 50

// RedisStore keeps counters in Redis, one JSON value per account.
// Updates use WATCH/MULTI so concurrent writers of the same key retry instead of losing updates.
type RedisStore struct {
	rdb        *redis.Client
	prefix     string
	maxRetries int
}

// RedisStoreOption configures a RedisStore
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the key prefix
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// WithMaxRetries sets how often a conflicting transaction is retried
func WithMaxRetries(n int) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewRedisStore creates a new Redis counter store
func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:        rdb,
		prefix:     "ratelimit:counters",
		maxRetries: defaultRedisMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(accountID string) string {
	return s.prefix + ":" + accountID
}

// Update implements CounterStore
func (s *RedisStore) Update(ctx context.Context, accountID string, fn func(c *domain.LimitCounters) bool) error {
	key := s.key(accountID)

	txf := func(tx *redis.Tx) error {
		current, err := readCounters(ctx, tx, key)
		if err != nil {
			return err
		}

		if !fn(current) {
			return nil
		}

		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to marshal counters: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to update counters: %w", err)
	}

	return fmt.Errorf("failed to update counters after %d attempts: %w", s.maxRetries, redis.TxFailedErr)
}

// Get implements CounterStore
func (s *RedisStore) Get(ctx context.Context, accountID string) (*domain.LimitCounters, error) {
	return readCounters(ctx, s.rdb, s.key(accountID))
}

// Reset removes the counters of an account
func (s *RedisStore) Reset(ctx context.Context, accountID string) error {
	return s.rdb.Del(ctx, s.key(accountID)).Err()
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readCounters(ctx context.Context, c stringGetter, key string) (*domain.LimitCounters, error) {
	counters := &domain.LimitCounters{}

	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return counters, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	if err := json.Unmarshal(data, counters); err != nil {
		return nil, fmt.Errorf("failed to parse counters: %w", err)
	}

	return counters, nil
}
