package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected client
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	opts, err := redis.ParseURL("redis://" + host + ":" + port.Port())
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisStore_UpdateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := NewRedisStore(setupRedis(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	counters, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, domain.LimitCounters{}, *counters)

	err = store.Update(ctx, "acc", func(c *domain.LimitCounters) bool {
		c.FiveMin = domain.WindowCounter{Count: 3, Start: now}
		return true
	})
	require.NoError(t, err)

	counters, err = store.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, 3, counters.FiveMin.Count)
	assert.True(t, now.Equal(counters.FiveMin.Start))

	// not persisted
	err = store.Update(ctx, "acc", func(c *domain.LimitCounters) bool {
		c.FiveMin.Count = 99
		return false
	})
	require.NoError(t, err)

	counters, err = store.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, 3, counters.FiveMin.Count)

	require.NoError(t, store.Reset(ctx, "acc"))
	counters, err = store.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, 0, counters.FiveMin.Count)
}

func TestRedisStore_ConcurrentBurst(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := NewRedisStore(setupRedis(t), WithKeyPrefix("test:counters:"))
	limiter := New(store, nil)
	account := &domain.Account{ID: "burst", Type: domain.AccountTypeStandard}

	limiter.windows = []Window{{Name: domain.WindowOneDay, Duration: 24 * time.Hour, Limit: 100}}
	runBurst(t, limiter, account)

	counters, err := store.Get(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, burstSize, counters.OneDay.Count)
}
