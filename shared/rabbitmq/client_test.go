package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		mult     float64
		attempt  int
		expected time.Duration
	}{
		{name: "first retry uses the base delay", base: 100 * time.Millisecond, mult: 2, attempt: 0, expected: 100 * time.Millisecond},
		{name: "doubles", base: 100 * time.Millisecond, mult: 2, attempt: 3, expected: 800 * time.Millisecond},
		{name: "custom multiplier", base: time.Second, mult: 1.5, attempt: 2, expected: 2250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, backoff(tt.base, tt.mult, tt.attempt))
		})
	}
}

func TestVHost(t *testing.T) {
	assert.Equal(t, "/", vhost(""))
	assert.Equal(t, "analysis", vhost("analysis"))
}

func TestClient_NotConnected(t *testing.T) {
	c := &Client{config: &Config{}}

	err := c.Publish(context.Background(), []byte(`{"id":"x"}`), "application/json")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.Consume("worker")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrNotConnected)
}
