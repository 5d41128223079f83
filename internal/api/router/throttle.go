package router

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cuongbtq/analysis-service/internal/api/dto"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPThrottle keeps one token bucket per client IP and forgets idle clients
type IPThrottle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewIPThrottle creates a new IPThrottle
func NewIPThrottle(rps float64, burst int, idleTTL time.Duration) *IPThrottle {
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	return &IPThrottle{
		entries: make(map[string]*throttleEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
	}
}

// Allow reports whether the client may make a request now
func (t *IPThrottle) Allow(ip string) bool {
	now := time.Now()

	t.mu.Lock()
	ent, ok := t.entries[ip]
	if !ok {
		ent = &throttleEntry{lim: rate.NewLimiter(t.rps, t.burst)}
		t.entries[ip] = ent
	}
	ent.lastSeen = now
	t.mu.Unlock()

	return ent.lim.AllowN(now, 1)
}

// Cleanup drops clients idle for longer than the TTL
func (t *IPThrottle) Cleanup() {
	cutoff := time.Now().Add(-t.idleTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	for ip, ent := range t.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(t.entries, ip)
		}
	}
}

// Run calls Cleanup periodically until ctx is canceled
func (t *IPThrottle) Run(ctx context.Context) {
	ticker := time.NewTicker(t.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Cleanup()
		}
	}
}

// Middleware rejects bursts from a single IP before any authentication work is done
func (t *IPThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Status:  http.StatusTooManyRequests,
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}
