package ratelimit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cuongbtq/analysis-service/internal/domain"
)

// ChargePolicy decides what happens to windows already charged when a later window rejects
type ChargePolicy string

const (
	// ChargePartial keeps increments of windows evaluated before the violated one
	ChargePartial ChargePolicy = "partial"
	// ChargeAllOrNothing persists nothing when the request is rejected
	ChargeAllOrNothing ChargePolicy = "all_or_nothing"
)

// Window is a single fixed rate limit window
type Window struct {
	Name     string
	Duration time.Duration
	Limit    int
}

// DefaultWindows returns the stock five minute, one hour and one day windows
func DefaultWindows() []Window {
	return []Window{
		{Name: domain.WindowFiveMin, Duration: 5 * time.Minute, Limit: 10},
		{Name: domain.WindowOneHour, Duration: time.Hour, Limit: 30},
		{Name: domain.WindowOneDay, Duration: 24 * time.Hour, Limit: 100},
	}
}

// CounterStore persists limit counters with an atomic read-modify-write per account.
// fn receives the current counters and returns whether the mutated value must be written.
type CounterStore interface {
	Update(ctx context.Context, accountID string, fn func(c *domain.LimitCounters) bool) error
	Get(ctx context.Context, accountID string) (*domain.LimitCounters, error)
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed    bool
	Window     string
	RetryAfter time.Duration
}

// Err converts a rejected decision into a typed error, nil when allowed
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &domain.RateLimitError{Window: d.Window, RetryAfter: d.RetryAfter}
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithChargePolicy sets the charge policy
func WithChargePolicy(policy ChargePolicy) Option {
	return func(l *Limiter) {
		if policy != "" {
			l.policy = policy
		}
	}
}

// Limiter admits or rejects requests for an account
type Limiter struct {
	store   CounterStore
	windows []Window
	policy  ChargePolicy
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a new Limiter. Empty windows fall back to DefaultWindows.
func New(store CounterStore, windows []Window, opts ...Option) *Limiter {
	if len(windows) == 0 {
		windows = DefaultWindows()
	}

	l := &Limiter{
		store:   store,
		windows: windows,
		policy:  ChargePartial,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Admit charges the account's windows and decides whether the request may proceed.
// Unlimited accounts are always admitted and their counters are never touched.
func (l *Limiter) Admit(ctx context.Context, account *domain.Account) (Decision, error) {
	if account.Unlimited() {
		return Decision{Allowed: true}, nil
	}

	var decision Decision
	err := l.store.Update(ctx, account.ID, func(c *domain.LimitCounters) bool {
		var persist bool
		decision, persist = evaluate(c, l.windows, l.now(), l.policy)
		return persist
	})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to update limit counters: %w", err)
	}

	if !decision.Allowed {
		l.logger.Warn("Request rate limited",
			slog.String("account_id", account.ID),
			slog.String("window", decision.Window),
			slog.Duration("retry_after", decision.RetryAfter),
		)
	}

	return decision, nil
}

// evaluate applies one request to the counters in place
func evaluate(c *domain.LimitCounters, windows []Window, now time.Time, policy ChargePolicy) (Decision, bool) {
	snapshot := *c

	for _, w := range windows {
		wc := c.Window(w.Name)
		if wc == nil {
			continue
		}

		if wc.Start.IsZero() || now.Sub(wc.Start) >= w.Duration {
			wc.Count = 1
			wc.Start = now
			continue
		}

		if wc.Count < w.Limit {
			wc.Count++
			continue
		}

		decision := Decision{
			Allowed:    false,
			Window:     w.Name,
			RetryAfter: wc.Start.Add(w.Duration).Sub(now),
		}

		if policy == ChargeAllOrNothing {
			*c = snapshot
			return decision, false
		}

		// windows charged before this one stay charged
		return decision, true
	}

	return Decision{Allowed: true}, true
}
