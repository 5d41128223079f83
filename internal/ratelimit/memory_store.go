package ratelimit

import (
	"context"
	"sync"

	"github.com/cuongbtq/analysis-service/internal/domain"
)

// MemoryStore keeps counters in process memory. Only suitable for a single API instance.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*domain.LimitCounters
}

// NewMemoryStore creates a new in-memory counter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*domain.LimitCounters),
	}
}

// Update implements CounterStore
func (s *MemoryStore) Update(_ context.Context, accountID string, fn func(c *domain.LimitCounters) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := domain.LimitCounters{}
	if c, ok := s.counters[accountID]; ok {
		current = *c
	}

	if fn(&current) {
		s.counters[accountID] = &current
	}

	return nil
}

// Get implements CounterStore
func (s *MemoryStore) Get(_ context.Context, accountID string) (*domain.LimitCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[accountID]
	if !ok {
		return &domain.LimitCounters{}, nil
	}

	copied := *c
	return &copied, nil
}

// Set replaces the counters of an account
func (s *MemoryStore) Set(accountID string, c domain.LimitCounters) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[accountID] = &c
}

// Reset removes the counters of an account
func (s *MemoryStore) Reset(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, accountID)
	return nil
}
