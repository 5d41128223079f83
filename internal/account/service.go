package account

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store persists accounts
type Store interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetAccountsByKeyPrefix(ctx context.Context, prefix string) ([]*domain.Account, error)
	UpdateAccountType(ctx context.Context, id, accountType string) error
}

// CounterStore reads and clears rate limit counters
type CounterStore interface {
	Get(ctx context.Context, accountID string) (*domain.LimitCounters, error)
	Reset(ctx context.Context, accountID string) error
}

// Service manages accounts and resolves API keys
type Service struct {
	store    Store
	counters CounterStore
	logger   *slog.Logger
	cost     int
}

// NewService creates a new Service. counters may be nil when limits are not managed.
func NewService(store Store, counters CounterStore, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		counters: counters,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
	}
}

// Create registers an account and returns it with its raw API key.
// The raw key is not stored and cannot be recovered later.
func (s *Service) Create(ctx context.Context, email string, unlimited bool) (*domain.Account, string, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, "", domain.NewValidationError("email", "must be a valid email address")
	}

	raw, prefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash API key: %w", err)
	}

	accountType := domain.AccountTypeStandard
	if unlimited {
		accountType = domain.AccountTypeUnlimited
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Type:         accountType,
		APIKeyPrefix: prefix,
		APIKeyHash:   string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, "", err
	}

	s.logger.Info("Account created",
		slog.String("account_id", account.ID),
		slog.String("type", account.Type),
	)

	return account, raw, nil
}

// Authenticate resolves a raw API key to its account
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*domain.Account, error) {
	prefix, ok := KeyPrefix(rawKey)
	if !ok {
		return nil, domain.ErrInvalidAPIKey
	}

	candidates, err := s.store.GetAccountsByKeyPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}

	for _, account := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(account.APIKeyHash), []byte(rawKey)) == nil {
			return account, nil
		}
	}

	return nil, domain.ErrInvalidAPIKey
}

// SetType switches an account between standard and unlimited
func (s *Service) SetType(ctx context.Context, email, accountType string) error {
	if accountType != domain.AccountTypeStandard && accountType != domain.AccountTypeUnlimited {
		return domain.NewValidationError("type", "must be standard or unlimited")
	}

	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.store.UpdateAccountType(ctx, account.ID, accountType); err != nil {
		return err
	}

	s.logger.Info("Account type updated",
		slog.String("account_id", account.ID),
		slog.String("type", accountType),
	)
	return nil
}

// Limits returns the current counters of an account
func (s *Service) Limits(ctx context.Context, email string) (*domain.LimitCounters, error) {
	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if s.counters == nil {
		return &account.Counters, nil
	}
	return s.counters.Get(ctx, account.ID)
}

// ResetLimits zeroes the counters of an account
func (s *Service) ResetLimits(ctx context.Context, email string) error {
	if s.counters == nil {
		return fmt.Errorf("no counter store configured")
	}

	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.counters.Reset(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to reset limits: %w", err)
	}

	s.logger.Info("Account limits reset", slog.String("account_id", account.ID))
	return nil
}
