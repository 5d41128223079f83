package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const accountColumns = `
	id, email, email_lowered, type, api_key_prefix, api_key_hash,
	limit_counters, created_at, updated_at
`

// AccountStorage handles account records and their rate limit counters.
// It doubles as the Postgres counter store of the rate limiter.
type AccountStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewAccountStorage creates a new AccountStorage instance
func NewAccountStorage(db *sqlx.DB, logger *slog.Logger) *AccountStorage {
	return &AccountStorage{
		db:     db,
		logger: logger,
	}
}

// CreateAccount inserts a new account
func (s *AccountStorage) CreateAccount(ctx context.Context, account *domain.Account) error {
	counters, err := json.Marshal(account.Counters)
	if err != nil {
		return fmt.Errorf("failed to marshal limit counters: %w", err)
	}

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		domain.NormalizeEmail(account.Email),
		account.Type,
		account.APIKeyPrefix,
		account.APIKeyHash,
		string(counters),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccountByID retrieves an account by its ID
func (s *AccountStorage) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetAccountByEmail retrieves an account by its case-insensitive email
func (s *AccountStorage) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email_lowered = $1`, domain.NormalizeEmail(email))
}

// GetAccountsByKeyPrefix lists the accounts whose API key starts with prefix
func (s *AccountStorage) GetAccountsByKeyPrefix(ctx context.Context, prefix string) ([]*domain.Account, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+accountColumns+` FROM accounts WHERE api_key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts by key prefix: %w", err)
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		account, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// UpdateAccountType switches an account between standard and unlimited
func (s *AccountStorage) UpdateAccountType(ctx context.Context, id, accountType string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET type = $1, updated_at = NOW() WHERE id = $2`, accountType, id)
	if err != nil {
		return fmt.Errorf("failed to update account type: %w", err)
	}
	return requireOneRow(result, domain.ErrAccountNotFound)
}

// SetLimitCounters overwrites the counters of an account
func (s *AccountStorage) SetLimitCounters(ctx context.Context, id string, counters domain.LimitCounters) error {
	data, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("failed to marshal limit counters: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET limit_counters = $1::jsonb, updated_at = NOW() WHERE id = $2`, string(data), id)
	if err != nil {
		return fmt.Errorf("failed to set limit counters: %w", err)
	}
	return requireOneRow(result, domain.ErrAccountNotFound)
}

// Reset zeroes the counters of an account
func (s *AccountStorage) Reset(ctx context.Context, accountID string) error {
	return s.SetLimitCounters(ctx, accountID, domain.LimitCounters{})
}

// Update runs fn against the account's counters while holding the row lock.
// Concurrent updates of the same account queue up on the lock in Postgres.
func (s *AccountStorage) Update(ctx context.Context, accountID string, fn func(c *domain.LimitCounters) bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.GetContext(ctx, &raw, `SELECT limit_counters FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("failed to lock limit counters: %w", err)
	}

	var counters domain.LimitCounters
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &counters); err != nil {
			return fmt.Errorf("failed to parse limit counters: %w", err)
		}
	}

	if !fn(&counters) {
		return tx.Commit()
	}

	data, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("failed to marshal limit counters: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET limit_counters = $1::jsonb, updated_at = NOW() WHERE id = $2`,
		string(data), accountID,
	); err != nil {
		return fmt.Errorf("failed to write limit counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit limit counters: %w", err)
	}

	return nil
}

// Get returns the counters of an account
func (s *AccountStorage) Get(ctx context.Context, accountID string) (*domain.LimitCounters, error) {
	account, err := s.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &account.Counters, nil
}

func (s *AccountStorage) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var row accountRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return row.toDomain()
}

func requireOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
