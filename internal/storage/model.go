package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/lib/pq"
)

type jobRow struct {
	ID           string         `db:"id"`
	Type         string         `db:"type"`
	Status       string         `db:"status"`
	Input        pq.StringArray `db:"input"`
	Output       []byte         `db:"output"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *jobRow) toDomain() (*domain.Job, error) {
	job := &domain.Job{
		ID:        r.ID,
		Type:      r.Type,
		Inputs:    []string(r.Input),
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if len(r.Output) > 0 {
		if err := json.Unmarshal(r.Output, &job.Output); err != nil {
			return nil, fmt.Errorf("failed to parse job output: %w", err)
		}
	}

	if r.ErrorMessage.Valid {
		job.Error = r.ErrorMessage.String
	}

	return job, nil
}

type accountRow struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	EmailLowered  string    `db:"email_lowered"`
	Type          string    `db:"type"`
	APIKeyPrefix  string    `db:"api_key_prefix"`
	APIKeyHash    string    `db:"api_key_hash"`
	LimitCounters []byte    `db:"limit_counters"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *accountRow) toDomain() (*domain.Account, error) {
	account := &domain.Account{
		ID:           r.ID,
		Email:        r.Email,
		Type:         r.Type,
		APIKeyPrefix: r.APIKeyPrefix,
		APIKeyHash:   r.APIKeyHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}

	if len(r.LimitCounters) > 0 {
		if err := json.Unmarshal(r.LimitCounters, &account.Counters); err != nil {
			return nil, fmt.Errorf("failed to parse limit counters: %w", err)
		}
	}

	return account, nil
}
