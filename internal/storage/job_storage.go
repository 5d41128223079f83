package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// JobStorage handles all database operations for analysis jobs
type JobStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *sqlx.DB, logger *slog.Logger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// CreateJob inserts a new job record
func (s *JobStorage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			id, type, status, input, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Type,
		job.Status,
		pq.StringArray(job.Inputs),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID retrieves a job from the database by its ID
func (s *JobStorage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT id, type, status, input, output, error_message, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	var row jobRow
	err := s.db.GetContext(ctx, &row, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

// UpdateJobStatus overwrites the job status together with its output and error.
// Output is only stored for Finished and the error only for Error, so entering
// In progress again on redelivery clears any earlier result.
func (s *JobStorage) UpdateJobStatus(ctx context.Context, jobID, status string, output []domain.Issue, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1::text,
			output = $2::jsonb,
			error_message = $3,
			started_at = CASE
				WHEN $1::text = $4::text THEN NOW()
				ELSE started_at
			END,
			completed_at = CASE
				WHEN $1::text IN ($5::text, $6::text) THEN NOW()
				ELSE NULL
			END,
			updated_at = $7
		WHERE id = $8
	`

	var outputParam any
	if status == domain.JobStatusFinished {
		if output == nil {
			output = []domain.Issue{}
		}
		data, err := json.Marshal(output)
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		outputParam = string(data)
	}

	var errorParam sql.NullString
	if status == domain.JobStatusError {
		errorParam = sql.NullString{String: errorMsg, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query,
		status,
		outputParam,
		errorParam,
		domain.JobStatusInProgress,
		domain.JobStatusFinished,
		domain.JobStatusError,
		time.Now().UTC(),
		jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	return nil
}
