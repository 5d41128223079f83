package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/google/uuid"
)

// JobStore persists jobs
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	UpdateJobStatus(ctx context.Context, jobID, status string, output []domain.Issue, errorMsg string) error
}

// Publisher enqueues job messages
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Analyzer runs the external analysis tool over a job's inputs
type Analyzer interface {
	Analyze(ctx context.Context, inputs []string) ([]domain.Issue, error)
}

// Service drives a job from submission to its terminal status
type Service struct {
	store     JobStore
	publisher Publisher
	analyzer  Analyzer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new Service. The publisher may be nil for consumer-only use,
// and the analyzer may be nil for producer-only use.
func NewService(store JobStore, publisher Publisher, analyzer Analyzer, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		analyzer:  analyzer,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and persists a new Queued job, then enqueues its id.
// When enqueueing fails the job stays Queued and the error is returned.
func (s *Service) Submit(ctx context.Context, jobType string, inputs []string) (*domain.JobSummary, error) {
	if err := validateSubmission(jobType, inputs); err != nil {
		return nil, err
	}

	now := s.now()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Inputs:    inputs,
		Status:    domain.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	body, err := json.Marshal(domain.JobMessage{ID: job.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	if err := s.publisher.Publish(ctx, body, "application/json"); err != nil {
		s.logger.Error("Job persisted but not enqueued",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.Int("inputs", len(job.Inputs)),
	)

	return &domain.JobSummary{ID: job.ID, Status: job.Status}, nil
}

func validateSubmission(jobType string, inputs []string) error {
	if strings.TrimSpace(jobType) == "" {
		return domain.NewValidationError("type", "is required")
	}
	if len(inputs) == 0 {
		return domain.NewValidationError("inputs", "at least one input is required")
	}
	for i, in := range inputs {
		if in == "" {
			return domain.NewValidationError(fmt.Sprintf("inputs[%d]", i), "must not be empty")
		}
	}
	return nil
}

// GetStatus reports the job's status, and its error message when it failed
func (s *Service) GetStatus(ctx context.Context, jobID string) (*domain.StatusReport, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	report := &domain.StatusReport{ID: job.ID, Status: job.Status}
	if job.Status == domain.JobStatusError {
		report.Error = job.Error
	}
	return report, nil
}

// GetIssues returns the output of a Finished job
func (s *Service) GetIssues(ctx context.Context, jobID string) ([]domain.Issue, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.JobStatusFinished {
		return nil, domain.ErrJobNotReady
	}

	if job.Output == nil {
		return []domain.Issue{}, nil
	}
	return job.Output, nil
}

func (s *Service) getJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.NewValidationError("id", "must be a UUID")
	}
	return s.store.GetJobByID(ctx, jobID)
}

// errStartFailed is recorded when a job cannot enter In progress
const errStartFailed = "failed to start processing"

// Process runs a queued job to completion. Analyzer faults are recorded on the job;
// the returned error only reports store failures.
func (s *Service) Process(ctx context.Context, jobID string) error {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	if err := s.store.UpdateJobStatus(ctx, job.ID, domain.JobStatusInProgress, nil, ""); err != nil {
		s.logger.Error("Failed to mark job in progress",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		// the delivery is acked regardless, so leave a terminal state for pollers
		if markErr := s.store.UpdateJobStatus(ctx, job.ID, domain.JobStatusError, nil, errStartFailed); markErr != nil {
			s.logger.Error("Failed to mark job as error",
				slog.String("job_id", job.ID),
				slog.Any("error", markErr),
			)
		}
		return fmt.Errorf("failed to mark job %s in progress: %w", job.ID, err)
	}

	s.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
	)

	issues, err := s.execute(ctx, job)
	if err != nil {
		procErr := domain.NewProcessingError(job.ID, err)
		s.logger.Error("Job failed",
			slog.String("job_id", job.ID),
			slog.Any("error", procErr),
		)

		if updateErr := s.store.UpdateJobStatus(ctx, job.ID, domain.JobStatusError, nil, procErr.Error()); updateErr != nil {
			return fmt.Errorf("failed to mark job %s as error: %w", job.ID, updateErr)
		}
		return nil
	}

	if err := s.store.UpdateJobStatus(ctx, job.ID, domain.JobStatusFinished, issues, ""); err != nil {
		return fmt.Errorf("failed to mark job %s finished: %w", job.ID, err)
	}

	s.logger.Info("Job finished",
		slog.String("job_id", job.ID),
		slog.Int("issues", len(issues)),
	)

	return nil
}

// execute dispatches on job type and converts analyzer panics into errors
func (s *Service) execute(ctx context.Context, job *domain.Job) (issues []domain.Issue, err error) {
	if job.Type != domain.JobTypeBytecode {
		return nil, fmt.Errorf("not supported type: %s", job.Type)
	}

	if s.analyzer == nil {
		return nil, errors.New("no analyzer configured")
	}

	defer func() {
		if r := recover(); r != nil {
			issues = nil
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()

	issues, err = s.analyzer.Analyze(ctx, job.Inputs)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return issues, nil
}
