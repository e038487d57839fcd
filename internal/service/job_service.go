package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/repository"
)

// Job repository port (implementations: postgresql.JobRepository, memory.JobRepository).
// Every write other than Create goes through CompareAndSwap, which only succeeds while the
// stored version still equals expectedVersion.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) (*entity.Job, error)
	Get(ctx context.Context, id string) (*entity.Job, error)
	// List returns matching jobs in creation order, starting after token. The returned
	// token is empty on the last page.
	List(ctx context.Context, filter entity.JobFilter, token string, pageSize int) ([]*entity.Job, string, error)
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, job *entity.Job) (*entity.Job, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidJob        = errors.New("invalid job")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// maxCASAttempts bounds read-modify-write retries for operator calls.
const maxCASAttempts = 3

type JobService struct {
	repo   JobRepository
	paging Paging
}

func NewJobService(repo JobRepository, paging Paging) *JobService {
	return &JobService{repo: repo, paging: paging}
}

type CreateJobRequest struct {
	ID                   string
	JobConfigurationType string
	JobConfiguration     json.RawMessage
	Demands              map[string]string
}

type UpdateJobRequest struct {
	JobConfigurationType string
	JobConfiguration     json.RawMessage
	// Demands replaces the stored demands when non-nil.
	Demands map[string]string
}

func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (*entity.Job, error) {
	if req.JobConfigurationType == "" {
		return nil, fmt.Errorf("%w: jobConfigurationType is required", ErrInvalidJob)
	}
	cfg, err := entity.Canonicalize(req.JobConfiguration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	hash, err := entity.ComputeJobHash(req.JobConfigurationType, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	job, err := s.repo.Create(ctx, &entity.Job{
		ID:                   id,
		JobConfigurationType: req.JobConfigurationType,
		JobConfiguration:     cfg,
		JobHash:              hash,
		Demands:              req.Demands,
		Status:               entity.JobQueued,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[jobs] job_id=%s type=%s status=%s created", job.ID, job.JobConfigurationType, job.Status)
	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, id string) (*entity.Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *JobService) ListJobs(ctx context.Context, token string, pageSize int) ([]*entity.Job, string, error) {
	return s.repo.List(ctx, entity.JobFilter{}, token, s.paging.Clamp(pageSize))
}

func (s *JobService) QueryJobs(ctx context.Context, filter entity.JobFilter, token string, pageSize int) ([]*entity.Job, string, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, "", fmt.Errorf("%w: unknown status %q", ErrInvalidJob, st)
		}
	}
	return s.repo.List(ctx, filter, token, s.paging.Clamp(pageSize))
}

// UpdateJobConfiguration replaces the configuration and recomputes its hash. Workers running
// the job notice the new hash on their next heartbeat.
func (s *JobService) UpdateJobConfiguration(ctx context.Context, id string, req UpdateJobRequest) (*entity.Job, error) {
	if req.JobConfigurationType == "" {
		return nil, fmt.Errorf("%w: jobConfigurationType is required", ErrInvalidJob)
	}
	cfg, err := entity.Canonicalize(req.JobConfiguration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	hash, err := entity.ComputeJobHash(req.JobConfigurationType, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	return s.mutate(ctx, id, func(j *entity.Job) (bool, error) {
		if j.JobHash == hash && req.Demands == nil {
			return false, nil
		}
		j.JobConfigurationType = req.JobConfigurationType
		j.JobConfiguration = cfg
		j.JobHash = hash
		if req.Demands != nil {
			j.Demands = req.Demands
		}
		return true, nil
	})
}

// CancelJob moves a Queued or Running job to Cancelled. Jobs in any other state are
// returned unchanged. The assignment is kept so the worker is told to cancel.
func (s *JobService) CancelJob(ctx context.Context, id string) (*entity.Job, error) {
	job, err := s.mutate(ctx, id, func(j *entity.Job) (bool, error) {
		if j.Status != entity.JobQueued && j.Status != entity.JobRunning {
			return false, nil
		}
		j.Status = entity.JobCancelled
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[jobs] job_id=%s status=%s cancel requested", job.ID, job.Status)
	return job, nil
}

// RestartJob requeues a Cancelled, Failed or Completed job and clears its assignment.
func (s *JobService) RestartJob(ctx context.Context, id string) (*entity.Job, error) {
	job, err := s.mutate(ctx, id, func(j *entity.Job) (bool, error) {
		if !j.Status.Terminal() {
			return false, fmt.Errorf("%w: cannot restart job in status %s", ErrInvalidTransition, j.Status)
		}
		j.Status = entity.JobQueued
		j.Unassign()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[jobs] job_id=%s status=%s restarted", job.ID, job.Status)
	return job, nil
}

func (s *JobService) DeleteJob(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("[jobs] job_id=%s deleted", id)
	return nil
}

// mutate applies fn to a fresh copy of the job and writes it back, re-reading the record
// when a concurrent writer got there first. fn returns false to leave the job untouched.
func (s *JobService) mutate(ctx context.Context, id string, fn func(j *entity.Job) (bool, error)) (*entity.Job, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		changed, err := fn(next)
		if err != nil {
			return nil, err
		}
		if !changed {
			return cur, nil
		}
		stored, err := s.repo.CompareAndSwap(ctx, id, cur.Version, next)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		return stored, err
	}
	return nil, fmt.Errorf("job %s: %w", id, repository.ErrVersionConflict)
}
