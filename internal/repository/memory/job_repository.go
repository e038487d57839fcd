// Package memory keeps jobs and workers in process memory. It honours the same versioning
// rules as the Postgres repositories and backs the orchestrator when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/repository"
)

type JobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*entity.Job
	now  func() time.Time
}

func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs: make(map[string]*entity.Job),
		now:  time.Now,
	}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) (*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return nil, repository.ErrAlreadyExists
	}
	stored := job.Clone()
	now := r.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	stored.Version = 1
	r.jobs[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return j.Clone(), nil
}

func (r *JobRepository) List(ctx context.Context, filter entity.JobFilter, token string, pageSize int) ([]*entity.Job, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	cursor, err := repository.DecodeJobToken(token)
	if err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	all := make([]*entity.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if filter.Matches(j) && cursor.After(j) {
			all = append(all, j.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(a, b int) bool {
		if !all[a].CreatedAt.Equal(all[b].CreatedAt) {
			return all[a].CreatedAt.Before(all[b].CreatedAt)
		}
		return all[a].ID < all[b].ID
	})

	if pageSize <= 0 || len(all) <= pageSize {
		return all, "", nil
	}
	page := all[:pageSize]
	return page, repository.EncodeJobToken(page[len(page)-1]), nil
}

func (r *JobRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, job *entity.Job) (*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}
	next := job.Clone()
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.now().UTC()
	next.Version = cur.Version + 1
	r.jobs[id] = next
	return next.Clone(), nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}
