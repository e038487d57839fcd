package memory

import (
	"context"
	"sort"
	"sync"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/repository"
)

type WorkerRepository struct {
	mu      sync.RWMutex
	workers map[string]*entity.Worker
}

func NewWorkerRepository() *WorkerRepository {
	return &WorkerRepository{workers: make(map[string]*entity.Worker)}
}

func (r *WorkerRepository) Upsert(ctx context.Context, w *entity.Worker) (*entity.Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneWorker(w)
	if cur, ok := r.workers[w.WorkerID]; ok {
		stored.Version = cur.Version + 1
	} else {
		stored.Version = 1
	}
	r.workers[w.WorkerID] = stored
	return cloneWorker(stored), nil
}

func (r *WorkerRepository) Get(ctx context.Context, id string) (*entity.Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneWorker(w), nil
}

func (r *WorkerRepository) List(ctx context.Context, token string, pageSize int) ([]*entity.Worker, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	after, err := repository.DecodeWorkerToken(token)
	if err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	all := make([]*entity.Worker, 0, len(r.workers))
	for id, w := range r.workers {
		if after == "" || id > after {
			all = append(all, cloneWorker(w))
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(a, b int) bool { return all[a].WorkerID < all[b].WorkerID })

	if pageSize <= 0 || len(all) <= pageSize {
		return all, "", nil
	}
	page := all[:pageSize]
	return page, repository.EncodeWorkerToken(page[len(page)-1].WorkerID), nil
}

func (r *WorkerRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.workers, id)
	return nil
}

func cloneWorker(w *entity.Worker) *entity.Worker {
	c := *w
	if w.Capabilities != nil {
		c.Capabilities = make(map[string]string, len(w.Capabilities))
		for k, v := range w.Capabilities {
			c.Capabilities[k] = v
		}
	}
	return &c
}
