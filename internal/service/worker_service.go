package service

import (
	"context"
	"errors"
	"log"
	"time"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/repository"
)

// Worker repository port (implementations: postgresql.WorkerRepository, memory.WorkerRepository).
type WorkerRepository interface {
	Upsert(ctx context.Context, w *entity.Worker) (*entity.Worker, error)
	Get(ctx context.Context, id string) (*entity.Worker, error)
	List(ctx context.Context, token string, pageSize int) ([]*entity.Worker, string, error)
	Delete(ctx context.Context, id string) error
}

type WorkerService struct {
	repo   WorkerRepository
	paging Paging
}

func NewWorkerService(repo WorkerRepository, paging Paging) *WorkerService {
	return &WorkerService{repo: repo, paging: paging}
}

func (s *WorkerService) UpsertWorker(ctx context.Context, w *entity.Worker) (*entity.Worker, error) {
	if w.Status == "" {
		w.Status = entity.WorkerRunning
	}
	return s.repo.Upsert(ctx, w)
}

// Touch refreshes a worker from its heartbeat, registering it on first contact.
// Stored capabilities survive a heartbeat that does not carry any.
func (s *WorkerService) Touch(ctx context.Context, hb entity.WorkerHeartbeat, at time.Time) (*entity.Worker, error) {
	w := &entity.Worker{
		WorkerID:     hb.WorkerID,
		AgentID:      hb.AgentID,
		Capabilities: hb.Capabilities,
		Status:       hb.Status,
		LastSeen:     at.UTC(),
	}
	if w.Capabilities == nil {
		cur, err := s.repo.Get(ctx, hb.WorkerID)
		switch {
		case err == nil:
			w.Capabilities = cur.Capabilities
			if w.AgentID == "" {
				w.AgentID = cur.AgentID
			}
		case errors.Is(err, repository.ErrNotFound):
			log.Printf("[workers] worker_id=%s agent_id=%s registered", hb.WorkerID, hb.AgentID)
		default:
			return nil, err
		}
	}
	return s.UpsertWorker(ctx, w)
}

func (s *WorkerService) GetWorker(ctx context.Context, id string) (*entity.Worker, error) {
	return s.repo.Get(ctx, id)
}

func (s *WorkerService) ListWorkers(ctx context.Context, token string, pageSize int) ([]*entity.Worker, string, error) {
	return s.repo.List(ctx, token, s.paging.Clamp(pageSize))
}

func (s *WorkerService) DeleteWorker(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("[workers] worker_id=%s deleted", id)
	return nil
}
