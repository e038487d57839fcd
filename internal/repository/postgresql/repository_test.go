package postgresql

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/repository"
)

// Runs against a real database only when POSTGRES_TEST_DSN is set.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestJobRepository_Postgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	r := NewJobRepository(pool)

	typ := "test-" + uuid.NewString()
	id := uuid.NewString()
	created, err := r.Create(ctx, &entity.Job{
		ID:                   id,
		JobConfigurationType: typ,
		JobHash:              "h1",
		Demands:              map[string]string{"os": "linux"},
		Status:               entity.JobQueued,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { _ = r.Delete(context.Background(), id) })

	if _, err := r.Create(ctx, &entity.Job{ID: id, JobConfigurationType: typ, Status: entity.JobQueued}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	next := created.Clone()
	next.Assign("W1", time.Now())
	stored, err := r.CompareAndSwap(ctx, id, created.Version, next)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if stored.Version != created.Version+1 || !stored.AssignedTo("W1") || stored.Demands["os"] != "linux" {
		t.Fatalf("unexpected stored job %+v", stored)
	}

	if _, err := r.CompareAndSwap(ctx, id, created.Version, next); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if _, err := r.CompareAndSwap(ctx, uuid.NewString(), 1, next); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	jobs, _, err := r.List(ctx, entity.JobFilter{JobConfigurationType: typ, AssignedWorkerID: "W1"}, "", 10)
	if err != nil || len(jobs) != 1 || jobs[0].ID != id {
		t.Fatalf("expected the job back from List, got %v err=%v", jobs, err)
	}
}

func TestWorkerRepository_Postgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	r := NewWorkerRepository(pool)

	id := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = r.Delete(context.Background(), id) })

	w, err := r.Upsert(ctx, &entity.Worker{WorkerID: id, AgentID: "A1", Status: entity.WorkerRunning, LastSeen: time.Now()})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	w2, err := r.Upsert(ctx, &entity.Worker{WorkerID: id, AgentID: "A1", Status: entity.WorkerStopped, LastSeen: time.Now()})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if w2.Version != w.Version+1 || w2.Status != entity.WorkerStopped {
		t.Fatalf("expected last write to win, got %+v", w2)
	}

	if err := r.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, id); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
