package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/repository"
)

func TestJobRepository_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepository()

	created, err := r.Create(ctx, &entity.Job{ID: "J1", Status: entity.JobQueued})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	next := created.Clone()
	next.Assign("W1", time.Now())
	stored, err := r.CompareAndSwap(ctx, "J1", 1, next)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if stored.Version != 2 || !stored.AssignedTo("W1") {
		t.Fatalf("unexpected stored job %+v", stored)
	}

	// a writer still holding version 1 loses
	other := created.Clone()
	other.Assign("W2", time.Now())
	if _, err := r.CompareAndSwap(ctx, "J1", 1, other); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if _, err := r.CompareAndSwap(ctx, "nope", 1, other); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, _ := r.Get(ctx, "J1")
	if !got.AssignedTo("W1") {
		t.Fatalf("losing write must not land, got %+v", got)
	}
}

func TestJobRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepository()
	if _, err := r.Create(ctx, &entity.Job{ID: "J1", Demands: map[string]string{"os": "linux"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	j, _ := r.Get(ctx, "J1")
	j.Demands["os"] = "windows"
	j.Status = entity.JobFailed

	again, _ := r.Get(ctx, "J1")
	if again.Demands["os"] != "linux" || again.Status != "" {
		t.Fatalf("stored job was mutated through a returned pointer: %+v", again)
	}
}

func TestJobRepository_ListPagesInCreationOrder(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// inserted out of order; J2 and J3 share a timestamp
	offsets := map[string]time.Duration{"J1": 0, "J2": time.Second, "J3": time.Second, "J4": 2 * time.Second, "J5": 3 * time.Second}
	for _, id := range []string{"J4", "J2", "J3", "J1", "J5"} {
		created := base.Add(offsets[id])
		status := entity.JobQueued
		if id == "J3" {
			status = entity.JobRunning
		}
		if _, err := r.Create(ctx, &entity.Job{ID: id, Status: status, CreatedAt: created}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	var ids []string
	token := ""
	pages := 0
	for {
		page, next, err := r.List(ctx, entity.JobFilter{}, token, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		pages++
		for _, j := range page {
			ids = append(ids, j.ID)
		}
		if next == "" {
			break
		}
		token = next
	}
	if fmt.Sprint(ids) != "[J1 J2 J3 J4 J5]" || pages != 3 {
		t.Fatalf("expected [J1 J2 J3 J4 J5] in 3 pages, got %v in %d", ids, pages)
	}

	queued, _, err := r.List(ctx, entity.JobFilter{Statuses: []entity.JobStatus{entity.JobQueued}}, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queued) != 4 {
		t.Fatalf("expected 4 queued jobs, got %d", len(queued))
	}

	if _, _, err := r.List(ctx, entity.JobFilter{}, "%%", 2); !errors.Is(err, repository.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJobRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepository()
	if _, err := r.Create(ctx, &entity.Job{ID: "J1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Create(ctx, &entity.Job{ID: "J1"}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestWorkerRepository_UpsertAndPage(t *testing.T) {
	ctx := context.Background()
	r := NewWorkerRepository()

	for _, id := range []string{"W3", "W1", "W2"} {
		if _, err := r.Upsert(ctx, &entity.Worker{WorkerID: id, Status: entity.WorkerRunning}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	w, err := r.Upsert(ctx, &entity.Worker{WorkerID: "W1", Status: entity.WorkerStopped})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if w.Version != 2 || w.Status != entity.WorkerStopped {
		t.Fatalf("expected last write to win with version 2, got %+v", w)
	}

	page, next, err := r.List(ctx, "", 2)
	if err != nil || len(page) != 2 || page[0].WorkerID != "W1" || page[1].WorkerID != "W2" || next == "" {
		t.Fatalf("unexpected first page %v next=%q err=%v", page, next, err)
	}
	page, next, err = r.List(ctx, next, 2)
	if err != nil || len(page) != 1 || page[0].WorkerID != "W3" || next != "" {
		t.Fatalf("unexpected second page %v next=%q err=%v", page, next, err)
	}

	if err := r.Delete(ctx, "W2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, "W2"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
