package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/repository"
)

type WorkerRepository struct {
	pool *pgxpool.Pool
}

func NewWorkerRepository(pool *pgxpool.Pool) *WorkerRepository {
	return &WorkerRepository{pool: pool}
}

// Upsert writes the worker unconditionally. Only the owning worker updates its own row,
// so last write wins.
func (r *WorkerRepository) Upsert(ctx context.Context, w *entity.Worker) (*entity.Worker, error) {
	caps, err := marshalMap(w.Capabilities)
	if err != nil {
		return nil, err
	}

	const q = `
INSERT INTO workers (worker_id, agent_id, capabilities, status, last_seen, version)
VALUES ($1, $2, $3, $4, $5, 1)
ON CONFLICT (worker_id) DO UPDATE
SET agent_id=EXCLUDED.agent_id, capabilities=EXCLUDED.capabilities, status=EXCLUDED.status,
    last_seen=EXCLUDED.last_seen, version=workers.version+1
RETURNING worker_id, agent_id, capabilities, status, last_seen, version;
`
	return scanWorker(r.pool.QueryRow(ctx, q, w.WorkerID, w.AgentID, caps, string(w.Status), w.LastSeen))
}

func (r *WorkerRepository) Get(ctx context.Context, id string) (*entity.Worker, error) {
	const q = `
SELECT worker_id, agent_id, capabilities, status, last_seen, version
FROM workers
WHERE worker_id = $1;
`
	w, err := scanWorker(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *WorkerRepository) List(ctx context.Context, token string, pageSize int) ([]*entity.Worker, string, error) {
	after, err := repository.DecodeWorkerToken(token)
	if err != nil {
		return nil, "", err
	}
	var limit any // NULL means no limit
	if pageSize > 0 {
		limit = pageSize + 1
	}

	const q = `
SELECT worker_id, agent_id, capabilities, status, last_seen, version
FROM workers
WHERE worker_id > $1
ORDER BY worker_id
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, after, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var workers []*entity.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, "", err
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	if pageSize > 0 && len(workers) > pageSize {
		workers = workers[:pageSize]
		return workers, repository.EncodeWorkerToken(workers[len(workers)-1].WorkerID), nil
	}
	return workers, "", nil
}

func (r *WorkerRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM workers WHERE worker_id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanWorker(row pgx.Row) (*entity.Worker, error) {
	var (
		w          entity.Worker
		statusText string
		capsBytes  []byte
	)
	if err := row.Scan(&w.WorkerID, &w.AgentID, &capsBytes, &statusText, &w.LastSeen, &w.Version); err != nil {
		return nil, err
	}
	w.Status = entity.WorkerStatus(statusText)
	w.LastSeen = w.LastSeen.UTC()
	if len(capsBytes) > 0 {
		if err := json.Unmarshal(capsBytes, &w.Capabilities); err != nil {
			return nil, fmt.Errorf("decode capabilities of worker %s: %w", w.WorkerID, err)
		}
	}
	return &w, nil
}
