package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/repository"
)

const jobColumns = `id, configuration_type, configuration, job_hash, demands, status,
assigned_worker_id, last_active_heartbeat, version, created_at, updated_at`

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) (*entity.Job, error) {
	cfg := job.JobConfiguration
	if len(cfg) == 0 {
		cfg = json.RawMessage(`{}`)
	}
	demands, err := marshalMap(job.Demands)
	if err != nil {
		return nil, err
	}

	const q = `
INSERT INTO jobs (id, configuration_type, configuration, job_hash, demands, status,
                  assigned_worker_id, last_active_heartbeat, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, COALESCE($9, now()), now())
RETURNING ` + jobColumns + `;
`
	var createdAt any
	if !job.CreatedAt.IsZero() {
		createdAt = job.CreatedAt
	}
	row := r.pool.QueryRow(ctx, q,
		job.ID,
		job.JobConfigurationType,
		cfg,
		job.JobHash,
		demands,
		string(job.Status),
		job.AssignedWorkerID,
		job.LastActiveHeartbeat,
		createdAt,
	)
	stored, err := scanJob(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrAlreadyExists
		}
		return nil, err
	}
	return stored, nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) List(ctx context.Context, filter entity.JobFilter, token string, pageSize int) ([]*entity.Job, string, error) {
	cursor, err := repository.DecodeJobToken(token)
	if err != nil {
		return nil, "", err
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if filter.JobConfigurationType != "" {
		where = append(where, "configuration_type = "+arg(filter.JobConfigurationType))
	}
	if filter.AssignedWorkerID != "" {
		where = append(where, "assigned_worker_id = "+arg(filter.AssignedWorkerID))
	}
	if filter.ActiveBefore != nil {
		where = append(where, "(last_active_heartbeat IS NULL OR last_active_heartbeat < "+arg(*filter.ActiveBefore)+")")
	}
	if cursor != nil {
		where = append(where, "(created_at, id) > ("+arg(cursor.CreatedAt)+", "+arg(cursor.ID)+")")
	}

	q := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"
	if pageSize > 0 {
		// one extra row tells us whether another page exists
		q += " LIMIT " + arg(pageSize+1)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, "", err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	if pageSize > 0 && len(jobs) > pageSize {
		jobs = jobs[:pageSize]
		return jobs, repository.EncodeJobToken(jobs[len(jobs)-1]), nil
	}
	return jobs, "", nil
}

func (r *JobRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, job *entity.Job) (*entity.Job, error) {
	cfg := job.JobConfiguration
	if len(cfg) == 0 {
		cfg = json.RawMessage(`{}`)
	}
	demands, err := marshalMap(job.Demands)
	if err != nil {
		return nil, err
	}

	const q = `
UPDATE jobs
SET configuration_type=$3, configuration=$4, job_hash=$5, demands=$6, status=$7,
    assigned_worker_id=$8, last_active_heartbeat=$9, version=version+1, updated_at=now()
WHERE id=$1 AND version=$2
RETURNING ` + jobColumns + `;
`
	stored, err := scanJob(r.pool.QueryRow(ctx, q,
		id,
		expectedVersion,
		job.JobConfigurationType,
		cfg,
		job.JobHash,
		demands,
		string(job.Status),
		job.AssignedWorkerID,
		job.LastActiveHeartbeat,
	))
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// zero rows: either the job is gone or somebody else moved the version on
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id=$1);`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrVersionConflict
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job          entity.Job
		statusText   string
		configBytes  []byte
		demandsBytes []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.JobConfigurationType,
		&configBytes,
		&job.JobHash,
		&demandsBytes,
		&statusText,
		&job.AssignedWorkerID,    // NULL => nil
		&job.LastActiveHeartbeat, // NULL => nil
		&job.Version,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Status = entity.JobStatus(statusText)
	job.JobConfiguration = json.RawMessage(configBytes)
	if len(demandsBytes) > 0 {
		if err := json.Unmarshal(demandsBytes, &job.Demands); err != nil {
			return nil, fmt.Errorf("decode demands of job %s: %w", job.ID, err)
		}
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}

func marshalMap(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}
