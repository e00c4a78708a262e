package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// CreateIfAbsent inserts the job unless an outstanding job already occupies
// the (target_id, asset_type) pair. The jobs_outstanding_idx partial unique
// index arbitrates concurrent inserts; a conflicting insert is a no-op and
// reports false.
func (r *JobRepositoryPG) CreateIfAbsent(ctx context.Context, job *domain.Job) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
INSERT INTO jobs (id, target_id, asset_type, status, attempt, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT DO NOTHING;
`, job.ID, job.TargetID, job.AssetType, job.Status, job.Attempt, job.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, target_id, asset_type, status, attempt, error, started_at, created_at, updated_at
FROM jobs
WHERE id = $1;
`, id)
	return scanJob(row)
}

// Claim transitions the job from queued to running, recording the dispatch
// time. It returns domain.ErrNotFound when the job is gone or was already
// claimed, which makes redundant deliveries from the queue harmless.
func (r *JobRepositoryPG) Claim(ctx context.Context, id string, startedAt time.Time) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE jobs
SET status = 'running', started_at = $2, updated_at = now()
WHERE id = $1 AND status = 'queued'
RETURNING id, target_id, asset_type, status, attempt, error, started_at, created_at, updated_at;
`, id, startedAt)
	return scanJob(row)
}

// Finish records the terminal status of a job, releasing its slot in the
// outstanding index. It only applies while the job is still outstanding, so a
// result arriving after the watchdog already failed the dispatch reports
// domain.ErrNotFound instead of clobbering the fresh job's state.
func (r *JobRepositoryPG) Finish(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs
SET status = $2, error = $3, updated_at = now()
WHERE id = $1 AND status IN ('queued', 'running');
`, id, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRunning returns every job currently in the running state; the watchdog
// filters them against per-asset-type budgets.
func (r *JobRepositoryPG) ListRunning(ctx context.Context) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, target_id, asset_type, status, attempt, error, started_at, created_at, updated_at
FROM jobs
WHERE status = 'running';
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(&j.ID, &j.TargetID, &j.AssetType, &j.Status, &j.Attempt, &j.Error, &j.StartedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	if err := row.Scan(&j.ID, &j.TargetID, &j.AssetType, &j.Status, &j.Attempt, &j.Error, &j.StartedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}
