package repo

import (
	"context"
	"sync"
	"time"

	"server/internal/domain"
)

// MemoryTargetRepository is an in-memory domain.TargetRepository for
// development and test environments where PostgreSQL is not available.
type MemoryTargetRepository struct {
	mu      sync.RWMutex
	targets map[string]*domain.Target
}

// NewMemoryTargetRepository creates an empty in-memory target repository.
func NewMemoryTargetRepository() *MemoryTargetRepository {
	return &MemoryTargetRepository{targets: make(map[string]*domain.Target)}
}

// Create stores a copy of the target.
func (r *MemoryTargetRepository) Create(ctx context.Context, target *domain.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[target.ID] = cloneTarget(target)
	return nil
}

// GetByID returns a copy of the stored target.
func (r *MemoryTargetRepository) GetByID(ctx context.Context, id string) (*domain.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	target, ok := r.targets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTarget(target), nil
}

// UpdateAsset applies the delta to one asset slot under the repository lock
// and returns the updated target.
func (r *MemoryTargetRepository) UpdateAsset(ctx context.Context, id string, assetType domain.AssetType, delta domain.AssetDelta) (*domain.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.targets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	asset, ok := target.Assets[assetType]
	if !ok {
		return nil, domain.ErrNotFound
	}

	now := time.Now().UTC()
	if delta.Status != nil {
		asset.Status = *delta.Status
	}
	if delta.URL != nil {
		asset.URL = *delta.URL
	}
	if delta.Attempt != nil {
		asset.Attempt = *delta.Attempt
	}
	if delta.Error != nil {
		asset.Error = *delta.Error
	}
	if delta.ClearStart {
		asset.StartedAt = nil
	} else if delta.StartedAt != nil {
		t := *delta.StartedAt
		asset.StartedAt = &t
	}
	asset.UpdatedAt = now
	target.Assets[assetType] = asset
	target.UpdatedAt = now

	return cloneTarget(target), nil
}

// SetStatus writes the recomputed overall status.
func (r *MemoryTargetRepository) SetStatus(ctx context.Context, id string, status domain.TargetStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.targets[id]
	if !ok {
		return domain.ErrNotFound
	}
	target.Status = status
	target.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneTarget(t *domain.Target) *domain.Target {
	clone := *t
	clone.Assets = make(map[domain.AssetType]domain.AssetState, len(t.Assets))
	for at, a := range t.Assets {
		if a.StartedAt != nil {
			started := *a.StartedAt
			a.StartedAt = &started
		}
		clone.Assets[at] = a
	}
	if t.Input != nil {
		clone.Input = append(clone.Input[:0:0], t.Input...)
	}
	return &clone
}

// MemoryJobRepository is an in-memory domain.JobRepository. It enforces the
// same single-outstanding-job invariant the partial unique index provides in
// PostgreSQL.
type MemoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// NewMemoryJobRepository creates an empty in-memory job repository.
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]*domain.Job)}
}

// CreateIfAbsent inserts the job unless an outstanding job already exists for
// the same (target, asset type) pair.
func (r *MemoryJobRepository) CreateIfAbsent(ctx context.Context, job *domain.Job) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.TargetID == job.TargetID && existing.AssetType == job.AssetType && existing.Status.Outstanding() {
			return false, nil
		}
	}
	j := *job
	r.jobs[job.ID] = &j
	return true, nil
}

// GetByID returns a copy of the job.
func (r *MemoryJobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	j := *job
	return &j, nil
}

// Claim transitions a queued job to running.
func (r *MemoryJobRepository) Claim(ctx context.Context, id string, startedAt time.Time) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Status != domain.JobStatusQueued {
		return nil, domain.ErrNotFound
	}
	t := startedAt
	job.Status = domain.JobStatusRunning
	job.StartedAt = &t
	job.UpdatedAt = time.Now().UTC()
	j := *job
	return &j, nil
}

// Finish records a terminal job status. Like the PostgreSQL implementation
// it only applies while the job is still outstanding.
func (r *MemoryJobRepository) Finish(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || !job.Status.Outstanding() {
		return domain.ErrNotFound
	}
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// ListRunning returns all jobs currently running.
func (r *MemoryJobRepository) ListRunning(ctx context.Context) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []domain.Job
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusRunning {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}
