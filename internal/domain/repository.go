package domain

import (
	"context"
	"time"
)

// TargetRepository defines persistence for target records. UpdateAsset is the
// single mutation path used by workers; implementations must apply the delta
// atomically, touch the target's updated_at, and return the target as stored
// after the write so the aggregator can recompute from the full asset map.
type TargetRepository interface {
	Create(ctx context.Context, target *Target) error
	GetByID(ctx context.Context, id string) (*Target, error)
	UpdateAsset(ctx context.Context, id string, assetType AssetType, delta AssetDelta) (*Target, error)
	SetStatus(ctx context.Context, id string, status TargetStatus) error
}

// JobRepository defines persistence for job entities.
//
// CreateIfAbsent inserts the job only when no outstanding job exists for the
// same (target, asset type) pair and reports whether a row was inserted; this
// is where the single-outstanding-job invariant is enforced.
type JobRepository interface {
	CreateIfAbsent(ctx context.Context, job *Job) (bool, error)
	GetByID(ctx context.Context, id string) (*Job, error)
	Claim(ctx context.Context, id string, startedAt time.Time) (*Job, error)
	Finish(ctx context.Context, id string, status JobStatus, errMsg string) error
	ListRunning(ctx context.Context) ([]Job, error)
}
