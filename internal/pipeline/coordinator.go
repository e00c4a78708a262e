package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/notify"
)

// Coordinator owns the createTarget/enqueue/updateAsset paths. All asset
// mutation flows through it so that every committed change recomputes the
// overall status from the full asset map and publishes exactly one change
// event.
type Coordinator struct {
	targets     domain.TargetRepository
	jobs        domain.JobRepository
	queue       Queue
	broker      notify.Broker
	logger      infra.Logger
	maxAttempts int
}

// NewCoordinator wires the coordinator's collaborators.
func NewCoordinator(targets domain.TargetRepository, jobs domain.JobRepository, queue Queue, broker notify.Broker, logger infra.Logger, maxAttempts int) *Coordinator {
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	return &Coordinator{
		targets:     targets,
		jobs:        jobs,
		queue:       queue,
		broker:      broker,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// MaxAttempts returns the retry budget per (target, asset type) pair.
func (c *Coordinator) MaxAttempts() int { return c.maxAttempts }

// CreateTarget writes the initial target record with every asset pending and
// enqueues one job per asset type. No generation work happens on this path;
// it returns as soon as the record and the queue submissions are committed.
func (c *Coordinator) CreateTarget(ctx context.Context, kind domain.TargetKind, ownerID string, input json.RawMessage) (*domain.Target, error) {
	assetTypes := domain.AssetTypesForKind(kind)
	if len(assetTypes) == 0 {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, kind)
	}
	if input == nil {
		input = json.RawMessage(`{}`)
	}

	now := time.Now().UTC()
	target := &domain.Target{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		Input:     input,
		Assets:    domain.NewAssets(kind, now),
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.targets.Create(ctx, target); err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}

	for _, at := range assetTypes {
		if _, err := c.EnqueueAsset(ctx, target.ID, at); err != nil {
			c.logger.Error().Err(err).Str("target_id", target.ID).Str("asset_type", string(at)).Msg("pipeline: initial enqueue failed")
		}
	}
	return target, nil
}

// GetTarget is the authoritative pull read. It never blocks on in-flight
// generation.
func (c *Coordinator) GetTarget(ctx context.Context, id string) (*domain.Target, error) {
	return c.targets.GetByID(ctx, id)
}

// EnqueueAsset creates a fresh job for the pair unless one is already
// outstanding, in which case it is an idempotent no-op reporting false.
// Ready assets are not silently regenerated.
func (c *Coordinator) EnqueueAsset(ctx context.Context, targetID string, assetType domain.AssetType) (bool, error) {
	target, err := c.targets.GetByID(ctx, targetID)
	if err != nil {
		return false, err
	}
	asset, ok := target.Assets[assetType]
	if !ok || !domain.ValidAssetType(target.Kind, assetType) {
		return false, fmt.Errorf("%w: %s for kind %s", domain.ErrUnknownAsset, assetType, target.Kind)
	}
	if asset.Status == domain.StatusReady {
		return false, nil
	}
	if asset.Status == domain.StatusFailed && asset.Attempt >= c.maxAttempts {
		return false, domain.ErrNoAttemptsLeft
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		TargetID:  targetID,
		AssetType: assetType,
		Status:    domain.JobStatusQueued,
		Attempt:   asset.Attempt + 1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := c.jobs.CreateIfAbsent(ctx, job)
	if err != nil {
		return false, fmt.Errorf("create job: %w", err)
	}
	if !created {
		return false, nil
	}

	if err := c.queue.Enqueue(ctx, job.ID); err != nil {
		// Release the outstanding slot so a later enqueue can try again.
		if finishErr := c.jobs.Finish(ctx, job.ID, domain.JobStatusFailed, "enqueue: "+err.Error()); finishErr != nil {
			c.logger.Error().Err(finishErr).Str("job_id", job.ID).Msg("pipeline: release failed job")
		}
		return false, fmt.Errorf("enqueue job: %w", err)
	}

	c.logger.Debug().Str("target_id", targetID).Str("asset_type", string(assetType)).Str("job_id", job.ID).Int("attempt", job.Attempt).Msg("pipeline: job enqueued")
	return true, nil
}

// RetryAsset is the manual retry path. Unlike the automatic re-enqueue it may
// revive a terminally failed asset: the slot moves back to pending so the
// exhausted-budget gate no longer applies, granting exactly one more attempt
// per call. The attempt count is never rewound; the fresh job continues it.
// Ready assets and assets with an outstanding job are left alone.
func (c *Coordinator) RetryAsset(ctx context.Context, targetID string, assetType domain.AssetType) (bool, error) {
	target, err := c.targets.GetByID(ctx, targetID)
	if err != nil {
		return false, err
	}
	asset, ok := target.Assets[assetType]
	if !ok || !domain.ValidAssetType(target.Kind, assetType) {
		return false, fmt.Errorf("%w: %s for kind %s", domain.ErrUnknownAsset, assetType, target.Kind)
	}
	if asset.Status == domain.StatusReady {
		return false, nil
	}

	if asset.Status == domain.StatusFailed && asset.Attempt >= c.maxAttempts {
		pending := domain.StatusPending
		empty := ""
		if err := c.applyDelta(ctx, targetID, assetType, domain.AssetDelta{
			Status: &pending,
			Error:  &empty,
		}); err != nil {
			return false, err
		}
	}
	return c.EnqueueAsset(ctx, targetID, assetType)
}

// StartAsset records the transition of an asset slot into generating when its
// job is claimed.
func (c *Coordinator) StartAsset(ctx context.Context, job *domain.Job) error {
	generating := domain.StatusGenerating
	empty := ""
	started := time.Now().UTC()
	if job.StartedAt != nil {
		started = *job.StartedAt
	}
	attempt := job.Attempt
	return c.applyDelta(ctx, job.TargetID, job.AssetType, domain.AssetDelta{
		Status:    &generating,
		Attempt:   &attempt,
		StartedAt: &started,
		Error:     &empty,
	})
}

// CompleteAsset commits a successful generation: url and ready status land in
// one write, the error is cleared and the start marker removed.
func (c *Coordinator) CompleteAsset(ctx context.Context, targetID string, assetType domain.AssetType, url string) error {
	if url == "" {
		return fmt.Errorf("%w: empty url for %s", domain.ErrInvalidInput, assetType)
	}
	ready := domain.StatusReady
	empty := ""
	return c.applyDelta(ctx, targetID, assetType, domain.AssetDelta{
		Status:     &ready,
		URL:        &url,
		Error:      &empty,
		ClearStart: true,
	})
}

// FailAsset records a failed generation attempt. Terminal failures exhaust
// the retry budget regardless of how many attempts were consumed.
func (c *Coordinator) FailAsset(ctx context.Context, targetID string, assetType domain.AssetType, msg string, terminal bool) error {
	failed := domain.StatusFailed
	delta := domain.AssetDelta{
		Status:     &failed,
		Error:      &msg,
		ClearStart: true,
	}
	if terminal {
		attempts := c.maxAttempts
		delta.Attempt = &attempts
	}
	return c.applyDelta(ctx, targetID, assetType, delta)
}

// TimeoutAsset is the watchdog's forced-failure path. It consumes the attempt
// like a normal failure but leaves the start marker in place as evidence of
// when the executor went silent.
func (c *Coordinator) TimeoutAsset(ctx context.Context, targetID string, assetType domain.AssetType) error {
	failed := domain.StatusFailed
	msg := "timeout"
	return c.applyDelta(ctx, targetID, assetType, domain.AssetDelta{
		Status: &failed,
		Error:  &msg,
	})
}

// applyDelta is the single asset mutation path: commit the delta, recompute
// the overall status from the complete asset map, persist it when it moved,
// and publish the change event.
func (c *Coordinator) applyDelta(ctx context.Context, targetID string, assetType domain.AssetType, delta domain.AssetDelta) error {
	target, err := c.targets.UpdateAsset(ctx, targetID, assetType, delta)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", assetType, err)
	}

	status := domain.ComputeStatus(target.Assets, c.maxAttempts)
	if status != target.Status {
		if err := c.targets.SetStatus(ctx, targetID, status); err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		target.Status = status
	}

	if err := c.broker.Publish(ctx, notify.EventFromTarget(target)); err != nil {
		// Push is a best-effort hint; the poll path still observes this state.
		c.logger.Warn().Err(err).Str("target_id", targetID).Msg("pipeline: publish change event failed")
	}
	return nil
}
