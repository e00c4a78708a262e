package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/infra"
)

// Dispatcher pulls queued jobs and drives them through their executors. It is
// a pool-style scheduler: a slow generation occupies one worker goroutine and
// never blocks the others.
type Dispatcher struct {
	queue       Queue
	jobs        domain.JobRepository
	coord       *Coordinator
	registry    *Registry
	logger      infra.Logger
	concurrency int
}

// NewDispatcher wires a dispatcher over the shared queue and registry.
func NewDispatcher(queue Queue, jobs domain.JobRepository, coord *Coordinator, registry *Registry, logger infra.Logger, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		queue:       queue,
		jobs:        jobs,
		coord:       coord,
		registry:    registry,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run blocks until the context ends, servicing jobs with the configured
// number of workers.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.concurrency; i++ {
		g.Go(func() error {
			for {
				jobID, err := d.queue.Dequeue(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					d.logger.Error().Err(err).Msg("dispatcher: dequeue failed")
					continue
				}
				d.process(ctx, jobID)
			}
		})
	}
	return g.Wait()
}

func (d *Dispatcher) process(ctx context.Context, jobID string) {
	job, err := d.jobs.Claim(ctx, jobID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Stale or duplicate delivery; the job was already claimed.
			return
		}
		d.logger.Error().Err(err).Str("job_id", jobID).Msg("dispatcher: claim failed")
		return
	}

	log := d.logger.With().
		Str("job_id", job.ID).
		Str("target_id", job.TargetID).
		Str("asset_type", string(job.AssetType)).
		Int("attempt", job.Attempt).
		Logger()

	target, err := d.coord.GetTarget(ctx, job.TargetID)
	if err != nil {
		log.Error().Err(err).Msg("dispatcher: load target failed")
		d.finish(ctx, job, fmt.Errorf("load target: %w", err), log)
		return
	}

	if err := d.coord.StartAsset(ctx, job); err != nil {
		log.Error().Err(err).Msg("dispatcher: mark generating failed")
	}

	ex := d.registry.For(job.AssetType)
	if ex == nil {
		d.finish(ctx, job, executor.Terminalf("no executor registered for %s", job.AssetType), log)
		return
	}

	log.Info().Msg("dispatcher: generating")
	url, err := ex.Generate(ctx, target, job.AssetType)
	if err == nil && url == "" {
		err = fmt.Errorf("executor returned empty url")
	}
	if err != nil {
		d.finish(ctx, job, err, log)
		return
	}

	// Finish the job first: if the watchdog already timed this dispatch out,
	// the slot may be owned by a fresh job and this result must be dropped.
	if err := d.jobs.Finish(ctx, job.ID, domain.JobStatusSucceeded, ""); err != nil {
		log.Warn().Err(err).Msg("dispatcher: job no longer running, dropping result")
		return
	}
	if err := d.coord.CompleteAsset(ctx, job.TargetID, job.AssetType, url); err != nil {
		log.Error().Err(err).Msg("dispatcher: commit asset failed")
		return
	}
	log.Info().Str("url", url).Msg("dispatcher: asset ready")
}

// finish records a failed dispatch, classifies it, and re-enqueues a fresh
// job while retry budget remains.
func (d *Dispatcher) finish(ctx context.Context, job *domain.Job, genErr error, log infra.Logger) {
	terminal := executor.IsTerminal(genErr)

	if err := d.jobs.Finish(ctx, job.ID, domain.JobStatusFailed, genErr.Error()); err != nil {
		log.Warn().Err(err).Msg("dispatcher: job no longer running, dropping failure")
		return
	}
	if err := d.coord.FailAsset(ctx, job.TargetID, job.AssetType, genErr.Error(), terminal); err != nil {
		log.Error().Err(err).Msg("dispatcher: record failure failed")
		return
	}

	if terminal {
		log.Error().Err(genErr).Msg("dispatcher: terminal failure")
		return
	}
	log.Warn().Err(genErr).Msg("dispatcher: retryable failure")

	if job.Attempt < d.coord.MaxAttempts() {
		if _, err := d.coord.EnqueueAsset(ctx, job.TargetID, job.AssetType); err != nil {
			log.Error().Err(err).Msg("dispatcher: re-enqueue failed")
		}
	}
}
