package pipeline

import (
	"context"
	"errors"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// Watchdog periodically scans running jobs and forcibly fails any dispatch
// that exceeded its asset type's wall-clock budget. It is the only safety net
// against executors that hang or whose completion signal is lost; without it
// a silent worker failure would leave a target generating forever.
type Watchdog struct {
	jobs     domain.JobRepository
	coord    *Coordinator
	registry *Registry
	interval time.Duration
	logger   infra.Logger
}

// NewWatchdog wires a watchdog sweeping at the given interval.
func NewWatchdog(jobs domain.JobRepository, coord *Coordinator, registry *Registry, interval time.Duration, logger infra.Logger) *Watchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watchdog{
		jobs:     jobs,
		coord:    coord,
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until the context ends, sweeping once per interval.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep fails every running job stuck past its budget. It is exported so
// tests and operational tooling can trigger a scan without waiting a tick.
func (w *Watchdog) Sweep(ctx context.Context) {
	jobs, err := w.jobs.ListRunning(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("watchdog: list running jobs failed")
		return
	}

	now := time.Now().UTC()
	for i := range jobs {
		job := jobs[i]
		if job.StartedAt == nil {
			continue
		}
		budget := w.registry.BudgetFor(job.AssetType)
		age := now.Sub(*job.StartedAt)
		if age <= budget {
			continue
		}

		log := w.logger.With().
			Str("job_id", job.ID).
			Str("target_id", job.TargetID).
			Str("asset_type", string(job.AssetType)).
			Dur("age", age).
			Dur("budget", budget).
			Logger()

		if err := w.jobs.Finish(ctx, job.ID, domain.JobStatusFailed, "timeout"); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Error().Err(err).Msg("watchdog: fail job failed")
			}
			// Already finished between the scan and now.
			continue
		}
		if err := w.coord.TimeoutAsset(ctx, job.TargetID, job.AssetType); err != nil {
			log.Error().Err(err).Msg("watchdog: record timeout failed")
			continue
		}
		log.Warn().Msg("watchdog: stuck job failed")

		// Timeouts consume retry budget like any other transient failure.
		if job.Attempt < w.coord.MaxAttempts() {
			if _, err := w.coord.EnqueueAsset(ctx, job.TargetID, job.AssetType); err != nil {
				log.Error().Err(err).Msg("watchdog: re-enqueue failed")
			}
		}
	}
}
