package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/executor"
)

type fakeExecutor struct {
	budget   time.Duration
	generate func(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error)
}

func (f *fakeExecutor) Generate(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error) {
	return f.generate(ctx, target, assetType)
}

func (f *fakeExecutor) Budget() time.Duration {
	if f.budget > 0 {
		return f.budget
	}
	return executor.DefaultBudget
}

func allAssetTypes(ex executor.Executor) map[domain.AssetType]executor.Executor {
	m := make(map[domain.AssetType]executor.Executor)
	for _, kind := range []domain.TargetKind{domain.TargetKindStory, domain.TargetKindCharacter} {
		for _, at := range domain.AssetTypesForKind(kind) {
			m[at] = ex
		}
	}
	return m
}

func newDispatcherEnv(t *testing.T, ex executor.Executor) (*pipelineEnv, *Dispatcher) {
	t.Helper()
	env := newPipelineEnv(t)
	registry := NewRegistry(allAssetTypes(ex))
	d := NewDispatcher(env.queue, env.jobs, env.coord, registry, zerolog.New(io.Discard), 1)
	return env, d
}

// jobFor pulls the queued job id for one asset type, requeueing the rest.
func jobFor(t *testing.T, env *pipelineEnv, targetID string, assetType domain.AssetType) string {
	t.Helper()
	ctx := context.Background()
	var found string
	for _, id := range env.drainQueue(t) {
		job, err := env.jobs.GetByID(ctx, id)
		if err == nil && job.TargetID == targetID && job.AssetType == assetType {
			found = id
			continue
		}
		_ = env.queue.Enqueue(ctx, id)
	}
	if found == "" {
		t.Fatalf("no queued job for %s/%s", targetID, assetType)
	}
	return found
}

func TestDispatcherSuccessCommitsAtomically(t *testing.T) {
	ex := &fakeExecutor{generate: func(ctx context.Context, target *domain.Target, at domain.AssetType) (string, error) {
		return "http://example.com/" + string(at) + ".png", nil
	}}
	env, d := newDispatcherEnv(t, ex)
	target := env.createStory(t)
	ctx := context.Background()

	jobID := jobFor(t, env, target.ID, domain.AssetTypeCover)
	d.process(ctx, jobID)

	got, err := env.coord.GetTarget(ctx, target.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	asset := got.Assets[domain.AssetTypeCover]
	if asset.Status != domain.StatusReady {
		t.Fatalf("status: got %q, want %q", asset.Status, domain.StatusReady)
	}
	if asset.URL == "" {
		t.Fatal("ready asset must carry a url")
	}
	if asset.Attempt != 1 {
		t.Fatalf("attempt: got %d, want 1", asset.Attempt)
	}
	if asset.StartedAt != nil {
		t.Fatal("start marker must be cleared on success")
	}

	job, err := env.jobs.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != domain.JobStatusSucceeded {
		t.Fatalf("job status: got %q, want %q", job.Status, domain.JobStatusSucceeded)
	}
	if got.Status != domain.StatusGenerating {
		t.Fatalf("overall: got %q, want %q", got.Status, domain.StatusGenerating)
	}
}

func TestDispatcherRetryableFailureReEnqueues(t *testing.T) {
	ex := &fakeExecutor{generate: func(ctx context.Context, target *domain.Target, at domain.AssetType) (string, error) {
		return "", errors.New("upstream capacity")
	}}
	env, d := newDispatcherEnv(t, ex)
	target := env.createStory(t)
	ctx := context.Background()

	jobID := jobFor(t, env, target.ID, domain.AssetTypeAudio)
	env.drainQueue(t)
	d.process(ctx, jobID)

	got, _ := env.coord.GetTarget(ctx, target.ID)
	asset := got.Assets[domain.AssetTypeAudio]
	if asset.Status != domain.StatusFailed {
		t.Fatalf("status: got %q, want %q", asset.Status, domain.StatusFailed)
	}
	if asset.Attempt != 1 {
		t.Fatalf("attempt: got %d, want 1", asset.Attempt)
	}
	if got.Status != domain.StatusGenerating {
		t.Fatalf("overall with budget left: got %q, want %q", got.Status, domain.StatusGenerating)
	}

	// A fresh job for the pair must be back on the queue.
	retryID := jobFor(t, env, target.ID, domain.AssetTypeAudio)
	retry, err := env.jobs.GetByID(ctx, retryID)
	if err != nil {
		t.Fatalf("get retry job: %v", err)
	}
	if retry.Attempt != 2 {
		t.Fatalf("retry attempt: got %d, want 2", retry.Attempt)
	}
}

func TestDispatcherTerminalFailureExhausts(t *testing.T) {
	ex := &fakeExecutor{generate: func(ctx context.Context, target *domain.Target, at domain.AssetType) (string, error) {
		return "", executor.Terminalf("policy rejection")
	}}
	env, d := newDispatcherEnv(t, ex)
	target := env.createStory(t)
	ctx := context.Background()

	jobID := jobFor(t, env, target.ID, domain.AssetTypePDF)
	env.drainQueue(t)
	d.process(ctx, jobID)

	got, _ := env.coord.GetTarget(ctx, target.ID)
	asset := got.Assets[domain.AssetTypePDF]
	if asset.Status != domain.StatusFailed {
		t.Fatalf("status: got %q, want %q", asset.Status, domain.StatusFailed)
	}
	if asset.Attempt != 3 {
		t.Fatalf("terminal failure must exhaust the budget: got attempt %d, want 3", asset.Attempt)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("overall: got %q, want %q", got.Status, domain.StatusFailed)
	}
	if ids := env.drainQueue(t); len(ids) != 0 {
		t.Fatalf("terminal failure must not re-enqueue, got %d jobs", len(ids))
	}
}

func TestDispatcherRetryBudgetExhaustedStops(t *testing.T) {
	ex := &fakeExecutor{generate: func(ctx context.Context, target *domain.Target, at domain.AssetType) (string, error) {
		return "", errors.New("flaky")
	}}
	env, d := newDispatcherEnv(t, ex)
	target := env.createStory(t)
	ctx := context.Background()

	for attempt := 1; attempt <= 3; attempt++ {
		jobID := jobFor(t, env, target.ID, domain.AssetTypeQR)
		d.process(ctx, jobID)
	}

	got, _ := env.coord.GetTarget(ctx, target.ID)
	asset := got.Assets[domain.AssetTypeQR]
	if asset.Attempt != 3 {
		t.Fatalf("attempt: got %d, want 3", asset.Attempt)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("overall after exhaustion: got %q, want %q", got.Status, domain.StatusFailed)
	}

	for _, id := range env.drainQueue(t) {
		job, err := env.jobs.GetByID(ctx, id)
		if err == nil && job.AssetType == domain.AssetTypeQR {
			t.Fatal("no fourth dispatch after the budget is spent")
		}
	}
}

func TestDispatcherDropsZombieResult(t *testing.T) {
	env := newPipelineEnv(t)
	target := env.createStory(t)
	ctx := context.Background()

	// The executor finishes, but the watchdog already timed the job out
	// mid-generation. The stale url must not be committed.
	var jobID string
	ex := &fakeExecutor{generate: func(ctx context.Context, target *domain.Target, at domain.AssetType) (string, error) {
		if err := env.jobs.Finish(ctx, jobID, domain.JobStatusFailed, "timeout"); err != nil {
			t.Fatalf("simulate watchdog: %v", err)
		}
		return "http://example.com/stale.png", nil
	}}
	registry := NewRegistry(allAssetTypes(ex))
	d := NewDispatcher(env.queue, env.jobs, env.coord, registry, zerolog.New(io.Discard), 1)

	jobID = jobFor(t, env, target.ID, domain.AssetTypeCover)
	d.process(ctx, jobID)

	got, _ := env.coord.GetTarget(ctx, target.ID)
	asset := got.Assets[domain.AssetTypeCover]
	if asset.Status == domain.StatusReady || asset.URL != "" {
		t.Fatalf("zombie result committed: %+v", asset)
	}
}

func TestDispatcherStaleDeliveryIgnored(t *testing.T) {
	ex := &fakeExecutor{generate: func(ctx context.Context, target *domain.Target, at domain.AssetType) (string, error) {
		t.Fatal("executor must not run for a stale delivery")
		return "", nil
	}}
	env, d := newDispatcherEnv(t, ex)
	target := env.createStory(t)
	ctx := context.Background()

	jobID := jobFor(t, env, target.ID, domain.AssetTypeCover)
	if _, err := env.jobs.Claim(ctx, jobID, time.Now().UTC()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Second delivery of the same id: claim fails, nothing else happens.
	d.process(ctx, jobID)
}
