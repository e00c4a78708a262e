package pipeline

import (
	"time"

	"server/internal/domain"
	"server/internal/executor"
)

// Registry maps asset types to their worker executors. It is constructed once
// at process start and injected into the dispatcher and watchdog; nothing in
// the pipeline consults ambient global state to find a generator.
type Registry struct {
	executors map[domain.AssetType]executor.Executor
}

// NewRegistry copies the provided mapping.
func NewRegistry(executors map[domain.AssetType]executor.Executor) *Registry {
	m := make(map[domain.AssetType]executor.Executor, len(executors))
	for at, ex := range executors {
		m[at] = ex
	}
	return &Registry{executors: m}
}

// For returns the executor registered for the asset type, or nil.
func (r *Registry) For(assetType domain.AssetType) executor.Executor {
	return r.executors[assetType]
}

// BudgetFor returns the wall-clock budget for an asset type, falling back to
// the pipeline default when no executor is registered or it declares none.
func (r *Registry) BudgetFor(assetType domain.AssetType) time.Duration {
	if ex := r.executors[assetType]; ex != nil {
		if b := ex.Budget(); b > 0 {
			return b
		}
	}
	return executor.DefaultBudget
}
