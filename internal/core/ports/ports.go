package ports

import (
	"context"

	"modgraph/internal/data/history"
	"modgraph/internal/engine/graph"
)

// ManifestSource is a graph.ManifestProvider backed by addons directories
// that can be listed and whose cache can be invalidated.
type ManifestSource interface {
	graph.ManifestProvider
	Names(ctx context.Context) ([]string, error)
	Paths() []string
	FileName() string
	ModuleForPath(path string) (string, bool)
	Invalidate(name string)
	Reset()
}

// StateStore is a graph.StateProvider that can also be queried by state and
// updated.
type StateStore interface {
	graph.StateProvider
	NamesByState(ctx context.Context, states ...graph.State) ([]string, error)
	SetState(ctx context.Context, name string, state graph.State) error
	EnsureModule(ctx context.Context, name string, state graph.State) error
}

// PlanStore abstracts plan persistence for the history workflow.
type PlanStore interface {
	SavePlan(ctx context.Context, plan history.PlanRecord) (history.PlanRecord, error)
	LoadPlans(ctx context.Context, limit int) ([]history.PlanRecord, error)
	Prune(ctx context.Context, keep int) (int64, error)
}
