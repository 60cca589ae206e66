// Package app wires manifests, module states and plan history into the
// dependency graph and exposes load plan resolution.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"modgraph/internal/core/config"
	"modgraph/internal/core/ports"
	"modgraph/internal/data/history"
	"modgraph/internal/data/manifest"
	"modgraph/internal/data/sqldb"
	"modgraph/internal/data/state"
	"modgraph/internal/engine/graph"
)

// Dependencies lets callers supply their own providers instead of the
// file and SQLite backed defaults.
type Dependencies struct {
	Manifests ports.ManifestSource
	States    ports.StateStore
	// History may be nil to disable plan persistence.
	History ports.PlanStore
	Logger  *slog.Logger
}

type App struct {
	manifests ports.ManifestSource
	states    ports.StateStore
	history   ports.PlanStore
	logger    *slog.Logger

	// mu serializes graph construction; graphs are single-threaded.
	mu       sync.Mutex
	cfgMu    sync.RWMutex
	cfg      *config.Config
	lastPlan *Plan

	closers []func() error
	watchMu sync.Mutex
	watch   *watchState
}

// New opens the manifest provider, the state store and, when enabled, the
// plan history described by cfg.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	provider, err := manifest.NewProvider(manifest.Options{
		Paths:     cfg.Manifests.Paths,
		FileName:  cfg.Manifests.FileName,
		Exclude:   cfg.Manifests.Exclude,
		CacheSize: cfg.Manifests.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("manifest provider: %w", err)
	}

	states, err := state.Open(cfg.DB.Path, cfg.DB.BusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	closers := []func() error{states.Close}

	deps := Dependencies{Manifests: provider, States: states}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		switch {
		case err == nil:
			deps.History = store
			closers = append(closers, store.Close)
		case sqldb.IsCorruptError(err):
			slog.Warn("plan history is unreadable, continuing without it", "path", cfg.History.Path, "error", err)
		default:
			_ = states.Close()
			return nil, fmt.Errorf("plan history: %w", err)
		}
	}

	a := NewWithDependencies(cfg, deps)
	a.closers = closers
	return a, nil
}

// NewWithDependencies builds an App around caller-supplied providers.
func NewWithDependencies(cfg *config.Config, deps Dependencies) *App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		manifests: deps.Manifests,
		states:    deps.States,
		history:   deps.History,
		logger:    logger,
		cfg:       cfg,
	}
}

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// Reload applies the graph and watch sections of cfg. Storage locations and
// addons paths are fixed for the lifetime of the App.
func (a *App) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.cfgMu.Lock()
	next := *a.cfg
	next.Graph = cfg.Graph
	next.Watch = cfg.Watch
	next.History.Keep = cfg.History.Keep
	a.cfg = &next
	a.cfgMu.Unlock()

	a.watchMu.Lock()
	if a.watch != nil {
		a.watch.watcher.SetDebounce(next.Watch.Debounce)
		a.watch.limiter.SetRate(next.Watch.MaxRebuildsPerSecond)
	}
	a.watchMu.Unlock()

	a.logger.Info("configuration applied", "mode", next.Graph.Mode, "root", next.Graph.RootModule, "auto_install", next.Graph.AutoInstall)
}

// LastPlan returns the most recently resolved plan, or nil.
func (a *App) LastPlan() *Plan {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastPlan
}

// History returns up to limit stored plans, newest first.
func (a *App) History(ctx context.Context, limit int) ([]history.PlanRecord, error) {
	if a.history == nil {
		return nil, ErrHistoryDisabled
	}
	return a.history.LoadPlans(ctx, limit)
}

// SetModuleState records a state transition for name, creating the module
// row if needed.
func (a *App) SetModuleState(ctx context.Context, name string, st graph.State) error {
	return a.states.EnsureModule(ctx, name, st)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
