package app

import (
	"context"
	"errors"

	"modgraph/internal/core/watcher"
	"modgraph/internal/shared/util"
)

type watchState struct {
	watcher *watcher.Watcher
	limiter *util.Limiter
}

// Watch watches the addons paths and re-resolves with the configured mode
// whenever manifests change, handing each outcome to onPlan. It blocks until
// ctx is done.
func (a *App) Watch(ctx context.Context, onPlan func(*Plan, error)) error {
	if onPlan == nil {
		return errors.New("watch callback must not be nil")
	}
	cfg := a.Config()

	a.watchMu.Lock()
	if a.watch != nil {
		a.watchMu.Unlock()
		return errors.New("already watching")
	}
	limiter := util.NewLimiter(cfg.Watch.MaxRebuildsPerSecond, 1)
	w, err := watcher.NewWatcher(cfg.Watch.Debounce, a.manifests.FileName(), cfg.Manifests.Exclude, func(paths []string) {
		a.HandleChanges(ctx, paths, limiter, onPlan)
	})
	if err != nil {
		a.watchMu.Unlock()
		return err
	}
	a.watch = &watchState{watcher: w, limiter: limiter}
	a.watchMu.Unlock()

	defer func() {
		a.watchMu.Lock()
		a.watch = nil
		a.watchMu.Unlock()
		_ = w.Close()
	}()

	if err := w.Watch(a.manifests.Paths()); err != nil {
		return err
	}
	a.logger.Info("watching addons paths", "paths", a.manifests.Paths())

	<-ctx.Done()
	return nil
}

// HandleChanges evicts the manifests behind paths from the cache, waits for
// the rebuild limiter and resolves a new plan.
func (a *App) HandleChanges(ctx context.Context, paths []string, limiter *util.Limiter, onPlan func(*Plan, error)) {
	modules := make(map[string]bool)
	unknown := false
	for _, path := range paths {
		name, ok := a.manifests.ModuleForPath(path)
		if !ok {
			unknown = true
			continue
		}
		modules[name] = true
	}
	if unknown {
		a.manifests.Reset()
	} else {
		for _, name := range util.SortedStringKeys(modules) {
			a.manifests.Invalidate(name)
		}
	}
	a.logger.Debug("manifests changed", "modules", util.SortedStringKeys(modules), "full_reset", unknown)

	if limiter != nil && !limiter.Allow(1) {
		a.logger.Debug("rebuild rate limited, waiting")
		if err := limiter.Wait(ctx, 1); err != nil {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	plan, err := a.Resolve(ctx, a.Config().GraphMode())
	if err != nil {
		a.logger.Error("rebuild failed", "error", err)
	}
	onPlan(plan, err)
}
