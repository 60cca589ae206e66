package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "modgraph/internal/core/errors"
	"modgraph/internal/engine/graph"
	"modgraph/internal/shared/observability"
)

var ErrHistoryDisabled = errors.New("plan history is disabled")

// loadedStates are the states whose modules are part of every load plan.
var loadedStates = []graph.State{graph.StateInstalled, graph.StateToUpgrade, graph.StateToRemove}

// Resolve builds a fresh graph for mode and returns the resulting load plan.
// The root module is loaded first, then every module recorded as installed,
// to upgrade or to remove, plus modules to install in update mode.
func (a *App) Resolve(ctx context.Context, mode graph.Mode) (*Plan, error) {
	if !mode.Valid() {
		return nil, coreerrors.New(coreerrors.CodeValidationError, "unknown graph mode").
			WithContext(coreerrors.CtxOperation, "resolve").
			WithContext("mode", string(mode))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cfg := a.Config()
	ctx, span := observability.Tracer.Start(ctx, "app.Resolve", trace.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("root", cfg.Graph.RootModule),
	))
	defer span.End()

	start := time.Now()
	plan, err := a.resolve(ctx, mode)
	if err != nil {
		observability.ResolveErrorsTotal.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	plan.Duration = time.Since(start)
	observability.ResolveDuration.WithLabelValues(string(mode)).Observe(plan.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("modules", len(plan.Entries)),
		attribute.Int("pruned", len(plan.Pruned)),
		attribute.Int("auto_installed", len(plan.AutoInstalled)),
	)

	a.saveHistory(ctx, plan)
	a.lastPlan = plan

	a.logger.Info("load plan resolved",
		"mode", mode,
		"modules", len(plan.Entries),
		"pruned", len(plan.Pruned),
		"auto_installed", len(plan.AutoInstalled),
		"duration", plan.Duration,
	)
	return plan, nil
}

func (a *App) resolve(ctx context.Context, mode graph.Mode) (*Plan, error) {
	cfg := a.Config()
	g := graph.New(mode, a.manifests, a.states, graph.Options{
		Root:       cfg.Graph.RootModule,
		TestPrefix: cfg.Graph.TestPrefix,
		Logger:     a.logger,
	})

	if err := g.Extend(ctx, g.Root()); err != nil {
		return nil, fmt.Errorf("load root module: %w", err)
	}
	if _, ok := g.Get(g.Root()); !ok {
		return nil, coreerrors.New(coreerrors.CodeNotFound, "root module cannot be loaded").
			WithContext(coreerrors.CtxModule, g.Root())
	}

	wanted := loadedStates
	if mode == graph.ModeUpdate {
		wanted = append(append([]graph.State(nil), loadedStates...), graph.StateToInstall)
	}
	names, err := a.states.NamesByState(ctx, wanted...)
	if err != nil {
		return nil, fmt.Errorf("list modules by state: %w", err)
	}
	if err := g.Extend(ctx, names...); err != nil {
		return nil, fmt.Errorf("extend graph: %w", err)
	}

	var autoInstalled []string
	if mode == graph.ModeUpdate && cfg.Graph.AutoInstall {
		autoInstalled, err = a.autoInstall(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("auto install: %w", err)
		}
	}

	return buildPlan(g, autoInstalled), nil
}

func (a *App) saveHistory(ctx context.Context, plan *Plan) {
	if a.history == nil {
		return
	}
	saved, err := a.history.SavePlan(ctx, plan.record())
	if err != nil {
		a.logger.Warn("failed to save load plan", "error", err)
		return
	}
	plan.RunID = saved.RunID

	if keep := a.Config().History.Keep; keep > 0 {
		if removed, err := a.history.Prune(ctx, keep); err != nil {
			a.logger.Warn("failed to prune plan history", "error", err)
		} else if removed > 0 {
			a.logger.Debug("pruned plan history", "removed", removed, "keep", keep)
		}
	}
}
