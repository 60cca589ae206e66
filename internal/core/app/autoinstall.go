package app

import (
	"context"
	"sort"

	"modgraph/internal/engine/graph"
)

// autoInstall repeatedly marks modules whose auto-install triggers are all
// loaded and headed for installation, then extends the graph with them,
// until a pass adds nothing. Marks on modules the graph then prunes are reset
// to uninstalled. It returns the modules that stayed in the graph, sorted.
func (a *App) autoInstall(ctx context.Context, g *graph.Graph) ([]string, error) {
	available, err := a.manifests.Names(ctx)
	if err != nil {
		return nil, err
	}

	attempted := make(map[string]bool)
	var marked []string
	for {
		candidates, err := a.autoInstallCandidates(ctx, g, available, attempted)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}

		for _, name := range candidates {
			attempted[name] = true
			if err := a.states.EnsureModule(ctx, name, graph.StateToInstall); err != nil {
				return nil, err
			}
			a.logger.Info("module marked for auto install", "module", name)
		}
		if err := g.Extend(ctx, candidates...); err != nil {
			return nil, err
		}
		for _, name := range candidates {
			if _, ok := g.Get(name); ok {
				marked = append(marked, name)
				continue
			}
			// Pruned while extending: undo the mark so later resolves do not
			// keep retrying an install that cannot load.
			if err := a.states.SetState(ctx, name, graph.StateUninstalled); err != nil {
				return nil, err
			}
			a.logger.Info("auto install reverted, module could not be loaded", "module", name)
		}
	}

	sort.Strings(marked)
	return marked, nil
}

func (a *App) autoInstallCandidates(ctx context.Context, g *graph.Graph, available []string, attempted map[string]bool) ([]string, error) {
	var pending []string
	for _, name := range available {
		if attempted[name] {
			continue
		}
		if _, loaded := g.Get(name); loaded {
			continue
		}
		pending = append(pending, name)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	rows, err := a.states.States(ctx, pending)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]graph.State, len(rows))
	for _, row := range rows {
		recorded[row.Name] = row.State
	}

	var candidates []string
	for _, name := range pending {
		if st, ok := recorded[name]; ok && st != graph.StateUninstalled {
			continue
		}
		m, err := a.manifests.Manifest(ctx, name)
		if err != nil {
			return nil, err
		}
		if m == nil || !m.Installable || len(m.AutoInstall) == 0 {
			continue
		}
		if triggersSatisfied(g, m.AutoInstall) {
			candidates = append(candidates, name)
		}
	}
	return candidates, nil
}

func triggersSatisfied(g *graph.Graph, triggers []string) bool {
	for _, dep := range triggers {
		n, ok := g.Get(dep)
		if !ok {
			return false
		}
		switch n.State() {
		case graph.StateInstalled, graph.StateToUpgrade, graph.StateToInstall:
		default:
			return false
		}
	}
	return true
}
