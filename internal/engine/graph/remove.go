package graph

import "modgraph/internal/shared/observability"

// Reason records why a module was pruned from the graph.
type Reason string

const (
	ReasonNotInstallable    Reason = "not_installable"
	ReasonImported          Reason = "imported"
	ReasonMissingDependency Reason = "missing_dependency"
	ReasonCycle             Reason = "dependency_loop"
	ReasonUninstallable     Reason = "uninstallable"
	ReasonNotInstalled      Reason = "not_installed"
	ReasonDependencyRemoved Reason = "dependency_removed"
)

// Pruned describes one module removed from the graph. Cause is set for
// cascade removals and names the module whose removal triggered it.
type Pruned struct {
	Name   string `json:"name"`
	Reason Reason `json:"reason"`
	Cause  string `json:"cause,omitempty"`
}

// Pruned returns every removal recorded by this graph in the order it happened.
func (g *Graph) Pruned() []Pruned {
	return append([]Pruned(nil), g.pruned...)
}

// remove drops name and every module that transitively depends on it. The
// direct cause is logged by the caller; dependents get a generic message
// unless logDependents is false.
func (g *Graph) remove(name string, reason Reason, logDependents bool) {
	if _, ok := g.modules[name]; !ok {
		return
	}
	dependents := g.Dependents(name)

	delete(g.modules, name)
	g.record(Pruned{Name: name, Reason: reason})

	for _, dependent := range dependents {
		if _, ok := g.modules[dependent]; !ok {
			continue
		}
		if logDependents {
			g.logger.Info("module has depends that are not loaded, skipped", "module", dependent, "cause", name)
		}
		delete(g.modules, dependent)
		g.record(Pruned{Name: dependent, Reason: ReasonDependencyRemoved, Cause: name})
	}
}

func (g *Graph) record(p Pruned) {
	g.pruned = append(g.pruned, p)
	observability.PrunedModulesTotal.WithLabelValues(string(p.Reason)).Inc()
}
