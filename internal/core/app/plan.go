package app

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"modgraph/internal/data/history"
	"modgraph/internal/engine/graph"
)

// PlanEntry is one module of a load plan, in load order.
type PlanEntry struct {
	Name             string      `json:"name"`
	Phase            int         `json:"phase"`
	Depth            int         `json:"depth"`
	OrderName        string      `json:"order_name"`
	State            graph.State `json:"state"`
	Demo             bool        `json:"demo"`
	Depends          []string    `json:"depends"`
	InstalledVersion string      `json:"installed_version,omitempty"`
	Version          string      `json:"version,omitempty"`
	NeedsUpgrade     bool        `json:"needs_upgrade"`
}

// Plan is the outcome of one resolve.
type Plan struct {
	RunID         string         `json:"run_id,omitempty"`
	Mode          graph.Mode     `json:"mode"`
	Root          string         `json:"root"`
	Timestamp     time.Time      `json:"timestamp"`
	Duration      time.Duration  `json:"duration"`
	Entries       []PlanEntry    `json:"entries"`
	Pruned        []graph.Pruned `json:"pruned"`
	AutoInstalled []string       `json:"auto_installed,omitempty"`
}

// Order returns the module names in load order.
func (p *Plan) Order() []string {
	out := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Name
	}
	return out
}

// Phases groups entries by phase, preserving load order inside each phase.
func (p *Plan) Phases() [][]PlanEntry {
	var phases [][]PlanEntry
	for _, e := range p.Entries {
		for len(phases) <= e.Phase {
			phases = append(phases, nil)
		}
		phases[e.Phase] = append(phases[e.Phase], e)
	}
	return phases
}

// Upgrades lists the entries whose manifest version is newer than the
// installed one.
func (p *Plan) Upgrades() []PlanEntry {
	var out []PlanEntry
	for _, e := range p.Entries {
		if e.NeedsUpgrade {
			out = append(out, e)
		}
	}
	return out
}

func buildPlan(g *graph.Graph, autoInstalled []string) *Plan {
	nodes := g.Nodes()
	plan := &Plan{
		Mode:          g.Mode(),
		Root:          g.Root(),
		Timestamp:     time.Now().UTC(),
		Entries:       make([]PlanEntry, 0, len(nodes)),
		Pruned:        g.Pruned(),
		AutoInstalled: autoInstalled,
	}
	for _, n := range nodes {
		m := n.Manifest()
		plan.Entries = append(plan.Entries, PlanEntry{
			Name:             n.Name(),
			Phase:            n.Phase(),
			Depth:            n.Depth(),
			OrderName:        n.OrderName(),
			State:            n.State(),
			Demo:             n.Demo(),
			Depends:          n.DependsNames(),
			InstalledVersion: n.InstalledVersion(),
			Version:          m.Version,
			NeedsUpgrade:     needsUpgrade(n.InstalledVersion(), m.Version),
		})
	}
	return plan
}

func (p *Plan) record() history.PlanRecord {
	pruned := make([]history.PrunedModule, 0, len(p.Pruned))
	for _, pr := range p.Pruned {
		pruned = append(pruned, history.PrunedModule{Name: pr.Name, Reason: string(pr.Reason), Cause: pr.Cause})
	}
	return history.PlanRecord{
		RunID:         p.RunID,
		Mode:          string(p.Mode),
		Timestamp:     p.Timestamp,
		Order:         p.Order(),
		Pruned:        pruned,
		AutoInstalled: p.AutoInstalled,
		Duration:      p.Duration,
	}
}

// needsUpgrade reports whether available is strictly newer than installed.
// Versions that cannot be compared never need an upgrade.
func needsUpgrade(installed, available string) bool {
	from, ok := parseVersion(installed)
	if !ok {
		return false
	}
	to, ok := parseVersion(available)
	if !ok {
		return false
	}
	return to.GreaterThan(from)
}

// parseVersion accepts plain semver as well as series-prefixed versions such
// as 17.0.1.2.0, whose last three parts are the module version.
func parseVersion(raw string) (*semver.Version, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if parts := strings.Split(raw, "."); len(parts) > 3 {
		raw = strings.Join(parts[len(parts)-3:], ".")
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}
