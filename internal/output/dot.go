package output

import (
	"fmt"
	"strings"

	"modgraph/internal/core/app"
)

type DOTGenerator struct{}

func NewDOTGenerator() *DOTGenerator {
	return &DOTGenerator{}
}

// Generate draws one cluster per phase with edges pointing at dependencies.
// Pruned modules are drawn outside the clusters, linked to their cause.
func (d *DOTGenerator) Generate(plan *app.Plan) (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph modules {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.0;\n")
	buf.WriteString("  nodesep=0.6;\n\n")

	for phase, entries := range plan.Phases() {
		if len(entries) == 0 {
			continue
		}
		buf.WriteString(fmt.Sprintf("  subgraph cluster_phase_%d {\n", phase))
		buf.WriteString(fmt.Sprintf("    label=\"Phase %d\";\n", phase))
		buf.WriteString("    style=filled;\n")
		buf.WriteString("    color=\"whitesmoke\";\n")
		buf.WriteString("    node [fillcolor=\"white\", style=\"rounded,filled\"];\n")
		for _, e := range entries {
			label := fmt.Sprintf("%s\\n%s", e.Name, e.State)
			if e.NeedsUpgrade {
				label += fmt.Sprintf("\\n%s -> %s", e.InstalledVersion, e.Version)
				buf.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"lightyellow\", color=\"orange\", penwidth=2.0];\n", e.Name, label))
				continue
			}
			buf.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", color=\"darkslategrey\"];\n", e.Name, label))
		}
		buf.WriteString("  }\n\n")
	}

	for _, e := range planEdges(plan) {
		buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"forestgreen\"];\n", e.from, e.to))
	}

	if len(plan.Pruned) > 0 {
		buf.WriteString("\n  // Pruned\n")
		buf.WriteString("  node [fillcolor=\"mistyrose\", style=\"rounded,filled,dashed\", color=\"red\"];\n")
		for _, p := range plan.Pruned {
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\\n%s\"];\n", p.Name, p.Name, p.Reason))
			if p.Cause != "" {
				buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"red\", style=dashed];\n", p.Name, p.Cause))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}
