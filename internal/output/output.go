package output

import (
	"fmt"
	"sort"

	"modgraph/internal/core/app"
)

// Generator renders a load plan in one text format.
type Generator interface {
	Generate(plan *app.Plan) (string, error)
}

// Formats lists the names accepted by ForFormat.
var Formats = []string{"dot", "mermaid", "tsv"}

func ForFormat(name string) (Generator, error) {
	switch name {
	case "dot":
		return NewDOTGenerator(), nil
	case "mermaid":
		return NewMermaidGenerator(), nil
	case "tsv":
		return NewTSVGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", name)
	}
}

// edge is a dependency between two modules kept in the plan.
type edge struct {
	from, to string
}

func planEdges(plan *app.Plan) []edge {
	var edges []edge
	for _, e := range plan.Entries {
		deps := append([]string(nil), e.Depends...)
		sort.Strings(deps)
		for _, dep := range deps {
			edges = append(edges, edge{from: e.Name, to: dep})
		}
	}
	return edges
}
