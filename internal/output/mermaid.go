package output

import (
	"fmt"
	"strings"

	"modgraph/internal/core/app"
)

type MermaidGenerator struct{}

func NewMermaidGenerator() *MermaidGenerator {
	return &MermaidGenerator{}
}

func (m *MermaidGenerator) Generate(plan *app.Plan) (string, error) {
	var b strings.Builder
	b.WriteString("%%{init: {'flowchart': {'nodeSpacing': 60, 'rankSpacing': 90, 'curve': 'basis'}}}%%\n")
	b.WriteString("flowchart BT\n")

	var upgrades []string
	for phase, entries := range plan.Phases() {
		if len(entries) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  subgraph phase_%d[\"Phase %d\"]\n", phase, phase))
		for _, e := range entries {
			b.WriteString(fmt.Sprintf("    %s[\"%s<br/>%s\"]\n", mermaidID(e.Name), e.Name, e.State))
			if e.NeedsUpgrade {
				upgrades = append(upgrades, mermaidID(e.Name))
			}
		}
		b.WriteString("  end\n")
	}

	for _, e := range planEdges(plan) {
		b.WriteString(fmt.Sprintf("  %s --> %s\n", mermaidID(e.from), mermaidID(e.to)))
	}

	pruned := make([]string, 0, len(plan.Pruned))
	for _, p := range plan.Pruned {
		id := mermaidID(p.Name)
		pruned = append(pruned, id)
		b.WriteString(fmt.Sprintf("  %s[\"%s<br/>%s\"]\n", id, p.Name, p.Reason))
		if p.Cause != "" {
			b.WriteString(fmt.Sprintf("  %s -.-> %s\n", id, mermaidID(p.Cause)))
		}
	}

	b.WriteString("  classDef upgrade fill:#fef3c7,stroke:#f59e0b,stroke-width:2px\n")
	b.WriteString("  classDef pruned fill:#fee2e2,stroke:#ef4444,stroke-dasharray: 4 2\n")
	if len(upgrades) > 0 {
		b.WriteString(fmt.Sprintf("  class %s upgrade\n", strings.Join(upgrades, ",")))
	}
	if len(pruned) > 0 {
		b.WriteString(fmt.Sprintf("  class %s pruned\n", strings.Join(pruned, ",")))
	}
	return b.String(), nil
}

// mermaidID prefixes module names so keywords like "end" stay usable.
func mermaidID(name string) string {
	return "m_" + name
}
