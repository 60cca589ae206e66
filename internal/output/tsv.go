package output

import (
	"fmt"
	"strings"

	"modgraph/internal/core/app"
)

type TSVGenerator struct{}

func NewTSVGenerator() *TSVGenerator {
	return &TSVGenerator{}
}

// Generate writes one row per planned module followed by one row per pruned
// module. Pruned rows leave the ordering columns empty.
func (t *TSVGenerator) Generate(plan *app.Plan) (string, error) {
	var buf strings.Builder

	buf.WriteString("Order\tModule\tPhase\tDepth\tState\tInstalled\tVersion\tUpgrade\tDepends\tPruned\n")
	for i, e := range plan.Entries {
		buf.WriteString(fmt.Sprintf("%d\t%s\t%d\t%d\t%s\t%s\t%s\t%t\t%s\t\n",
			i+1, e.Name, e.Phase, e.Depth, e.State,
			e.InstalledVersion, e.Version, e.NeedsUpgrade,
			strings.Join(e.Depends, ","),
		))
	}
	for _, p := range plan.Pruned {
		reason := string(p.Reason)
		if p.Cause != "" {
			reason += ":" + p.Cause
		}
		buf.WriteString(fmt.Sprintf("\t%s\t\t\t\t\t\t\t\t%s\n", p.Name, reason))
	}

	return buf.String(), nil
}
