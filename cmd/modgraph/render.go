package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"modgraph/internal/core/app"
	"modgraph/internal/data/history"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	prunedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)
)

func renderPlan(plan *app.Plan) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Load plan (%s mode, root %s)", plan.Mode, plan.Root)))
	b.WriteString("\n")

	rows := make([][]string, 0, len(plan.Entries))
	for i, e := range plan.Entries {
		version := e.Version
		if e.NeedsUpgrade {
			version = fmt.Sprintf("%s -> %s", e.InstalledVersion, e.Version)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			e.Name,
			strconv.Itoa(e.Phase),
			strconv.Itoa(e.Depth),
			string(e.State),
			version,
			strings.Join(e.Depends, ", "),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "MODULE", "PHASE", "DEPTH", "STATE", "VERSION", "DEPENDS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(plan.Entries) && col == 5 && plan.Entries[row].NeedsUpgrade {
				return cellStyle.Inherit(warnStyle)
			}
			return cellStyle
		})
	b.WriteString(t.String())
	b.WriteString("\n")

	if len(plan.AutoInstalled) > 0 {
		b.WriteString(successStyle.Render("Auto-installed: " + strings.Join(plan.AutoInstalled, ", ")))
		b.WriteString("\n")
	}

	if len(plan.Pruned) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("Skipped modules (%d)", len(plan.Pruned))))
		b.WriteString("\n")
		for _, p := range plan.Pruned {
			line := fmt.Sprintf("- %s: %s", p.Name, p.Reason)
			if p.Cause != "" {
				line += fmt.Sprintf(" (via %s)", p.Cause)
			}
			b.WriteString(prunedStyle.Render(line))
			b.WriteString("\n")
		}
	}

	b.WriteString(fmt.Sprintf("%d modules, %d skipped, resolved in %s\n", len(plan.Entries), len(plan.Pruned), plan.Duration))
	return b.String()
}

func renderHistory(plans []history.PlanRecord) string {
	if len(plans) == 0 {
		return "No stored plans.\n"
	}
	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []string{
			p.Timestamp.Local().Format("2006-01-02 15:04:05"),
			p.Mode,
			strconv.Itoa(len(p.Order)),
			strconv.Itoa(len(p.Pruned)),
			strings.Join(p.AutoInstalled, ", "),
			p.RunID,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("WHEN", "MODE", "MODULES", "SKIPPED", "AUTO-INSTALLED", "RUN").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return titleStyle.Render("Recent plans") + "\n" + t.String() + "\n"
}
