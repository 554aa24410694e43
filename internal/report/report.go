// Package report renders pattern and savings summaries for the CLI.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"patrol/internal/store"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	activeColor = color.New(color.FgGreen)
	staleColor  = color.New(color.FgYellow)
	deadColor   = color.New(color.FgRed)
	totalColor  = color.New(color.FgGreen, color.Bold)
)

// WritePatterns renders a pattern table.
func WritePatterns(w io.Writer, patterns []store.OperationPattern) {
	if len(patterns) == 0 {
		fmt.Fprintln(w, "no patterns recorded")
		return
	}

	headerColor.Fprintf(w, "%-32s %-12s %6s %6s %12s %10s  %s\n",
		"SIGNATURE", "STATUS", "SEEN", "CONF", "SAVINGS", "TOOL", "LAST SEEN")

	for _, p := range patterns {
		status := colorFor(p.AutomationStatus).Sprintf("%-12s", p.AutomationStatus)
		tool := p.BoundToolName
		if tool == "" {
			tool = "-"
		}
		fmt.Fprintf(w, "%-32s %s %6d %5.0f%% %11.4f$ %10s  %s\n",
			p.Signature, status, p.OccurrenceCount, p.ConfidenceScore,
			p.PotentialSavings, tool, p.LastSeen.Format("2006-01-02 15:04"))
	}
}

// WriteSavings renders the ledger rollup, total and per kind.
func WriteSavings(w io.Writer, summary *store.SavingsSummary) {
	if summary.Entries == 0 {
		fmt.Fprintln(w, "no savings recorded")
		return
	}

	headerColor.Fprintln(w, "COST SAVINGS")
	totalColor.Fprintf(w, "  total: %d entries, %.0f tokens, $%.4f\n",
		summary.Entries, summary.TokensSaved, summary.CostSaved)

	kinds := make([]string, 0, len(summary.ByKind))
	for kind := range summary.ByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		totals := summary.ByKind[kind]
		fmt.Fprintf(w, "  %-20s %d entries, %.0f tokens, $%.4f\n",
			kind, totals.Entries, totals.TokensSaved, totals.CostSaved)
	}
}

// WriteTools renders the tool registry.
func WriteTools(w io.Writer, tools []store.RegisteredTool) {
	if len(tools) == 0 {
		fmt.Fprintln(w, "no tools registered")
		return
	}

	headerColor.Fprintf(w, "%-24s %-12s %-40s %s\n", "TOOL", "STATUS", "SCRIPT", "TRIGGERS")
	for _, t := range tools {
		status := toolColorFor(t.Status).Sprintf("%-12s", t.Status)
		fmt.Fprintf(w, "%-24s %s %-40s %d\n",
			t.ToolName, status, t.ScriptReference, len(t.TriggerVocabulary))
	}
}

func colorFor(status store.Status) *color.Color {
	switch status {
	case store.StatusActive, store.StatusImplemented:
		return activeColor
	case store.StatusDeprecated:
		return deadColor
	default:
		return staleColor
	}
}

func toolColorFor(status store.ToolStatus) *color.Color {
	switch status {
	case store.ToolActive:
		return activeColor
	case store.ToolInactive:
		return deadColor
	default:
		return staleColor
	}
}
