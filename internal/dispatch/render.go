package dispatch

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// ColorRisk paints a risk level for the terminal.
func ColorRisk(level types.RiskLevel) string {
	switch level {
	case types.RiskCritical:
		return color.New(color.FgRed, color.Bold).Sprint(string(level))
	case types.RiskHigh:
		return color.New(color.FgRed).Sprint(string(level))
	case types.RiskMedium:
		return color.New(color.FgYellow).Sprint(string(level))
	default:
		return color.New(color.FgGreen).Sprint(string(level))
	}
}

// RenderMetadata writes the tool's header block.
func RenderMetadata(w io.Writer, id string, meta types.ToolMetadata) {
	title := color.New(color.FgCyan, color.Bold)
	title.Fprintf(w, "\n%s v%s", meta.Name, meta.Version)
	fmt.Fprintf(w, " (%s)\n", id)
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(w, "Category:    %s\n", meta.Category)
	fmt.Fprintf(w, "Author:      %s\n", meta.Author)
	fmt.Fprintf(w, "Description: %s\n", meta.Description)
	if meta.Usage != "" {
		fmt.Fprintf(w, "Usage:       %s\n", meta.Usage)
	}
	if len(meta.Requirements) > 0 {
		fmt.Fprintf(w, "Requires:    %s\n", strings.Join(meta.Requirements, ", "))
	}
	if len(meta.Tags) > 0 {
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(meta.Tags, ", "))
	}
	fmt.Fprintf(w, "Risk level:  %s\n", ColorRisk(meta.RiskLevel))
	if meta.LegalDisclaimer != "" {
		color.New(color.FgYellow).Fprintf(w, "\n⚠️  %s\n", meta.LegalDisclaimer)
	}
	fmt.Fprintln(w)
}

// RenderCatalogue lists tool ids grouped by category.
func RenderCatalogue(w io.Writer, reg core.Registry) {
	groups := reg.ByCategory()
	for _, cat := range types.Categories {
		ids, ok := groups[cat]
		if !ok {
			continue
		}
		color.New(color.FgCyan).Fprintf(w, "%s:\n", cat)
		for _, id := range ids {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}

// RenderErrors prints the red failure summary.
func RenderErrors(w io.Writer, id string, errs []string) {
	if len(errs) == 0 {
		return
	}
	red := color.New(color.FgRed)
	red.Fprintf(w, "✗ %s failed with %d error(s):\n", id, len(errs))
	for _, e := range errs {
		red.Fprintf(w, "  - %s\n", e)
	}
}
