package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/dispatch"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func printBanner(w io.Writer) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(w, "pantest v%s\n", version)
	fmt.Fprintln(w, "Security testing toolkit")
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

// printToolTable lists the tools in the given categories, or all of them
// when cats is empty, and returns how many rows were printed.
func printToolTable(w io.Writer, reg core.Registry, cats ...types.Category) int {
	groups := reg.ByCategory()
	order := cats
	if len(order) == 0 {
		order = types.Categories
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Category", "ID", "Risk", "Description"})
	rows := 0
	for _, cat := range order {
		for _, id := range groups[cat] {
			meta, _ := reg.Metadata(id)
			t.AppendRow(table.Row{cat, id, dispatch.ColorRisk(meta.RiskLevel), meta.Description})
			rows++
		}
	}
	if rows == 0 {
		fmt.Fprintln(w, "No tools found.")
		return 0
	}
	t.Render()
	fmt.Fprintf(w, "%d %s\n", rows, plural(rows, "tool", "tools"))
	return rows
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
