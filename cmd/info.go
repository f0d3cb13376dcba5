package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the banner, platform and tool counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := a.stdout
			printBanner(w)

			probe := a.probe
			fmt.Fprintf(w, "Platform:     %s (%d CPUs, %d worker threads)\n",
				probe.Family(), probe.LogicalCPUs(), probe.OptimalThreadCount())
			fmt.Fprintf(w, "Session:      %s (started %s)\n",
				a.session.ID(), a.session.StartTime().Format("15:04:05"))
			fmt.Fprintf(w, "Output dir:   %s\n", a.cfg.OutputDir)
			fmt.Fprintln(w)

			groups := a.registry.ByCategory()
			t := newTable(w)
			t.AppendHeader(table.Row{"Category", "Tools"})
			total := 0
			for _, cat := range types.Categories {
				n := len(groups[cat])
				if n == 0 {
					continue
				}
				t.AppendRow(table.Row{cat, n})
				total += n
			}
			t.AppendFooter(table.Row{"Total", total})
			t.Render()

			color.New(color.FgYellow).Fprintln(w,
				"\nFor authorized security testing and education only.")
			return nil
		},
	}
}
