package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/dispatch"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
)

func newHelpToolCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "help-tool <tool-id>",
		Short: "Show a tool's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			meta, ok := a.registry.Metadata(id)
			if !ok {
				fmt.Fprintf(a.stderr, "Tool %q not found. Available tools:\n", id)
				dispatch.RenderCatalogue(a.stderr, a.registry)
				return silent(dispatch.ExitUsage)
			}
			dispatch.RenderMetadata(a.stdout, id, meta)

			flags := make([]string, 0, len(params.Canonical))
			for _, name := range params.Canonical {
				flags = append(flags, "--"+params.FlagName(name))
			}
			fmt.Fprintf(a.stdout, "Accepted flags: %s\n", strings.Join(flags, " "))
			return nil
		},
	}
}
