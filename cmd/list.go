package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

func newListToolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-tools",
		Short: "List every tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printToolTable(a.stdout, a.registry)
			return nil
		},
	}
}

func newListByCategoryCmd(a *app) *cobra.Command {
	names := make([]string, len(types.Categories))
	for i, c := range types.Categories {
		names[i] = string(c)
	}
	return &cobra.Command{
		Use:   "list-by-category [CATEGORY|all]",
		Short: "List the tools in one category",
		Long:  "List the tools in one category. Categories: " + strings.Join(names, ", "),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || strings.EqualFold(args[0], "all") {
				printToolTable(a.stdout, a.registry)
				return nil
			}
			cat, ok := types.ParseCategory(args[0])
			if !ok {
				return usageErr("unknown category %q (choose from %s)", args[0], strings.Join(names, ", "))
			}
			printToolTable(a.stdout, a.registry, cat)
			return nil
		},
	}
}
