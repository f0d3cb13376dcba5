package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigShowCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "config-show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			effective := a.cfg.Effective()
			switch strings.ToLower(format) {
			case "json":
				data, err := json.MarshalIndent(effective, "", "  ")
				if err != nil {
					return internalErr(err)
				}
				fmt.Fprintln(a.stdout, string(data))
			case "yaml", "yml":
				enc := yaml.NewEncoder(a.stdout)
				enc.SetIndent(2)
				if err := enc.Encode(effective); err != nil {
					return internalErr(err)
				}
				return enc.Close()
			default:
				return usageErr("unsupported format %q (json or yaml)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format (json, yaml)")
	return cmd
}
