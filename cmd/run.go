package cmd

import (
	"encoding/json"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
)

var paramUsage = map[string]string{
	"host":           "target IPv4 address or hostname",
	"url":            "target URL (http:// or https://)",
	"domain":         "target domain",
	"port":           "single port",
	"ports":          "port list or range, e.g. 22,80,8000-8100",
	"email":          "email address",
	"subject":        "email subject line",
	"target":         "simulation target",
	"type":           "tool-specific mode or type",
	"duration":       "run time in seconds",
	"threads":        "worker count",
	"output":         "write the envelope to this file (relative to output_dir)",
	"framework":      "framework for defense snippets",
	"alias":          "custom short alias",
	"fake_domain":    "domain shown in a masked link",
	"method":         "tool-specific method",
	"base_url":       "base URL for generated short links",
	"generate_qr":    "also write a QR code image",
	"tracking":       "add tracking parameters",
	"text":           "input text",
	"algorithm":      "hash algorithm",
	"authorized":     "confirm written authorization for high-risk tools",
	"operation":      "encode or decode",
	"length":         "length of generated values",
	"count":          "number of generated values",
	"file":           "input file path",
	"test_payloads":  "send active test payloads",
	"all_algorithms": "compute every supported hash",
	"query":          "search query",
	"symbols":        "include symbols",
	"token":          "JWT to decode",
	"cidr":           "address with prefix, e.g. 192.168.1.0/24",
	"hash":           "digest to crack",
}

func newRunCmd(a *app) *cobra.Command {
	var extra []string
	cmd := &cobra.Command{
		Use:   "run <tool-id> [flags]",
		Short: "Run a tool",
		Long: `Run a tool and print its JSON envelope on stdout.

Flags are the canonical parameter names. Use -P key=value for aliases or
tool-specific keys; a bare -P key sets a boolean. Running a tool without
any parameters shows its metadata.`,
		Example: `  pantest run hash --text test --algorithm sha256
  pantest run port-scan --host 192.168.1.10 --ports 1-1024 --output scan.json
  pantest run ip-geo -P ip=8.8.8.8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := collectParams(cmd.Flags(), extra)
			if err != nil {
				return err
			}
			return a.runTool(cmd, args[0], raw)
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	for _, name := range params.Canonical {
		usage := paramUsage[name]
		if params.IsBoolean(name) {
			flags.Bool(params.FlagName(name), false, usage)
		} else {
			flags.String(params.FlagName(name), "", usage)
		}
	}
	flags.StringArrayVarP(&extra, "param", "P", nil, "extra parameter as key=value (repeatable)")
	return cmd
}

// collectParams builds the raw bundle: canonical flags first, then -P
// pairs in the order given.
func collectParams(flags *pflag.FlagSet, extra []string) (params.Raw, error) {
	var raw params.Raw
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "param" {
			return
		}
		name := strings.ReplaceAll(f.Name, "-", "_")
		if params.IsBoolean(name) {
			raw.Add(name, cast.ToBool(f.Value.String()))
			return
		}
		raw.Add(name, f.Value.String())
	})
	for _, kv := range extra {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, usageErr("invalid --param %q, expected key=value", kv)
		}
		if !ok {
			raw.Add(key, true)
			continue
		}
		raw.Add(key, value)
	}
	return raw, nil
}

func (a *app) runTool(cmd *cobra.Command, id string, raw params.Raw) error {
	out := a.dispatcher.Run(cmd.Context(), id, raw)
	if out.Envelope == nil {
		return silent(out.ExitCode)
	}

	data, err := json.MarshalIndent(out.Envelope, "", "  ")
	if err != nil {
		a.log.Critical("Failed to encode envelope", "tool", id, "error", err)
		return internalErr(err)
	}
	if _, err := a.stdout.Write(append(data, '\n')); err != nil {
		return internalErr(err)
	}
	if out.OutputPath != "" {
		color.New(color.FgGreen).Fprintf(a.stderr, "✓ Envelope written to %s\n", out.OutputPath)
	}
	return silent(out.ExitCode)
}
