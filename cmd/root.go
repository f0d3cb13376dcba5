// Package cmd implements the pantest command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/config"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/dispatch"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/guard"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/platform"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/registry"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/session"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/shutdown"
)

const version = "1.0.0"

// app holds the process-wide collaborators. They are built once, in the
// root command's PersistentPreRunE, and handed to each subcommand.
type app struct {
	v       *viper.Viper
	stdout  io.Writer
	stderr  io.Writer
	cfgFile string

	// Injected by tests; nil means detect and time.Now.
	probe *platform.Probe
	now   func() time.Time
	env   func(*core.Env)

	cfg        *config.Config
	log        *logger.Logger
	registry   core.Registry
	session    *session.Session
	dispatcher *dispatch.Dispatcher
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:      viper.New(),
		stdout: stdout,
		stderr: stderr,
	}
}

func (a *app) setup() error {
	if a.dispatcher != nil {
		return nil
	}

	cfg, warnings, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return internalErr(err)
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return internalErr(fmt.Errorf("failed to initialize logger: %w", err))
	}
	for _, w := range warnings {
		log.Warnw("Configuration warning", "warning", w)
	}

	probe := a.probe
	if probe == nil {
		probe = platform.Detect()
	}
	env := core.NewEnv(cfg, log, probe)
	if a.now != nil {
		env.Now = a.now
	}
	if a.env != nil {
		a.env(env)
	}

	reg := registry.New(env)
	if err := tools.RegisterDefaults(reg); err != nil {
		log.Critical("Tool registration failed", "error", err)
		return internalErr(err)
	}

	a.probe = probe
	a.cfg = cfg
	a.log = log
	a.registry = reg
	a.session = session.New(a.now)
	a.dispatcher = &dispatch.Dispatcher{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Session:  a.session,
		Guard:    guard.New(probe, log),
		Stderr:   a.stderr,
		Now:      a.now,
	}

	log.Debugw("Initialized",
		"config_file", a.v.ConfigFileUsed(),
		"session_id", a.session.ID(),
		"platform", probe.Family(),
		"tools", len(reg.IDs()),
	)
	return nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pantest",
		Short: "Security testing toolkit",
		Long: `pantest - security testing toolkit

A catalogue of small network, web, OSINT, phishing-analysis and utility
tools behind one dispatcher. Every run prints a JSON envelope on stdout;
metadata, progress and errors go to stderr.

Only test systems you own or are authorized in writing to assess.

COMMANDS:
  pantest info                        - Banner, platform and tool counts
  pantest list-tools                  - All tools
  pantest list-by-category [CATEGORY] - Tools in one category
  pantest run <tool-id> [flags]       - Run a tool
  pantest help-tool <tool-id>         - Show a tool's metadata
  pantest config-show                 - Effective configuration
  pantest server --port 8080          - HTTP API`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErr("%v", err)
	})

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (.json, .yaml or .yml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error, critical)")
	root.PersistentFlags().String("log-format", "", "log format (console, json)")
	_ = a.v.BindPFlag("logger.level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("logger.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(
		newInfoCmd(a),
		newListToolsCmd(a),
		newListByCategoryCmd(a),
		newRunCmd(a),
		newHelpToolCmd(a),
		newConfigShowCmd(a),
		newServerCmd(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(context.Background(), newApp(os.Stdout, os.Stderr), os.Args[1:])
}

func execute(ctx context.Context, a *app, args []string) (code int) {
	handler := shutdown.NewHandler(nil)
	ctx, stop := handler.Notify(ctx)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			if a.log != nil {
				a.log.LogPanic(ctx, r, "cli")
				a.log.Critical("Internal error", "panic", fmt.Sprint(r))
			}
			color.New(color.FgRed).Fprintf(a.stderr, "internal error: %v\n", r)
			code = dispatch.ExitInternal
		}
		a.close()
	}()

	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	if handler.Interrupted() {
		fmt.Fprintln(a.stderr, "interrupted")
		return dispatch.ExitInterrupted
	}
	code = exitCode(err)
	if err != nil {
		reportError(a.stderr, err)
	}
	return code
}
