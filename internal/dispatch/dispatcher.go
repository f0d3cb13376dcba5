// Package dispatch drives one tool invocation from raw parameters to a
// result envelope.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/config"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/export"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/guard"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/session"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInternal    = 3
	ExitInterrupted = 130
)

type Dispatcher struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry core.Registry
	Session  *session.Session
	Guard    *guard.Guard
	// Stderr receives the metadata block, listings and the error summary.
	Stderr io.Writer
	Now    func() time.Time
}

// Outcome is the result of one dispatch.
type Outcome struct {
	// Envelope is nil when the tool was not found or only help was shown.
	Envelope *types.Envelope
	ExitCode int
	Help     bool
	NotFound bool
	// OutputPath is where the envelope was written, if anywhere.
	OutputPath string
	// ReportPath is the tool-local {tool, results, errors} report written
	// next to an output file.
	ReportPath string
}

// targetParams are checked in order for the value a run is aimed at.
var targetParams = []string{"host", "url", "domain", "target", "email"}

func primaryTarget(p params.Params) string {
	for _, name := range targetParams {
		if v := p.String(name); v != "" {
			return v
		}
	}
	return ""
}

type recommender interface {
	Recommendations() []string
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Dispatcher) stderr() io.Writer {
	if d.Stderr == nil {
		return io.Discard
	}
	return d.Stderr
}

func (d *Dispatcher) log() *logger.Logger {
	if d.Logger == nil {
		return logger.Nop()
	}
	return d.Logger
}

// Run looks up id, renders its metadata and, when raw is non-empty, guards,
// validates and runs it.
func (d *Dispatcher) Run(ctx context.Context, id string, raw params.Raw) Outcome {
	log := d.log().WithComponent("dispatch").WithTool(id)

	tool, err := d.Registry.New(id)
	if err != nil {
		log.Warnw("Tool lookup failed", "error", err)
		fmt.Fprintf(d.stderr(), "Tool %q not found. Available tools:\n", id)
		RenderCatalogue(d.stderr(), d.Registry)
		return Outcome{ExitCode: ExitUsage, NotFound: true}
	}

	meta := tool.Metadata()
	RenderMetadata(d.stderr(), id, meta)

	if len(raw) == 0 {
		return Outcome{ExitCode: ExitOK, Help: true}
	}

	ctx, span := d.log().StartSpan(ctx, "dispatch.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.id", id),
		attribute.String("tool.risk", string(meta.RiskLevel)),
	)

	start := d.now()
	env := &types.Envelope{
		Tool:      id,
		Timestamp: types.Timestamp(start),
	}
	out := Outcome{Envelope: env}

	finish := func(code int) Outcome {
		env.ElapsedMS = d.now().Sub(start).Milliseconds()
		out.ExitCode = code
		if !tool.State().Terminal() {
			if code == ExitOK {
				tool.SetState(types.StateDone)
			} else {
				tool.SetState(types.StateFailed)
			}
		}
		if code != ExitOK {
			span.SetStatus(codes.Error, "tool failed")
			RenderErrors(d.stderr(), id, env.Errors)
		}
		return out
	}

	if d.Session != nil && !d.Session.CheckQuota() {
		env.Errors = []string{types.NewError(types.KindValidation,
			"session quota of %s exhausted, start a new session", session.Quota).Error()}
		log.Warnw("Session quota exhausted", "session_id", d.Session.ID())
		return finish(ExitUsage)
	}

	p := params.Normalize(raw)
	env.Inputs = p.Map()
	if target := primaryTarget(p); target != "" {
		log = log.WithTarget(target)
	}

	if d.Config != nil && p.Has("output") {
		path, err := export.ResolvePath(d.Config.OutputDir, p.String("output"))
		if err != nil {
			log.Warnw("Rejected output path", "output", p.String("output"), "error", err)
			tool.SetState(types.StateFailed)
			env.Errors = []string{err.Error()}
			return finish(ExitFailure)
		}
		out.OutputPath = path
	}

	if d.Guard != nil {
		guarded, err := d.Guard.Sanitize(id, meta, p)
		env.Inputs = guarded.Map()
		if err != nil {
			tool.SetState(types.StateFailed)
			env.Errors = []string{err.Error()}
			d.writeOutput(&out, log)
			return finish(ExitFailure)
		}
		p = guarded
	}

	tool.SetState(types.StateValidating)
	if !tool.Validate(p) {
		tool.SetState(types.StateFailed)
		env.Errors = tool.Errors()
		if len(env.Errors) == 0 {
			env.Errors = []string{"parameter validation failed"}
		}
		d.writeOutput(&out, log)
		return finish(ExitFailure)
	}

	tool.SetState(types.StateRunning)
	log.Infow("Running tool", "inputs", p.Keys())
	summary, panicErr := d.invoke(ctx, tool, p, log)

	env.Results = tool.Results()
	env.Errors = tool.Errors()
	if panicErr != nil {
		env.Results = nil
		env.Errors = append(env.Errors, panicErr.Error())
	}
	env.Absorb(summary)
	if env.Recommendations == nil {
		if r, ok := tool.(recommender); ok {
			if recs := r.Recommendations(); len(recs) > 0 {
				env.Recommendations = recs
			}
		}
	}
	if warnings := tool.Warnings(); len(warnings) > 0 {
		if env.Fields == nil {
			env.Fields = types.Record{}
		}
		env.Fields["warnings"] = warnings
	}

	ran := summary != nil
	if ran && len(env.Errors) == 0 {
		tool.SetState(types.StateDone)
	} else {
		tool.SetState(types.StateFailed)
	}

	d.writeOutput(&out, log)

	code := ExitFailure
	if env.Succeeded(ran) {
		code = ExitOK
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		code = ExitInterrupted
	}

	log.LogDuration(ctx, "tool."+id, start, "exit_code", code, "results", len(env.Results))
	return finish(code)
}

// invoke calls Run and converts a panic into a Tool error.
func (d *Dispatcher) invoke(ctx context.Context, tool core.Tool, p params.Params, log *logger.Logger) (summary types.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.LogPanic(ctx, r, "tool.run")
			summary = nil
			err = types.NewError(types.KindTool, "internal tool error: %v", r)
		}
	}()
	return tool.Run(logger.WithLogger(ctx, log), p), nil
}

func (d *Dispatcher) writeOutput(out *Outcome, log *logger.Logger) {
	if out.OutputPath == "" {
		return
	}
	if err := export.WriteJSON(out.OutputPath, out.Envelope); err != nil {
		log.Errorw("Failed to write envelope", "path", out.OutputPath, "error", err)
		out.Envelope.Errors = append(out.Envelope.Errors, err.Error())
		out.OutputPath = ""
		return
	}
	log.Infow("Envelope written", "path", out.OutputPath)

	report := export.ArtifactPath(d.Config.OutputDir, out.Envelope.Tool, "report", out.OutputPath, "json")
	if err := export.WriteToolReport(report, out.Envelope.Tool, out.Envelope.Results, out.Envelope.Errors); err != nil {
		log.Warnw("Failed to write tool report", "path", report, "error", err)
		return
	}
	out.ReportPath = report
}
