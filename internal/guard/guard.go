// Package guard caps resource-hungry parameters and enforces authorization
// before a tool runs.
package guard

import (
	"github.com/spf13/cast"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/platform"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const (
	SimulatorID = "ddos-sim"

	MaxSimulationSeconds     = 60
	DefaultSimulationSeconds = 30
	DefaultSimulationThreads = 10
)

type Guard struct {
	probe *platform.Probe
	log   *logger.Logger
}

func New(probe *platform.Probe, log *logger.Logger) *Guard {
	if probe == nil {
		probe = platform.Detect()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Guard{probe: probe, log: log.WithComponent("guard")}
}

// Sanitize returns a capped copy of p. The input bundle is never modified.
// A CRITICAL tool without authorized=true yields a Validation error and must
// not be run.
func (g *Guard) Sanitize(id string, meta types.ToolMetadata, p params.Params) (params.Params, error) {
	out := p.Clone()
	optimal := g.probe.OptimalThreadCount()

	if id == SimulatorID {
		duration, err := intParam(out, "duration", DefaultSimulationSeconds)
		if err != nil {
			return out, err
		}
		out["duration"] = clamp(duration, 0, MaxSimulationSeconds)

		threads, err := intParam(out, "threads", min(optimal, DefaultSimulationThreads))
		if err != nil {
			return out, err
		}
		out["threads"] = clamp(threads, 1, optimal)

		if !out.Bool("authorized") {
			g.log.Warnw("Traffic simulation requested without authorization",
				"tool", id,
				"target", out.String("target"),
			)
		}
	}

	if out.Has("threads") {
		threads, err := intParam(out, "threads", 1)
		if err != nil {
			return out, err
		}
		out["threads"] = clamp(threads, 1, g.probe.MaxThreads())
	}

	if meta.RiskLevel == types.RiskCritical && !out.Bool("authorized") {
		g.log.Warnw("Refusing critical tool without authorization", "tool", id)
		return out, types.NewError(types.KindValidation,
			"%s is a CRITICAL risk tool: pass --authorized to confirm you have written permission to test the target", id)
	}

	return out, nil
}

func intParam(p params.Params, name string, def int) (int, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, types.Wrap(types.KindValidation, err, "%s must be a whole number", name)
	}
	return n, nil
}

func clamp(n, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(n, hi))
}
