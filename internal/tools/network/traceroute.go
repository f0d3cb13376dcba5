package network

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

var (
	posixHop   = regexp.MustCompile(`^\s*(\d+)\s+([\w.-]+)\s+\(([\d.:a-fA-F]+)\)\s+(.*)$`)
	windowsHop = regexp.MustCompile(`^\s*(\d+)\s+.*?(<1|\d+)\s+ms.*?\[?([\d.]+)\]?\s*$`)
	hopTimeout = regexp.MustCompile(`^\s*(\d+)\s+(\*\s*)+$`)
	latency    = regexp.MustCompile(`([\d.]+)\s*ms`)
)

type TracerouteTool struct {
	core.Base
	env *core.Env
}

type tracerouteParams struct {
	Host    string `param:"host"`
	MaxHops int    `param:"max_hops"`
}

func NewTraceroute(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &TracerouteTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:         "Traceroute",
			Category:     types.CategoryNetwork,
			Description:  "Traces the network path to a host using the system traceroute",
			Usage:        "pantest run traceroute --host 8.8.8.8 [-P max_hops=30]",
			Requirements: []string{"traceroute or tracert"},
			Tags:         []string{"network", "routing", "path"},
		}, env.Log()),
		env: env,
	}
}

func (t *TracerouteTool) binary() string {
	if t.env.Platform != nil && t.env.Platform.IsWindows() {
		return "tracert"
	}
	return "traceroute"
}

func (t *TracerouteTool) parse(p params.Params) (tracerouteParams, error) {
	tp := tracerouteParams{MaxHops: 30}
	if err := params.Require(p, "host"); err != nil {
		return tp, err
	}
	if err := params.Decode(p, &tp); err != nil {
		return tp, err
	}
	if err := params.MustBeHost("host", tp.Host); err != nil {
		return tp, err
	}
	if tp.MaxHops < 1 || tp.MaxHops > 255 {
		return tp, types.NewError(types.KindValidation, "max_hops must be between 1 and 255")
	}
	return tp, nil
}

func (t *TracerouteTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *TracerouteTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	tp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	bin := t.binary()
	if t.env.Platform != nil && !t.env.Platform.HasBinary(bin) {
		return t.Fail(types.NewError(types.KindTool, "%s is not installed", bin))
	}

	timeout := t.env.Timeout()
	args := []string{"-m", strconv.Itoa(tp.MaxHops), "-w", strconv.Itoa(int(timeout.Seconds())), tp.Host}
	if bin == "tracert" {
		args = []string{"-h", strconv.Itoa(tp.MaxHops), "-w", strconv.Itoa(int(timeout.Milliseconds())), tp.Host}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()
	t.Log().Infow("Tracing route", "host", tp.Host, "max_hops", tp.MaxHops)
	out, err := runCommand(ctx, bin, args...)
	if ctx.Err() == context.DeadlineExceeded {
		return t.Fail(types.NewError(types.KindTool, "traceroute timeout for %s", tp.Host))
	}
	if err != nil && len(out) == 0 {
		return t.Fail(types.Wrap(types.KindTool, err, "traceroute failed"))
	}

	hops := ParseHops(string(out))
	for _, h := range hops {
		t.AddResult(h)
	}
	return types.Record{"host": tp.Host, "max_hops": tp.MaxHops, "total_hops": len(hops)}
}

// ParseHops extracts one record per hop from traceroute or tracert output.
func ParseHops(out string) []types.Record {
	hops := []types.Record{}
	for _, line := range strings.Split(out, "\n") {
		if m := posixHop.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			hops = append(hops, types.Record{
				"hop": n, "hostname": m[2], "ip": m[3], "latencies_ms": latencies(m[4]),
			})
			continue
		}
		if m := hopTimeout.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			hops = append(hops, types.Record{"hop": n, "ip": "*", "latencies_ms": []float64{}})
			continue
		}
		if m := windowsHop.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			hops = append(hops, types.Record{"hop": n, "ip": m[3], "latencies_ms": latencies(line)})
		}
	}
	return hops
}

func latencies(s string) []float64 {
	out := []float64{}
	for _, m := range latency.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}
