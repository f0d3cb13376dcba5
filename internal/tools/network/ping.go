package network

import (
	"context"
	"math"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

var (
	lossPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)% (?:packet )?loss`)
	// rtt min/avg/max summary line
	rttPattern     = regexp.MustCompile(`= [\d.]+/([\d.]+)/[\d.]+`)
	winAvgPattern  = regexp.MustCompile(`Average = (\d+)ms`)
	replyPattern   = regexp.MustCompile(`(?i)bytes from|reply from`)
	defaultProbeTo = 80
)

type PingTool struct {
	core.Base
	env *core.Env
}

type pingParams struct {
	Host  string `param:"host"`
	Count int    `param:"count"`
	Port  int    `param:"port"`
}

func NewPing(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &PingTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:         "Ping Tool",
			Category:     types.CategoryNetwork,
			Description:  "Checks host reachability and round-trip latency",
			Usage:        "pantest run ping --host 8.8.8.8 [--count 4] [--port 443]",
			Requirements: []string{"ping (optional)"},
			Tags:         []string{"network", "connectivity", "latency"},
		}, env.Log()),
		env: env,
	}
}

func (t *PingTool) parse(p params.Params) (pingParams, error) {
	pp := pingParams{Count: 4, Port: defaultProbeTo}
	if err := params.Require(p, "host"); err != nil {
		return pp, err
	}
	if err := params.Decode(p, &pp); err != nil {
		return pp, err
	}
	if err := params.MustBeHost("host", pp.Host); err != nil {
		return pp, err
	}
	if pp.Count < 1 || pp.Count > 100 {
		return pp, types.NewError(types.KindValidation, "count must be between 1 and 100")
	}
	if !params.IsPort(pp.Port) {
		return pp, types.NewError(types.KindValidation, "port must be between 1 and 65535")
	}
	return pp, nil
}

func (t *PingTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *PingTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	pp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	var r types.Record
	if t.env.Platform != nil && t.env.Platform.HasBinary("ping") {
		r, err = t.icmp(ctx, pp)
	} else {
		t.AddWarning("ping binary not found, falling back to TCP connect probes")
		r, err = t.tcp(ctx, pp)
	}
	if err != nil {
		return t.Fail(err)
	}

	t.AddResult(r)
	if r["reachable"] == true {
		t.AddSuccess(pp.Host + " is reachable")
	}
	return types.Record{"host": pp.Host, "reachable": r["reachable"], "method": r["method"]}
}

func (t *PingTool) icmp(ctx context.Context, pp pingParams) (types.Record, error) {
	timeout := t.env.Timeout()
	args := []string{"-c", strconv.Itoa(pp.Count), "-W", strconv.Itoa(int(timeout.Seconds())), pp.Host}
	if t.env.Platform.IsWindows() {
		args = []string{"-n", strconv.Itoa(pp.Count), "-w", strconv.Itoa(int(timeout.Milliseconds())), pp.Host}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout*time.Duration(pp.Count)+5*time.Second)
	defer cancel()
	out, runErr := runCommand(ctx, "ping", args...)
	if ctx.Err() == context.DeadlineExceeded {
		return nil, types.NewError(types.KindTool, "ping timeout for %s", pp.Host)
	}
	return parsePingOutput(pp.Host, pp.Count, string(out), runErr == nil), nil
}

func parsePingOutput(host string, count int, out string, exitOK bool) types.Record {
	r := types.Record{
		"host":      host,
		"method":    "icmp",
		"count":     count,
		"reachable": exitOK && replyPattern.MatchString(out),
		"output":    out,
	}
	if m := lossPattern.FindStringSubmatch(out); m != nil {
		loss, _ := strconv.ParseFloat(m[1], 64)
		r["packet_loss"] = loss
	}
	if m := rttPattern.FindStringSubmatch(out); m != nil {
		avg, _ := strconv.ParseFloat(m[1], 64)
		r["avg_rtt_ms"] = avg
	} else if m := winAvgPattern.FindStringSubmatch(out); m != nil {
		avg, _ := strconv.ParseFloat(m[1], 64)
		r["avg_rtt_ms"] = avg
	}
	return r
}

// tcp measures connect latency to host:port count times.
func (t *PingTool) tcp(ctx context.Context, pp pingParams) (types.Record, error) {
	addr := net.JoinHostPort(pp.Host, strconv.Itoa(pp.Port))
	d := net.Dialer{Timeout: t.env.Timeout()}

	var rtts []float64
	for i := 0; i < pp.Count; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		start := time.Now()
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			t.AddOutput("probe " + strconv.Itoa(i+1) + ": " + err.Error())
			continue
		}
		conn.Close()
		rtts = append(rtts, float64(time.Since(start).Microseconds())/1000)
	}

	loss := float64(pp.Count-len(rtts)) / float64(pp.Count) * 100
	r := types.Record{
		"host":        pp.Host,
		"method":      "tcp",
		"port":        pp.Port,
		"count":       pp.Count,
		"received":    len(rtts),
		"reachable":   len(rtts) > 0,
		"packet_loss": math.Round(loss*100) / 100,
	}
	if len(rtts) > 0 {
		sum := 0.0
		for _, v := range rtts {
			sum += v
		}
		r["avg_rtt_ms"] = math.Round(sum/float64(len(rtts))*1000) / 1000
	}
	return r, nil
}
