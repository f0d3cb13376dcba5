// Package network holds the host and transport level tools.
package network

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/worker"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const (
	defaultPorts       = "1-1024"
	defaultScanThreads = 50
	maxScanPorts       = 65535
)

// commonServices names well-known TCP ports.
var commonServices = map[int]string{
	21: "FTP", 22: "SSH", 23: "Telnet", 25: "SMTP", 53: "DNS",
	80: "HTTP", 110: "POP3", 143: "IMAP", 443: "HTTPS", 445: "SMB",
	3306: "MySQL", 3389: "RDP", 5432: "PostgreSQL", 5984: "CouchDB",
	6379: "Redis", 8000: "HTTP-Alt", 8080: "HTTP-Proxy", 8443: "HTTPS-Alt",
	9200: "Elasticsearch", 27017: "MongoDB", 50070: "Hadoop",
}

// ServiceName returns the well-known service on port, or "Unknown".
func ServiceName(port int) string {
	if s, ok := commonServices[port]; ok {
		return s
	}
	return "Unknown"
}

// ParsePorts expands a spec like "22,80,8000-8010" into a sorted,
// de-duplicated list.
func ParsePorts(spec string) ([]int, error) {
	seen := map[int]bool{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if i := strings.Index(part, "-"); i >= 0 {
			lo, hi = part[:i], part[i+1:]
		}
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, types.NewError(types.KindValidation, "invalid port %q", part)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, types.NewError(types.KindValidation, "invalid port %q", part)
		}
		if start < 1 || end > maxScanPorts || start > end {
			return nil, types.NewError(types.KindValidation, "port range %q out of bounds", part)
		}
		for p := start; p <= end; p++ {
			seen[p] = true
		}
	}
	if len(seen) == 0 {
		return nil, types.NewError(types.KindValidation, "no ports to scan")
	}
	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

type PortScanTool struct {
	core.Base
	env *core.Env
}

type portScanParams struct {
	Host    string `param:"host"`
	Ports   string `param:"ports"`
	Threads int    `param:"threads"`
	Banner  bool   `param:"banner"`
}

func NewPortScan(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &PortScanTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:         "Port Scanner",
			Category:     types.CategoryNetwork,
			Version:      "2.0.0",
			Description:  "Concurrent TCP connect scan for open ports and their services",
			Usage:        "pantest run port-scan --host 192.168.1.1 --ports 1-1024 [--threads 50]",
			Requirements: []string{},
			Tags:         []string{"network", "scanning", "ports", "reconnaissance"},
			RiskLevel:    types.RiskMedium,
		}, env.Log()),
		env: env,
	}
}

func (t *PortScanTool) parse(p params.Params) (portScanParams, []int, error) {
	pp := portScanParams{Ports: defaultPorts, Threads: defaultScanThreads}
	if err := params.Require(p, "host"); err != nil {
		return pp, nil, err
	}
	if err := params.Decode(p, &pp); err != nil {
		return pp, nil, err
	}
	if err := params.MustBeHost("host", pp.Host); err != nil {
		return pp, nil, err
	}
	ports, err := ParsePorts(pp.Ports)
	if err != nil {
		return pp, nil, err
	}
	pp.Threads = t.env.PoolSize(pp.Threads)
	return pp, ports, nil
}

func (t *PortScanTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, _, err := t.parse(p); return err })
}

func (t *PortScanTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	pp, ports, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	timeout := t.env.Timeout()
	if timeout > 3*time.Second {
		timeout = 3 * time.Second
	}

	t.Log().Infow("Starting port scan", "host", pp.Host, "ports", len(ports), "threads", pp.Threads)
	start := time.Now()

	var mu sync.Mutex
	open := []int{}
	pool := worker.New(pp.Threads, 0, t.Log())
	err = worker.Each(ctx, pool, ports, func(ctx context.Context, port int) error {
		banner, ok := probePort(ctx, pp.Host, port, timeout, pp.Banner)
		if !ok {
			return nil
		}
		r := types.Record{"port": port, "state": "open", "service": ServiceName(port)}
		if banner != "" {
			r["banner"] = banner
		}
		t.AddResult(r)
		mu.Lock()
		open = append(open, port)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.AddWarning("scan incomplete: " + err.Error())
	}

	sort.Ints(open)
	elapsed := time.Since(start).Seconds()
	t.AddSuccess("found " + strconv.Itoa(len(open)) + " open ports on " + pp.Host)
	return types.Record{
		"host":                pp.Host,
		"total_ports_scanned": len(ports),
		"open_ports":          len(open),
		"elapsed_time":        float64(int(elapsed*100)) / 100,
		"ports":               open,
	}
}

// probePort reports whether a TCP connection to host:port succeeds and,
// when asked, returns the first line the service sends.
func probePort(ctx context.Context, host string, port int, timeout time.Duration, grab bool) (string, bool) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return "", false
	}
	defer conn.Close()
	if !grab {
		return "", true
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 256)
	n, _ := conn.Read(buf)
	line := strings.TrimSpace(strings.SplitN(string(buf[:n]), "\n", 2)[0])
	return line, true
}
