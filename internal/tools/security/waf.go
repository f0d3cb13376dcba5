// Package security holds the defensive assessment tools.
package security

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// Signature identifies a WAF product by response headers and by substrings
// of the Server header.
type Signature struct {
	Name         string
	Headers      []string
	Fingerprints []string
}

var signatures = []Signature{
	{Name: "modsecurity", Headers: []string{"mod-security", "mod-security-message"}, Fingerprints: []string{"modsec", "rules id"}},
	{Name: "cloudflare", Headers: []string{"cf-ray", "cf-cache-status", "cf-request-id"}, Fingerprints: []string{"cloudflare"}},
	{Name: "akamai", Headers: []string{"akamai-cache-status", "akamai-x-cache"}, Fingerprints: []string{"akamai"}},
	{Name: "barracuda", Headers: []string{"x-barracuda-block-id"}, Fingerprints: []string{"barracuda"}},
	{Name: "imperva", Headers: []string{"x-iinfo", "x-cdn"}, Fingerprints: []string{"imperva", "incapsula"}},
	{Name: "fortiweb", Headers: []string{"x-fortiweb"}, Fingerprints: []string{"fortiweb"}},
	{Name: "f5-bigip", Headers: []string{"x-f5-denied"}, Fingerprints: []string{"f5", "bigip"}},
}

// testPayloads are sent in the query string to see whether something in
// front of the application blocks them.
var testPayloads = []struct {
	Kind    string
	Param   string
	Payload string
}{
	{"sql_injection", "id", "' OR '1'='1"},
	{"sql_injection", "id", "1' UNION SELECT NULL--"},
	{"xss", "search", "<script>alert('xss')</script>"},
	{"xss", "search", "<img src=x onerror=alert('xss')>"},
	{"path_traversal", "file", "../../../etc/passwd"},
	{"path_traversal", "file", "....//....//....//etc/passwd"},
}

var blockedStatus = map[int]bool{
	http.StatusUnauthorized:  true,
	http.StatusForbidden:     true,
	http.StatusNotAcceptable: true,
}

var bypassTechniques = []string{
	"URL encoding",
	"Double encoding",
	"Case variation",
	"Comment insertion",
	"Null byte injection",
	"Alternative syntax",
	"Fragmentation",
}

var wafRecommendations = map[types.Band][]string{
	types.BandHigh: {
		"No WAF detected and attack payloads reach the application",
		"Deploy a WAF in front of the application",
		"Fix injection flaws at the source; a WAF is only a compensating control",
	},
	types.BandMedium: {
		"WAF protection is absent or could not be confirmed",
		"Consider deploying a WAF suited to the application",
		"Re-run with --test-payloads to confirm blocking behaviour",
	},
	types.BandLow: {
		"A WAF is in place",
		"Keep WAF rules updated with current threats",
		"Monitor for false positives and evasion attempts",
	},
}

// Detection is one WAF matched by signature.
type Detection struct {
	WAF        string         `json:"waf"`
	Confidence float64        `json:"confidence"`
	Indicators []types.Record `json:"indicators"`
}

// DetectByHeaders matches h against the known signatures. A header hit adds
// 0.3 and a Server fingerprint 0.4, capped at 1. The result is sorted by
// confidence.
func DetectByHeaders(h http.Header) []Detection {
	server := strings.ToLower(h.Get("Server"))
	var out []Detection
	for _, sig := range signatures {
		score := 0.0
		var indicators []types.Record
		for _, name := range sig.Headers {
			if len(h.Values(name)) > 0 {
				score += 0.3
				indicators = append(indicators, types.Record{"type": "header", "name": name, "value": h.Get(name)})
			}
		}
		for _, fp := range sig.Fingerprints {
			if server != "" && strings.Contains(server, fp) {
				score += 0.4
				indicators = append(indicators, types.Record{"type": "fingerprint", "pattern": fp, "location": "Server header"})
			}
		}
		if score > 0 {
			out = append(out, Detection{
				WAF:        strings.ToUpper(sig.Name),
				Confidence: math.Round(min(score, 1)*100) / 100,
				Indicators: indicators,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// suspiciousHeaders returns headers that commonly leak edge or filter
// products.
func suspiciousHeaders(h http.Header) map[string]string {
	out := map[string]string{}
	for k := range h {
		lk := strings.ToLower(k)
		for _, prefix := range []string{"x-", "cf-", "akamai", "mod-"} {
			if strings.HasPrefix(lk, prefix) {
				out[lk] = h.Get(k)
				break
			}
		}
	}
	return out
}

type WAFTool struct {
	core.Base
	env *core.Env
}

type wafParams struct {
	URL          string `param:"url"`
	TestPayloads bool   `param:"test_payloads"`
}

func NewWAF(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &WAFTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:         "WAF Detector",
			Category:     types.CategorySecurity,
			Version:      "2.0.0",
			Description:  "Detects web application firewalls from response signatures and optional payload blocking",
			Usage:        "pantest run waf-detect --url https://example.com [--test-payloads]",
			Requirements: []string{"authorization to test the target when sending payloads"},
			Tags:         []string{"waf", "firewall", "web", "security"},
			RiskLevel:    types.RiskMedium,
		}, env.Log()),
		env: env,
	}
}

func (t *WAFTool) parse(p params.Params) (wafParams, error) {
	var wp wafParams
	if err := params.Require(p, "url"); err != nil {
		return wp, err
	}
	if err := params.Decode(p, &wp); err != nil {
		return wp, err
	}
	if err := params.MustBeURL("url", wp.URL); err != nil {
		return wp, err
	}
	if _, err := url.Parse(wp.URL); err != nil {
		return wp, types.Wrap(types.KindValidation, err, "invalid URL")
	}
	return wp, nil
}

func (t *WAFTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

// probePayloads sends each test payload and reports how many were blocked.
func (t *WAFTool) probePayloads(ctx context.Context, client *http.Client, target string) ([]types.Record, int) {
	base, _ := url.Parse(target)
	var tests []types.Record
	blocked := 0
	for _, tp := range testPayloads {
		if ctx.Err() != nil {
			break
		}
		u := *base
		q := u.Query()
		q.Set(tp.Param, tp.Payload)
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			continue
		}
		resp, err := httpclient.DoWithRetry(ctx, client, req, t.env.Retries())
		if err != nil {
			t.Log().Debugw("Payload request failed", "payload", tp.Payload, "error", err)
			continue
		}
		httpclient.CloseBody(resp)

		isBlocked := blockedStatus[resp.StatusCode]
		if isBlocked {
			blocked++
		}
		tests = append(tests, types.Record{
			"type":        tp.Kind,
			"payload":     tp.Payload,
			"status_code": resp.StatusCode,
			"blocked":     isBlocked,
		})
	}
	return tests, blocked
}

func (t *WAFTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	wp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	client, err := t.env.HTTPClient()
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "http client"))
	}
	page, err := httpclient.Fetch(ctx, client, wp.URL, t.env.Retries(), nil)
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "failed to fetch %s", wp.URL))
	}

	detections := DetectByHeaders(page.Header)
	names := make([]string, 0, len(detections))
	best := 0.0
	for _, d := range detections {
		names = append(names, d.WAF)
		best = max(best, d.Confidence)
	}
	t.AddResult(types.Record{
		"analysis":           "headers",
		"status_code":        page.StatusCode,
		"detected_waf":       detections,
		"suspicious_headers": suspiciousHeaders(page.Header),
	})

	var score types.Score
	switch {
	case len(detections) == 0:
		score.Add("no_waf_signature", 0.5, true, "no known WAF headers or Server fingerprint")
	case best < 0.6:
		score.Add("weak_waf_signature", 0.2, true, fmt.Sprintf("best confidence %.2f", best))
	default:
		score.Add("waf_signature", 0, false, strings.Join(names, ", "))
	}

	payloadWAF := false
	if wp.TestPayloads {
		t.Log().LogSecurityEvent(ctx, "waf_payload_probe", "MEDIUM", map[string]interface{}{
			"target":   wp.URL,
			"payloads": len(testPayloads),
		})
		tests, blocked := t.probePayloads(ctx, client, wp.URL)
		payloadWAF = blocked > 0
		pct := 0.0
		if len(tests) > 0 {
			pct = float64(blocked) / float64(len(tests))
			score.Add("payloads_not_blocked", 0.5*(1-pct), blocked < len(tests),
				fmt.Sprintf("%d of %d payloads blocked", blocked, len(tests)))
		} else {
			t.AddWarning("no payload request completed")
		}
		t.AddResult(types.Record{
			"analysis":           "payloads",
			"payload_tests":      tests,
			"blocked_payloads":   blocked,
			"blocked_percentage": math.Round(pct*10000) / 100,
			"waf_detected":       payloadWAF,
		})
	} else {
		score.Note("payload_tests", "skipped")
	}

	detected := len(detections) > 0 || payloadWAF
	level := "NONE"
	if detected {
		level = "HIGH"
		if best < 0.6 && !payloadWAF {
			level = "LOW"
		}
		t.AddResult(types.Record{"analysis": "rules", "potential_bypasses": bypassTechniques})
		t.AddSuccess(fmt.Sprintf("WAF detected: %s", strings.Join(names, ", ")))
	} else {
		t.AddWarning("no WAF detected")
	}

	a := types.Assess(&score, types.VulnerabilityVerdicts, wafRecommendations)
	for _, r := range a.Recommendations {
		t.AddRecommendation(r)
	}
	return a.Apply(types.Record{
		"url":                wp.URL,
		"waf_detected":       detected,
		"detected_firewalls": names,
		"protection_level":   level,
	})
}
