// Package clickjacking checks framing protections, builds proof-of-concept
// pages and prints the headers that fix the problem.
package clickjacking

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

var checkRecommendations = map[types.Band][]string{
	types.BandHigh: {
		"VULNERABLE: the site can be framed by any origin",
		"Add the X-Frame-Options: DENY header",
		"Set Content-Security-Policy: frame-ancestors 'none'",
	},
	types.BandMedium: {
		"PARTIALLY PROTECTED: some framing protections are in place",
		"Review and strengthen X-Frame-Options",
		"Add a frame-ancestors directive to the Content-Security-Policy",
	},
	types.BandLow: {
		"PROTECTED: framing protections are in place",
		"Re-test security headers after every deployment",
	},
}

type CheckTool struct {
	core.Base
	env *core.Env
}

type checkParams struct {
	URL string `param:"url"`
}

func NewCheck(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &CheckTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Clickjacking Checker",
			Category:    types.CategoryClickjacking,
			Version:     "2.0.0",
			Description: "Checks whether a page can be framed by scoring its anti-framing headers",
			Usage:       "pantest run clickjacking-check --url https://example.com",
			Tags:        []string{"clickjacking", "web", "headers"},
			RiskLevel:   types.RiskLow,
		}, env.Log()),
		env: env,
	}
}

func parseURL(p params.Params) (string, error) {
	var cp checkParams
	if err := params.Require(p, "url"); err != nil {
		return "", err
	}
	if err := params.Decode(p, &cp); err != nil {
		return "", err
	}
	if err := params.MustBeURL("url", cp.URL); err != nil {
		return "", err
	}
	return cp.URL, nil
}

func (t *CheckTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := parseURL(p); return err })
}

// frameAncestors returns the frame-ancestors sources in csp and whether the
// directive is present.
func frameAncestors(csp string) (string, bool) {
	for _, directive := range strings.Split(csp, ";") {
		fields := strings.Fields(strings.TrimSpace(directive))
		if len(fields) > 0 && strings.EqualFold(fields[0], "frame-ancestors") {
			return strings.Join(fields[1:], " "), true
		}
	}
	return "", false
}

// scoreHeaders adds the header checks and returns the missing header names.
func scoreHeaders(h http.Header, s *types.Score) []string {
	var missing []string

	xfo := strings.ToUpper(strings.TrimSpace(h.Get("X-Frame-Options")))
	switch {
	case xfo == "":
		missing = append(missing, "X-Frame-Options")
		s.Add("x_frame_options_missing", 0.4, true, "header is missing")
	case xfo == "DENY":
		s.Add("x_frame_options", 0, false, xfo)
	case xfo == "SAMEORIGIN" || xfo == "SAME-ORIGIN":
		s.Add("x_frame_options_sameorigin", 0.1, true, "allows framing on the same origin")
	case strings.HasPrefix(xfo, "ALLOW-FROM"):
		s.Add("x_frame_options_allow_from", 0.3, true, "ALLOW-FROM is deprecated and ignored by modern browsers")
	default:
		s.Add("x_frame_options_invalid", 0.4, true, "unrecognised value "+xfo)
	}

	csp := h.Get("Content-Security-Policy")
	if csp == "" {
		missing = append(missing, "Content-Security-Policy")
		s.Add("csp_missing", 0.3, true, "header is missing")
	} else if sources, ok := frameAncestors(csp); !ok {
		missing = append(missing, "CSP frame-ancestors directive")
		s.Add("csp_frame_ancestors_missing", 0.2, true, "no frame-ancestors directive")
	} else {
		s.Add("csp_frame_ancestors_wildcard", 0.2, strings.Contains(sources, "*"), sources)
	}

	if !strings.EqualFold(h.Get("X-Content-Type-Options"), "nosniff") {
		missing = append(missing, "X-Content-Type-Options")
		s.Note("x_content_type_options", "nosniff not set")
	}
	return missing
}

func inspectHTML(doc *goquery.Document) types.Record {
	frames := []types.Record{}
	doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		name, _ := sel.Attr("name")
		frames = append(frames, types.Record{"src": src, "name": name})
	})
	busting := false
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		body := sel.Text()
		if strings.Contains(body, "top != self") || strings.Contains(body, "top !== self") ||
			strings.Contains(body, "top.location") {
			busting = true
		}
	})
	return types.Record{
		"iframes":          frames,
		"forms_found":      doc.Find("form").Length(),
		"buttons_found":    doc.Find("button").Length(),
		"frame_busting_js": busting,
	}
}

func (t *CheckTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	target, err := parseURL(p)
	if err != nil {
		return t.Fail(err)
	}

	client, err := t.env.HTTPClient()
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "http client"))
	}
	page, err := httpclient.Fetch(ctx, client, target, t.env.Retries(), nil)
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "failed to fetch %s", target))
	}

	var score types.Score
	missing := scoreHeaders(page.Header, &score)

	result := types.Record{
		"url":             target,
		"final_url":       page.FinalURL,
		"status_code":     page.StatusCode,
		"headers_missing": missing,
		"x_frame_options": page.Header.Get("X-Frame-Options"),
		"csp":             page.Header.Get("Content-Security-Policy"),
	}
	if page.Doc != nil {
		content := inspectHTML(page.Doc)
		result["content"] = content
		if n := len(content["iframes"].([]types.Record)); n > 0 {
			t.AddWarning(fmt.Sprintf("%d iframe(s) found on the page", n))
		}
	}
	result["checks"] = score.Checks()
	t.AddResult(result)

	a := types.Assess(&score, types.VulnerabilityVerdicts, checkRecommendations)
	for _, m := range missing {
		switch m {
		case "X-Frame-Options":
			a.Recommendations = append(a.Recommendations, "ADD: X-Frame-Options: DENY")
		case "Content-Security-Policy":
			a.Recommendations = append(a.Recommendations, "ADD: Content-Security-Policy: frame-ancestors 'none';")
		}
	}
	for _, r := range a.Recommendations {
		t.AddRecommendation(r)
	}
	if a.Verdict == types.VerdictVulnerable {
		t.Log().Warnw("Page can be framed", "url", target, "score", a.RiskScore)
	}
	t.AddSuccess(fmt.Sprintf("%s scored %.2f (%s)", target, a.RiskScore, a.Verdict))

	return a.Apply(types.Record{
		"url":             target,
		"status_code":     page.StatusCode,
		"headers_missing": missing,
	})
}
