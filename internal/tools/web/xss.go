package web

import (
	"context"
	"net/url"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

var xssPayloads = []string{
	"<script>alert('XSS')</script>",
	"\"><script>alert(1)</script>",
	"<img src=x onerror=alert(1)>",
	"<svg/onload=alert(1)>",
	"'><svg onload=alert(1)>",
	"<body onload=alert(1)>",
	"javascript:alert(1)",
}

type XSSTool struct {
	core.Base
	env *core.Env
}

type xssParams struct {
	URL       string `param:"url"`
	Parameter string `param:"parameter"`
}

func NewXSS(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &XSSTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:         "XSS Detector",
			Category:     types.CategoryWeb,
			Description:  "Detects reflected cross-site scripting in query and form parameters",
			Usage:        "pantest run xss-detect --url 'http://target.com/search?q=test' [-P parameter=q]",
			Requirements: []string{"authorization to test the target"},
			Tags:         []string{"web", "xss", "vulnerability", "testing"},
			RiskLevel:    types.RiskMedium,
		}, env.Log()),
		env: env,
	}
}

func (t *XSSTool) parse(p params.Params) (xssParams, *url.URL, error) {
	var xp xssParams
	if err := params.Require(p, "url"); err != nil {
		return xp, nil, err
	}
	if err := params.Decode(p, &xp); err != nil {
		return xp, nil, err
	}
	if err := params.MustBeURL("url", xp.URL); err != nil {
		return xp, nil, err
	}
	u, err := url.Parse(xp.URL)
	if err != nil {
		return xp, nil, types.Wrap(types.KindValidation, err, "invalid URL")
	}
	return xp, u, nil
}

func (t *XSSTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, _, err := t.parse(p); return err })
}

// reflectionContext reports where an unescaped payload landed in body.
func reflectionContext(body, payload string) string {
	i := strings.Index(body, payload)
	if i < 0 {
		return ""
	}
	before := strings.ToLower(body[:i])
	if open, closed := strings.LastIndex(before, "<script"), strings.LastIndex(before, "</script"); open > closed {
		return "script"
	}
	if lt, gt := strings.LastIndex(before, "<"), strings.LastIndex(before, ">"); lt > gt {
		return "attribute"
	}
	return "html"
}

func (t *XSSTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	xp, target, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}
	pr, err := newProber(t.env)
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "http client"))
	}

	names := pr.parameterNames(ctx, target, xp.Parameter)
	if len(names) == 0 {
		t.AddWarning("no query or form parameters found to test")
	}

	vulnerable := []string{}
	for _, name := range names {
		hits := []types.Record{}
		tested := 0
		for _, payload := range xssPayloads {
			if ctx.Err() != nil {
				break
			}
			tested++
			page, err := pr.send(ctx, target, name, payload)
			if err != nil {
				continue
			}
			if where := reflectionContext(page.Text(), payload); where != "" {
				hits = append(hits, types.Record{"payload": payload, "context": where})
			}
		}
		if len(hits) > 0 {
			vulnerable = append(vulnerable, name)
			t.Log().Warnw("Reflected XSS", "parameter", name, "payloads", len(hits))
		}
		t.AddResult(types.Record{
			"parameter":          name,
			"vulnerable":         len(hits) > 0,
			"payloads_tested":    tested,
			"reflected_payloads": hits,
		})
	}

	if len(vulnerable) > 0 {
		t.AddRecommendation("HTML-encode user input before rendering it")
		t.AddRecommendation("Deploy a Content-Security-Policy that blocks inline scripts")
	}
	return types.Record{
		"url":                   baseURL(target),
		"vulnerable":            len(vulnerable) > 0,
		"parameters_tested":     len(names),
		"vulnerable_parameters": vulnerable,
	}
}
