package osint

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// dorkTemplates expand {domain} into a search query.
var dorkTemplates = map[string]string{
	"exposed_admin":       "site:{domain} inurl:admin",
	"exposed_backup":      "site:{domain} filetype:sql OR filetype:bak OR filetype:old",
	"exposed_config":      "site:{domain} filetype:conf OR filetype:config OR filetype:env OR filetype:ini",
	"exposed_doc":         "site:{domain} filetype:pdf OR filetype:doc OR filetype:docx",
	"exposed_credentials": `site:{domain} "password" OR "username"`,
	"exposed_git":         `site:{domain} inurl:".git" OR inurl:".gitconfig"`,
	"exposed_db":          `site:{domain} "database" OR "db_config"`,
	"wordpress_admin":     "site:{domain} inurl:/wp-admin",
	"joomla_admin":        "site:{domain} inurl:/administrator",
	"cache_pages":         "cache:{domain}",
	"similar_sites":       "related:{domain}",
}

var searchEngines = []struct {
	Name string
	Base string
}{
	{"google", "https://www.google.com/search?q="},
	{"bing", "https://www.bing.com/search?q="},
	{"duckduckgo", "https://duckduckgo.com/?q="},
}

// DorkTypes lists the template names in order.
func DorkTypes() []string {
	out := make([]string, 0, len(dorkTemplates))
	for k := range dorkTemplates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BuildDork expands the named template for domain. Unknown types fall back
// to a plain site: query.
func BuildDork(domain, kind string) string {
	if tmpl, ok := dorkTemplates[kind]; ok {
		return strings.ReplaceAll(tmpl, "{domain}", domain)
	}
	return "site:" + domain
}

// SearchURLs returns the query URL for each supported engine.
func SearchURLs(query string) map[string]string {
	out := make(map[string]string, len(searchEngines))
	for _, e := range searchEngines {
		out[e.Name] = e.Base + url.QueryEscape(query)
	}
	return out
}

type DorkTool struct {
	core.Base
	env *core.Env
}

type dorkParams struct {
	Domain string `param:"domain"`
	Query  string `param:"query"`
	Type   string `param:"type"`
}

func NewDork(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &DorkTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Search Engine Dorking",
			Category:    types.CategoryOSINT,
			Version:     "3.3.0",
			Description: "Builds search engine dork queries and search links for a domain",
			Usage:       "pantest run dorking --domain example.com [--type exposed_admin] [--query 'site:example.com filetype:pdf']",
			Tags:        []string{"osint", "dorking", "search", "reconnaissance"},
			RiskLevel:   types.RiskLow,
		}, env.Log()),
		env: env,
	}
}

func (t *DorkTool) parse(p params.Params) (dorkParams, error) {
	var dp dorkParams
	if err := params.Decode(p, &dp); err != nil {
		return dp, err
	}
	dp.Domain = strings.TrimSpace(dp.Domain)
	dp.Query = strings.TrimSpace(dp.Query)
	if dp.Domain == "" && dp.Query == "" {
		return dp, types.NewError(types.KindValidation, "query or domain is required")
	}
	if dp.Domain != "" && !params.IsDomain(dp.Domain) {
		return dp, types.NewError(types.KindValidation, "domain %q is not a valid domain", dp.Domain)
	}
	if dp.Type == "" {
		dp.Type = "all"
	}
	if dp.Type != "all" {
		if err := params.OneOf("type", dp.Type, DorkTypes()...); err != nil {
			return dp, err
		}
	}
	return dp, nil
}

func (t *DorkTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *DorkTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	dp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	type dork struct{ kind, query string }
	var dorks []dork
	if dp.Query != "" {
		q := dp.Query
		if dp.Domain != "" && !strings.Contains(q, "site:") {
			q = "site:" + dp.Domain + " " + q
		}
		dorks = append(dorks, dork{"custom", q})
	}
	if dp.Domain != "" && (dp.Query == "" || dp.Type != "all") {
		kinds := []string{dp.Type}
		if dp.Type == "all" {
			kinds = DorkTypes()
		}
		for _, k := range kinds {
			dorks = append(dorks, dork{k, BuildDork(dp.Domain, k)})
		}
	}

	queries := make([]string, 0, len(dorks))
	for _, d := range dorks {
		queries = append(queries, d.query)
		t.AddResult(types.Record{
			"type":        d.kind,
			"query":       d.query,
			"search_urls": SearchURLs(d.query),
		})
	}

	t.AddRecommendation("Review results manually; automated scraping of search engines breaks their terms of service")
	t.AddSuccess(fmt.Sprintf("generated %d dork queries", len(queries)))
	return types.Record{
		"domain":        dp.Domain,
		"total_queries": len(queries),
		"queries":       queries,
	}
}
