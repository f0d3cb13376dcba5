package web

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/ratelimit"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const (
	maxCrawlDepth   = 5
	defaultMaxPages = 50
)

type CrawlerTool struct {
	core.Base
	env *core.Env
	// pace spaces requests to the site; tests shorten it.
	pace ratelimit.Config
}

type crawlParams struct {
	URL      string `param:"url"`
	Depth    int    `param:"depth"`
	MaxPages int    `param:"max_pages"`
}

func NewCrawler(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &CrawlerTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Web Crawler",
			Category:    types.CategoryWeb,
			Description: "Maps a site by following same-host links and form actions",
			Usage:       "pantest run crawler --url http://target.com [-P depth=2] [-P max_pages=50]",
			Tags:        []string{"web", "crawler", "mapping", "reconnaissance"},
		}, env.Log()),
		env:  env,
		pace: ratelimit.CrawlConfig(),
	}
}

func (t *CrawlerTool) parse(p params.Params) (crawlParams, error) {
	cp := crawlParams{Depth: 1, MaxPages: defaultMaxPages}
	if err := params.Require(p, "url"); err != nil {
		return cp, err
	}
	if err := params.Decode(p, &cp); err != nil {
		return cp, err
	}
	if err := params.MustBeURL("url", cp.URL); err != nil {
		return cp, err
	}
	if cp.Depth < 0 || cp.Depth > maxCrawlDepth {
		return cp, types.NewError(types.KindValidation, "depth must be between 0 and %d", maxCrawlDepth)
	}
	if cp.MaxPages < 1 {
		cp.MaxPages = 1
	}
	return cp, nil
}

func (t *CrawlerTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

type crawlItem struct {
	url   string
	depth int
}

// inScope accepts the start host and its www. variant.
func inScope(host string, scope map[string]bool) bool {
	return scope[strings.ToLower(host)]
}

func (t *CrawlerTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	cp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}
	start, err := url.Parse(cp.URL)
	if err != nil {
		return t.Fail(types.Wrap(types.KindValidation, err, "invalid URL"))
	}
	client, err := t.env.HTTPClient()
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "http client"))
	}

	host := strings.ToLower(start.Host)
	scope := map[string]bool{host: true}
	if strings.HasPrefix(host, "www.") {
		scope[strings.TrimPrefix(host, "www.")] = true
	} else {
		scope["www."+host] = true
	}

	limiter := ratelimit.NewLimiter(t.pace)
	visited := map[string]bool{}
	queue := []crawlItem{{url: normalizeLink(start), depth: 0}}
	var unique []string
	forms := 0

	for len(queue) > 0 && len(visited) < cp.MaxPages {
		if ctx.Err() != nil {
			t.AddWarning("crawl interrupted")
			break
		}
		item := queue[0]
		queue = queue[1:]
		if visited[item.url] {
			continue
		}
		visited[item.url] = true
		unique = append(unique, item.url)

		if err := limiter.WaitForHost(ctx, host); err != nil {
			break
		}
		page, err := httpclient.Fetch(ctx, client, item.url, t.env.Retries(), nil)
		if err != nil {
			t.Log().Debugw("Crawl fetch failed", "url", item.url, "error", err)
			continue
		}

		info := types.Record{
			"url":    item.url,
			"status": page.StatusCode,
			"size":   len(page.Body),
			"depth":  item.depth,
		}
		if page.Doc != nil {
			info["title"] = strings.TrimSpace(page.Doc.Find("title").First().Text())
			n := page.Doc.Find("form").Length()
			info["forms"] = n
			forms += n
		}
		t.AddResult(info)

		if page.Doc == nil || item.depth >= cp.Depth {
			continue
		}
		base, _ := url.Parse(page.FinalURL)
		for _, link := range extractLinks(page.Doc, base) {
			if !inScope(link.Host, scope) {
				continue
			}
			n := normalizeLink(link)
			if !visited[n] {
				queue = append(queue, crawlItem{url: n, depth: item.depth + 1})
			}
		}
	}

	t.Log().Infow("Web crawling completed", "start_url", cp.URL, "pages_crawled", len(t.Results()), "unique_urls", len(unique))
	return types.Record{
		"url":         cp.URL,
		"depth":       cp.Depth,
		"urls_found":  len(t.Results()),
		"unique_urls": unique,
		"forms_found": forms,
	}
}

// extractLinks resolves anchor hrefs and form actions against base.
func extractLinks(doc *goquery.Document, base *url.URL) []*url.URL {
	var out []*url.URL
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") ||
			strings.HasPrefix(strings.ToLower(ref), "mailto:") {
			return
		}
		u, err := base.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		out = append(out, u)
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add(href)
	})
	doc.Find("form[action]").Each(func(_ int, s *goquery.Selection) {
		action, _ := s.Attr("action")
		add(action)
	})
	return out
}

func normalizeLink(u *url.URL) string {
	c := *u
	c.Fragment = ""
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}
