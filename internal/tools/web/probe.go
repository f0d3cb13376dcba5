// Package web holds the tools that probe web applications.
package web

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/httpclient"
)

// prober sends the query-string probes shared by sql-inject and xss-detect.
type prober struct {
	env    *core.Env
	client *http.Client
}

func newProber(env *core.Env) (*prober, error) {
	client, err := env.HTTPClient()
	if err != nil {
		return nil, err
	}
	return &prober{env: env, client: client}, nil
}

// baseURL strips the query and fragment from target.
func baseURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}

// send requests target with name set to value, keeping the other query
// parameters.
func (p *prober) send(ctx context.Context, target *url.URL, name, value string) (*httpclient.Page, error) {
	u := *target
	q := u.Query()
	q.Set(name, value)
	u.RawQuery = q.Encode()
	return httpclient.Fetch(ctx, p.client, u.String(), p.env.Retries(), nil)
}

func (p *prober) get(ctx context.Context, target *url.URL) (*httpclient.Page, error) {
	return httpclient.Fetch(ctx, p.client, target.String(), p.env.Retries(), nil)
}

// parameterNames lists what to probe: the explicit parameter, else the
// query string keys, else the inputs of GET forms on the page.
func (p *prober) parameterNames(ctx context.Context, target *url.URL, explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	var names []string
	for k := range target.Query() {
		names = append(names, k)
	}
	if len(names) == 0 {
		page, err := p.get(ctx, target)
		if err == nil && page.Doc != nil {
			names = formInputs(page.Doc)
		}
	}
	sort.Strings(names)
	return names
}

func formInputs(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var names []string
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		method, _ := form.Attr("method")
		if method != "" && !strings.EqualFold(method, "get") {
			return
		}
		form.Find("input[name], textarea[name], select[name]").Each(func(_ int, in *goquery.Selection) {
			name, _ := in.Attr("name")
			typ, _ := in.Attr("type")
			if name == "" || seen[name] || strings.EqualFold(typ, "submit") {
				return
			}
			seen[name] = true
			names = append(names, name)
		})
	})
	return names
}
