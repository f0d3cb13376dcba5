// Package phishing scores URLs, pages and email metadata for phishing
// indicators.
package phishing

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const longURLThreshold = 75

var shortenerDomains = map[string]bool{
	"bit.ly":      true,
	"tinyurl.com": true,
	"goo.gl":      true,
	"short.link":  true,
	"t.co":        true,
	"ow.ly":       true,
	"is.gd":       true,
	"buff.ly":     true,
}

var webRecommendations = map[types.Band][]string{
	types.BandHigh: {
		"This URL appears to be phishing",
		"Do not enter credentials on this site",
		"Report the URL to your email provider or browser vendor",
		"Use a password manager so credentials are not auto-filled on look-alike domains",
	},
	types.BandMedium: {
		"This URL has suspicious characteristics",
		"Verify the domain carefully before interacting",
		"Check the certificate information",
	},
	types.BandLow: {
		"URL appears legitimate",
		"Still exercise caution with personal information",
		"Enable two-factor authentication when available",
	},
}

type WebPhishingTool struct {
	core.Base
	env *core.Env
}

type webParams struct {
	URL string `param:"url"`
}

func NewWebPhishing(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &WebPhishingTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Web Phishing Detector",
			Category:    types.CategoryPhishing,
			Version:     "2.0.0",
			Description: "Detects phishing websites by scoring URL and page characteristics",
			Usage:       "pantest run web-phishing --url https://example.com",
			Tags:        []string{"phishing", "web", "detection"},
			RiskLevel:   types.RiskLow,
		}, env.Log()),
		env: env,
	}
}

func (t *WebPhishingTool) parse(p params.Params) (webParams, *url.URL, error) {
	var wp webParams
	if err := params.Require(p, "url"); err != nil {
		return wp, nil, err
	}
	if err := params.Decode(p, &wp); err != nil {
		return wp, nil, err
	}
	if err := params.MustBeURL("url", wp.URL); err != nil {
		return wp, nil, err
	}
	u, err := url.Parse(wp.URL)
	if err != nil || u.Hostname() == "" {
		return wp, nil, types.NewError(types.KindValidation, "invalid URL: %s", wp.URL)
	}
	return wp, u, nil
}

func (t *WebPhishingTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, _, err := t.parse(p); return err })
}

// registrableDomain returns the eTLD+1 of host, or host itself for IPs and
// names the public suffix list cannot split.
func registrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// scoreURL adds the checks that only need the URL itself.
func scoreURL(u *url.URL, s *types.Score) {
	host := strings.ToLower(u.Hostname())
	raw := u.String()

	s.Add("ip_based_url", 0.3, net.ParseIP(host) != nil, host)
	s.Add("long_url", 0.2, len(raw) > longURLThreshold, fmt.Sprintf("%d characters", len(raw)))

	domain := registrableDomain(host)
	s.Add("url_shortener", 0.25, shortenerDomains[domain], domain)

	hyphens := strings.Count(host, "-")
	s.Add("suspicious_chars", 0.15, u.User != nil || strings.Contains(raw, "@") || hyphens >= 2,
		fmt.Sprintf("userinfo=%t hyphens=%d", u.User != nil, hyphens))

	punycode := strings.Contains(host, "xn--")
	detail := ""
	if punycode {
		if uni, err := idna.ToUnicode(host); err == nil {
			detail = uni
		}
	}
	s.Add("punycode_domain", 0.2, punycode, detail)

	extra := 0
	if domain != host {
		extra = strings.Count(strings.TrimSuffix(host, "."+domain), ".") + 1
	}
	s.Add("excessive_subdomains", 0.1, extra >= 3, fmt.Sprintf("%d labels before %s", extra, domain))
}

// scoreContent adds the checks that inspect the fetched page.
func scoreContent(page *httpclient.Page, s *types.Score) types.Record {
	final, err := url.Parse(page.FinalURL)
	if err != nil {
		final, _ = url.Parse(page.URL)
	}
	site := ""
	if final != nil {
		site = registrableDomain(final.Hostname())
		s.Add("missing_https", 0.3, final.Scheme == "http", final.Scheme)
	}

	out := types.Record{"status_code": page.StatusCode, "login_forms": 0, "external_resources": 0}
	if page.Doc == nil {
		s.Note("html", "body is not HTML")
		return out
	}

	logins, foreignActions := 0, 0
	page.Doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		if form.Find(`input[type="password"]`).Length() > 0 {
			logins++
		}
		if action, ok := form.Attr("action"); ok && isForeign(final, action, site) {
			foreignActions++
		}
	})
	s.Add("login_form", 0.2, logins > 0, fmt.Sprintf("%d forms", logins))
	s.Add("external_form_action", 0.15, foreignActions > 0, fmt.Sprintf("%d forms", foreignActions))

	external := 0
	page.Doc.Find("img[src], script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if isForeign(final, src, site) {
			external++
		}
	})
	s.Add("external_resources", min(float64(external)*0.05, 0.2), external > 0, fmt.Sprintf("%d resources", external))

	title := strings.TrimSpace(page.Doc.Find("title").First().Text())
	if title == "" {
		title = "N/A"
	}
	s.Note("page_title", title)

	out["login_forms"] = logins
	out["external_resources"] = external
	out["external_form_actions"] = foreignActions
	out["page_title"] = title
	return out
}

// isForeign reports whether ref resolves to a different registrable domain
// than site. Relative references are local.
func isForeign(base *url.URL, ref, site string) bool {
	if ref == "" || base == nil {
		return false
	}
	u, err := base.Parse(ref)
	if err != nil || u.Hostname() == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return registrableDomain(u.Hostname()) != site
}

func (t *WebPhishingTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	_, u, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	var score types.Score
	scoreURL(u, &score)

	summary := types.Record{"url": u.String(), "domain": registrableDomain(u.Hostname())}

	client, err := t.env.HTTPClient()
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "http client"))
	}
	page, err := httpclient.Fetch(ctx, client, u.String(), t.env.Retries(), nil)
	if err != nil {
		t.AddWarning(fmt.Sprintf("failed to fetch page content: %v", err))
		score.Note("content", "page not fetched")
	} else {
		content := scoreContent(page, &score)
		content["url"] = page.FinalURL
		t.AddResult(content)
		summary["page_title"] = content["page_title"]
	}

	checks := score.Checks()
	t.AddResult(types.Record{"url": u.String(), "checks": checks})

	a := types.Assess(&score, types.PhishingVerdicts, webRecommendations)
	for _, r := range a.Recommendations {
		t.AddRecommendation(r)
	}
	if a.Verdict != types.VerdictLegitimate {
		t.Log().Warnw("Phishing indicators found", "url", u.String(), "score", a.RiskScore, "verdict", a.Verdict)
	}
	t.AddSuccess(fmt.Sprintf("%s scored %.2f (%s)", u.Hostname(), a.RiskScore, a.Verdict))
	summary["checks"] = checks
	return a.Apply(summary)
}
