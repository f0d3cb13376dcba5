package network

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/cache"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// whoisQuery fetches the raw WHOIS text for a domain or IP. Tests replace it.
var whoisQuery = func(ctx context.Context, target string, timeout time.Duration) (string, error) {
	type reply struct {
		raw string
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		raw, err := whois.NewClient().SetTimeout(timeout).Whois(target)
		ch <- reply{raw, err}
	}()
	select {
	case r := <-ch:
		return r.raw, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// WhoisInfo is the registration data reported for a domain or network.
type WhoisInfo struct {
	Target         string   `json:"target"`
	Registrar      string   `json:"registrar,omitempty"`
	Organization   string   `json:"organization,omitempty"`
	Country        string   `json:"country,omitempty"`
	CreatedDate    string   `json:"created_date,omitempty"`
	UpdatedDate    string   `json:"updated_date,omitempty"`
	ExpirationDate string   `json:"expiration_date,omitempty"`
	NameServers    []string `json:"name_servers"`
	Status         []string `json:"status"`
	Emails         []string `json:"emails"`
	NetRange       string   `json:"net_range,omitempty"`
	NetName        string   `json:"net_name,omitempty"`
	Parsed         bool     `json:"parsed"`
}

type WhoisTool struct {
	core.Base
	env *core.Env
}

type whoisParams struct {
	Domain string `param:"domain"`
	Host   string `param:"host"`
	Raw    bool   `param:"raw"`
}

func NewWhois(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &WhoisTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "WHOIS Lookup",
			Category:    types.CategoryNetwork,
			Description: "Retrieves domain or IP registration data",
			Usage:       "pantest run whois --domain example.com | --host 8.8.8.8",
			Tags:        []string{"network", "whois", "osint", "reconnaissance"},
		}, env.Log()),
		env: env,
	}
}

func (t *WhoisTool) parse(p params.Params) (whoisParams, error) {
	var wp whoisParams
	if err := params.Decode(p, &wp); err != nil {
		return wp, err
	}
	switch {
	case wp.Domain != "":
		if !params.IsDomain(wp.Domain) {
			return wp, types.NewError(types.KindValidation, "invalid domain %q", wp.Domain)
		}
	case wp.Host != "":
		if !params.IsIP(wp.Host) {
			return wp, types.NewError(types.KindValidation, "host must be an IPv4 address")
		}
	default:
		return wp, types.NewError(types.KindValidation, "domain or host is required")
	}
	return wp, nil
}

func (t *WhoisTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *WhoisTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	wp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	target := wp.Domain
	if target == "" {
		target = wp.Host
	}

	var raw string
	err = t.env.Cache.GetOrFetch(cache.Key("whois", target), &raw, func() (interface{}, error) {
		return whoisQuery(ctx, target, t.env.Timeout())
	})
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "whois lookup failed"))
	}

	var info *WhoisInfo
	if wp.Domain != "" {
		info = parseDomainWhois(wp.Domain, raw)
	} else {
		info = parseIPWhois(wp.Host, raw)
	}

	result := types.Record{
		"target":          info.Target,
		"registrar":       info.Registrar,
		"organization":    info.Organization,
		"country":         info.Country,
		"created_date":    info.CreatedDate,
		"updated_date":    info.UpdatedDate,
		"expiration_date": info.ExpirationDate,
		"name_servers":    info.NameServers,
		"status":          info.Status,
		"emails":          info.Emails,
		"parsed":          info.Parsed,
	}
	if info.NetRange != "" {
		result["net_range"] = info.NetRange
		result["net_name"] = info.NetName
	}
	if wp.Raw {
		result["raw"] = raw
	}
	t.AddResult(result)

	t.Log().Infow("WHOIS lookup completed", "target", target, "registrar", info.Registrar, "org", info.Organization)
	return types.Record{"target": target, "registrar": info.Registrar, "organization": info.Organization}
}

// parseDomainWhois scans "key: value" lines and then overlays whatever the
// structured parser recognises for the registry's format.
func parseDomainWhois(domain, raw string) *WhoisInfo {
	info := &WhoisInfo{Target: domain, NameServers: []string{}, Status: []string{}}
	scanWhoisLines(info, raw)
	info.Emails = collectEmails(raw)

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return info
	}
	info.Parsed = true
	if d := parsed.Domain; d != nil {
		info.CreatedDate = prefer(d.CreatedDate, info.CreatedDate)
		info.UpdatedDate = prefer(d.UpdatedDate, info.UpdatedDate)
		info.ExpirationDate = prefer(d.ExpirationDate, info.ExpirationDate)
		if len(d.NameServers) > 0 {
			info.NameServers = d.NameServers
		}
		if len(d.Status) > 0 {
			info.Status = d.Status
		}
	}
	if parsed.Registrar != nil {
		info.Registrar = prefer(parsed.Registrar.Name, info.Registrar)
	}
	if parsed.Registrant != nil {
		info.Organization = prefer(parsed.Registrant.Organization, info.Organization)
		info.Country = prefer(parsed.Registrant.Country, info.Country)
	}
	return info
}

func prefer(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func scanWhoisLines(info *WhoisInfo, raw string) {
	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch k := strings.ToLower(strings.TrimSpace(key)); {
		case k == "registrar":
			info.Registrar = value
		case k == "organization" || k == "orgname" || k == "org-name" || k == "registrant organization":
			info.Organization = value
		case k == "country" || k == "registrant country":
			info.Country = value
		case k == "name server" || k == "nserver":
			info.NameServers = append(info.NameServers, strings.ToLower(value))
		case strings.HasPrefix(k, "creation date") || k == "created" || k == "regdate":
			info.CreatedDate = value
		case strings.HasPrefix(k, "updated date") || k == "changed" || k == "updated" || k == "last-modified":
			info.UpdatedDate = value
		case strings.Contains(k, "expir"):
			info.ExpirationDate = value
		case strings.HasSuffix(k, "status"):
			info.Status = append(info.Status, value)
		case k == "netrange" || k == "inetnum":
			info.NetRange = value
		case k == "netname":
			info.NetName = value
		}
	}
}

func parseIPWhois(ip, raw string) *WhoisInfo {
	info := &WhoisInfo{Target: ip, NameServers: []string{}, Status: []string{}}
	scanWhoisLines(info, raw)
	info.Emails = collectEmails(raw)
	return info
}

func collectEmails(raw string) []string {
	seen := map[string]bool{}
	for _, e := range emailPattern.FindAllString(raw, -1) {
		seen[strings.ToLower(e)] = true
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
