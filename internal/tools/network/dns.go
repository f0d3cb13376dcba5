package network

import (
	"context"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/cache"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/resolver"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

type DNSTool struct {
	core.Base
	env *core.Env
}

type dnsParams struct {
	Domain string `param:"domain"`
	Host   string `param:"host"`
	Type   string `param:"type"`
}

func NewDNS(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &DNSTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "DNS Lookup",
			Category:    types.CategoryNetwork,
			Description: "Queries DNS records for a domain or the PTR name of an IP address",
			Usage:       "pantest run dns --domain example.com [--type A|AAAA|MX|NS|TXT|CNAME|SOA|all] | --host 8.8.8.8",
			Tags:        []string{"network", "dns", "reconnaissance"},
		}, env.Log()),
		env: env,
	}
}

func (t *DNSTool) parse(p params.Params) (dnsParams, error) {
	dp := dnsParams{Type: "all"}
	if err := params.Decode(p, &dp); err != nil {
		return dp, err
	}
	switch {
	case dp.Domain != "":
		if !params.IsDomain(dp.Domain) {
			return dp, types.NewError(types.KindValidation, "invalid domain %q", dp.Domain)
		}
	case dp.Host != "":
		if !params.IsIP(dp.Host) {
			return dp, types.NewError(types.KindValidation, "host must be an IPv4 address for reverse lookups")
		}
	default:
		return dp, types.NewError(types.KindValidation, "domain or host is required")
	}
	dp.Type = strings.ToUpper(dp.Type)
	if dp.Type != "ALL" {
		if err := params.OneOf("type", dp.Type, resolver.RecordTypes...); err != nil {
			return dp, err
		}
	}
	return dp, nil
}

func (t *DNSTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *DNSTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	dp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	r := resolver.New(t.env.Endpoints.DNSServer, t.env.Timeout())

	if dp.Domain == "" {
		var names []string
		err := t.env.Cache.GetOrFetch(cache.Key("dns", "ptr", dp.Host), &names, func() (interface{}, error) {
			return r.Reverse(ctx, dp.Host)
		})
		if err != nil {
			return t.Fail(types.Wrap(types.KindTool, err, "reverse lookup failed"))
		}
		hostname := ""
		if len(names) > 0 {
			hostname = names[0]
		}
		t.AddResult(types.Record{"ip": dp.Host, "lookup_type": "reverse", "hostname": hostname})
		return types.Record{"ip": dp.Host, "hostname": hostname}
	}

	kinds := resolver.RecordTypes
	if dp.Type != "ALL" {
		kinds = []string{dp.Type}
	}

	total := 0
	counts := map[string]int{}
	for _, kind := range kinds {
		var recs []resolver.Record
		err := t.env.Cache.GetOrFetch(cache.Key("dns", dp.Domain, kind), &recs, func() (interface{}, error) {
			found, err := r.Query(ctx, dp.Domain, kind)
			if found == nil {
				found = []resolver.Record{}
			}
			return found, err
		})
		if err != nil {
			t.AddWarning(kind + " lookup failed: " + err.Error())
			continue
		}
		for _, rec := range recs {
			t.AddResult(types.Record{"type": rec.Type, "value": rec.Value, "ttl": rec.TTL})
		}
		counts[kind] = len(recs)
		total += len(recs)
	}

	if total == 0 && len(t.Warnings()) == len(kinds) {
		return t.Fail(types.NewError(types.KindTool, "no DNS server answered for %s", dp.Domain))
	}
	t.AddSuccess("resolved " + dp.Domain)
	return types.Record{"domain": dp.Domain, "lookup_type": strings.ToLower(dp.Type), "total_records": total, "record_counts": counts}
}
