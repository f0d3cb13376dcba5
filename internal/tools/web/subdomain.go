package web

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/resolver"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/worker"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// commonSubdomains is the built-in wordlist.
var commonSubdomains = []string{
	"www", "mail", "ftp", "localhost", "webmail", "smtp", "pop", "nameserver",
	"vpn", "admin", "test", "portal", "proxy", "ssl", "cdn", "api", "api-v1",
	"api-v2", "beta", "dev", "development", "staging", "production", "backup",
	"db", "database", "mail2", "ns1", "ns2", "cms", "blog", "forum", "shop",
	"panel", "cpanel", "whm", "autodiscover", "autoconfig", "git", "svn",
	"jenkins", "jira", "wiki", "docs", "downloads", "files", "images", "upload",
	"uploads", "cart", "checkout", "account", "accounts", "secure", "payment",
	"billing", "invoice", "support", "help", "contact", "info", "about", "news",
	"events",
}

type SubdomainTool struct {
	core.Base
	env *core.Env
}

type subdomainParams struct {
	Domain  string `param:"domain"`
	Threads int    `param:"threads"`
	File    string `param:"file"`
}

func NewSubdomain(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &SubdomainTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Subdomain Finder",
			Category:    types.CategoryWeb,
			Description: "Wordlist subdomain enumeration with wildcard DNS detection",
			Usage:       "pantest run subdomain --domain target.com [--threads 20] [--file wordlist.txt]",
			Tags:        []string{"web", "subdomain", "enumeration", "reconnaissance"},
		}, env.Log()),
		env: env,
	}
}

// cleanDomain strips a scheme and trailing path from a domain argument.
func cleanDomain(d string) string {
	d = strings.TrimSpace(d)
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.SplitN(d, "/", 2)[0]
	return strings.TrimSuffix(strings.ToLower(d), ".")
}

func (t *SubdomainTool) parse(p params.Params) (subdomainParams, error) {
	sp := subdomainParams{Threads: t.env.Config.ThreadCount * 4}
	if err := params.Require(p, "domain"); err != nil {
		return sp, err
	}
	if err := params.Decode(p, &sp); err != nil {
		return sp, err
	}
	sp.Domain = cleanDomain(sp.Domain)
	if !params.IsDomain(sp.Domain) {
		return sp, types.NewError(types.KindValidation, "invalid domain %q", sp.Domain)
	}
	if sp.File != "" {
		if _, err := os.Stat(sp.File); err != nil {
			return sp, types.NewError(types.KindValidation, "wordlist %s not readable", sp.File)
		}
	}
	sp.Threads = t.env.PoolSize(sp.Threads)
	return sp, nil
}

func (t *SubdomainTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func readWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w != "" && !strings.HasPrefix(w, "#") {
			words = append(words, w)
		}
	}
	return words, sc.Err()
}

func dedupe(words []string) []string {
	seen := map[string]bool{}
	out := words[:0:0]
	for _, w := range words {
		w = strings.ToLower(w)
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func (t *SubdomainTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	sp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	words := commonSubdomains
	if sp.File != "" {
		words, err = readWordlist(sp.File)
		if err != nil {
			return t.Fail(types.Wrap(types.KindTool, err, "failed to read wordlist"))
		}
	}
	words = dedupe(words)

	res := resolver.New(t.env.Endpoints.DNSServer, t.env.Timeout())

	probe := fmt.Sprintf("wildcard-test-%d.%s", time.Now().UnixNano(), sp.Domain)
	wildcardIPs, _, _ := res.Addresses(ctx, probe)
	wildcard := map[string]bool{}
	for _, ip := range wildcardIPs {
		wildcard[ip] = true
	}
	if len(wildcard) > 0 {
		t.Log().Infow("Wildcard DNS detected", "domain", sp.Domain, "ips", wildcardIPs)
		t.AddWarning("wildcard DNS detected, answers matching " + strings.Join(wildcardIPs, ", ") + " are ignored")
	}

	t.Log().Infow("Starting subdomain enumeration", "domain", sp.Domain, "words", len(words), "threads", sp.Threads)

	var mu sync.Mutex
	found := []string{}
	pool := worker.New(sp.Threads, 0, t.Log())
	err = worker.Each(ctx, pool, words, func(ctx context.Context, word string) error {
		name := word + "." + sp.Domain
		ips, cname, err := res.Addresses(ctx, name)
		if err != nil {
			return err
		}
		if len(ips) == 0 && cname == "" {
			return nil
		}
		if len(wildcard) > 0 && allIn(ips, wildcard) {
			return nil
		}
		r := types.Record{"subdomain": name, "ips": ips}
		if cname != "" {
			r["cname"] = cname
		}
		t.AddResult(r)
		mu.Lock()
		found = append(found, name)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.AddWarning("enumeration incomplete: " + err.Error())
	}

	sort.Strings(found)
	t.AddSuccess(fmt.Sprintf("found %d subdomains of %s", len(found), sp.Domain))
	return types.Record{
		"domain":        sp.Domain,
		"total_checked": len(words),
		"found":         len(found),
		"wildcard":      len(wildcard) > 0,
		"subdomains":    found,
	}
}

func allIn(ips []string, set map[string]bool) bool {
	if len(ips) == 0 {
		return false
	}
	for _, ip := range ips {
		if !set[ip] {
			return false
		}
	}
	return true
}
