package web

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/platform"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/ratelimit"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/resolver/resolvertest"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/tooltest"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

func sqlServer(vulnerable bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if vulnerable && strings.Contains(id, "'") {
			fmt.Fprint(w, "<html><body>You have an error in your SQL syntax near '"+html.EscapeString(id)+"'</body></html>")
			return
		}
		fmt.Fprint(w, "<html><body>item "+html.EscapeString(id)+"</body></html>")
	}))
}

func TestSQLInjectDetectsErrorMessages(t *testing.T) {
	srv := sqlServer(true)
	defer srv.Close()

	tool := NewSQLInject(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL + "/item?id=1"})
	require.True(t, ok)

	assert.Equal(t, true, summary["vulnerable"])
	assert.Equal(t, []string{"id"}, summary["vulnerable_parameters"])

	r := tool.Results()[0]
	assert.Equal(t, len(sqlPayloads), r["payloads_tested"])
	hits := r["successful_payloads"].([]types.Record)
	require.NotEmpty(t, hits)
	assert.Equal(t, "SQL syntax", hits[0]["indicator"])
	assert.NotEmpty(t, tool.Recommendations())
}

func TestSQLInjectCleanTarget(t *testing.T) {
	srv := sqlServer(false)
	defer srv.Close()

	tool := NewSQLInject(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL + "/item?id=1"})
	require.True(t, ok)
	assert.Equal(t, false, summary["vulnerable"])
	assert.Equal(t, 1, summary["parameters_tested"])
}

func TestSQLInjectIgnoresIndicatorsInBaseline(t *testing.T) {
	assert.Equal(t, "", findIndicator("Powered by SQL Server", "Powered by SQL Server"))
	assert.Equal(t, "ORA-", findIndicator("ORA-00933: SQL command not properly ended", "ok"))
}

func TestSQLInjectDiscoversFormInputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<form method="get" action="/search"><input name="q"><input type="submit" name="go"></form>
<form method="post"><input name="password"></form>
</body></html>`)
	}))
	defer srv.Close()

	tool := NewSQLInject(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL})
	require.True(t, ok)
	assert.Equal(t, 1, summary["parameters_tested"])
	assert.Equal(t, "q", tool.Results()[0]["parameter"])
}

func TestSQLInjectValidation(t *testing.T) {
	tool := NewSQLInject(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"url": "ftp://example.com"})
	assert.False(t, ok)
}

func TestXSSDetectsReflection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Results for "+r.URL.Query().Get("q")+"</body></html>")
	}))
	defer srv.Close()

	tool := NewXSS(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL + "/search?q=test"})
	require.True(t, ok)
	assert.Equal(t, true, summary["vulnerable"])

	hits := tool.Results()[0]["reflected_payloads"].([]types.Record)
	assert.Len(t, hits, len(xssPayloads))
	assert.Equal(t, "html", hits[0]["context"])
}

func TestXSSEscapedOutputIsSafe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Results for "+html.EscapeString(r.URL.Query().Get("q"))+"</body></html>")
	}))
	defer srv.Close()

	tool := NewXSS(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL + "/search?q=test", "parameter": "q"})
	require.True(t, ok)
	assert.Equal(t, false, summary["vulnerable"])
}

func TestReflectionContext(t *testing.T) {
	assert.Equal(t, "script", reflectionContext(`<script>var q = "PAY";</script>`, "PAY"))
	assert.Equal(t, "attribute", reflectionContext(`<input value="PAY">`, "PAY"))
	assert.Equal(t, "html", reflectionContext(`<p>PAY</p>`, "PAY"))
	assert.Equal(t, "", reflectionContext(`<p>nothing</p>`, "PAY"))
}

func TestSubdomainEnumeration(t *testing.T) {
	srv := resolvertest.Start(t, resolvertest.Zone{
		"www.example.com. A":   {"www.example.com. 60 IN A 10.0.0.2"},
		"api.example.com. A":   {"api.example.com. 60 IN A 10.0.0.3"},
		"blog.example.com. A":  {"blog.example.com. 60 IN CNAME hosting.example.net.", "hosting.example.net. 60 IN A 10.0.0.4"},
		"example.com. A":       {"example.com. 60 IN A 10.0.0.1"},
		"mail.example.com. MX": {"mail.example.com. 60 IN MX 10 mx.example.com."},
	})
	env := tooltest.Env(t)
	env.Endpoints.DNSServer = srv.Addr

	tool := NewSubdomain(env)
	summary, ok := tooltest.Run(t, tool, params.Params{"domain": "https://Example.com/", "threads": 4})
	require.True(t, ok)

	assert.Equal(t, "example.com", summary["domain"])
	assert.Equal(t, false, summary["wildcard"])
	assert.Equal(t, []string{"api.example.com", "blog.example.com", "www.example.com"}, summary["subdomains"])
	assert.Equal(t, len(commonSubdomains), summary["total_checked"])

	for _, r := range tool.Results() {
		if r["subdomain"] == "blog.example.com" {
			assert.Equal(t, "hosting.example.net", r["cname"])
		}
	}
}

func TestSubdomainWildcardFiltering(t *testing.T) {
	srv := resolvertest.Start(t, resolvertest.Zone{
		"*.example.com. A":   {"*.example.com. 60 IN A 10.9.9.9"},
		"www.example.com. A": {"www.example.com. 60 IN A 10.0.0.2"},
	})
	env := tooltest.Env(t)
	env.Endpoints.DNSServer = srv.Addr

	wordlist := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(wordlist, []byte("# words\nwww\nrandom\nother\nWWW\n"), 0644))

	tool := NewSubdomain(env)
	summary, ok := tooltest.Run(t, tool, params.Params{"domain": "example.com", "file": wordlist})
	require.True(t, ok)

	assert.Equal(t, true, summary["wildcard"])
	assert.Equal(t, 3, summary["total_checked"])
	assert.Equal(t, []string{"www.example.com"}, summary["subdomains"])
	assert.NotEmpty(t, tool.Warnings())
}

func TestSubdomainValidation(t *testing.T) {
	tool := NewSubdomain(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"domain": "not_a_domain"})
	assert.False(t, ok)
	_, ok = tooltest.Run(t, tool, params.Params{"domain": "example.com", "file": "/nonexistent/words.txt"})
	assert.False(t, ok)
}

func TestCrawlerStaysInScope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
<a href="/a">A</a> <a href="/b#section">B</a> <a href="/a">A again</a>
<a href="http://other.example/x">external</a> <a href="javascript:void(0)">js</a>
<a href="mailto:admin@example.com">mail</a>
</body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/c">C</a><form action="/login"></form></body></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>B</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tool := NewCrawler(tooltest.Env(t)).(*CrawlerTool)
	tool.pace = ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 10}

	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL, "depth": 1})
	require.True(t, ok)

	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/a", srv.URL + "/b"}, summary["unique_urls"])
	assert.Equal(t, 3, summary["urls_found"])
	assert.Equal(t, 1, summary["forms_found"])

	first := tool.Results()[0]
	assert.Equal(t, "Home", first["title"])
	assert.Equal(t, 200, first["status"])
	assert.Equal(t, 0, first["depth"])
}

func TestCrawlerMaxPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<a href="/p%d">next</a>`, len(r.URL.Path))
	}))
	defer srv.Close()

	tool := NewCrawler(tooltest.Env(t)).(*CrawlerTool)
	tool.pace = ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 10}
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL, "depth": 5, "max_pages": 2})
	require.True(t, ok)
	assert.Len(t, summary["unique_urls"], 2)
}

func TestCrawlerValidation(t *testing.T) {
	tool := NewCrawler(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"url": "http://example.com", "depth": 9})
	assert.False(t, ok)
}

func TestSubdomainDefaultThreadsRespectHostCeiling(t *testing.T) {
	env := tooltest.Env(t)
	env.Config.ThreadCount = 10
	env.Platform = platform.New(platform.Inputs{
		GOOS:        "linux",
		LogicalCPUs: 8,
		Env:         func(k string) string { return map[string]string{"TERMUX_VERSION": "0.118"}[k] },
	})
	tool := NewSubdomain(env).(*SubdomainTool)

	sp, err := tool.parse(params.Params{"domain": "example.com"})
	require.NoError(t, err)
	assert.Equal(t, 8, sp.Threads)
}
