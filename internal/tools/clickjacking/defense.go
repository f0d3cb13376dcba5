package clickjacking

import (
	"context"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// Snippet is the configuration that makes one server or framework send the
// anti-framing headers.
type Snippet struct {
	File string `json:"file"`
	Code string `json:"code"`
}

var snippets = map[string]Snippet{
	"nginx": {
		File: "nginx.conf (server block)",
		Code: `add_header X-Frame-Options "DENY" always;
add_header Content-Security-Policy "frame-ancestors 'none'" always;`,
	},
	"apache": {
		File: ".htaccess or httpd.conf",
		Code: `Header always set X-Frame-Options "DENY"
Header always set Content-Security-Policy "frame-ancestors 'none'"`,
	},
	"iis": {
		File: "web.config",
		Code: `<system.webServer>
  <httpProtocol>
    <customHeaders>
      <add name="X-Frame-Options" value="DENY" />
      <add name="Content-Security-Policy" value="frame-ancestors 'none'" />
    </customHeaders>
  </httpProtocol>
</system.webServer>`,
	},
	"express": {
		File: "app.js",
		Code: `const helmet = require('helmet');
app.use(helmet.frameguard({ action: 'deny' }));
app.use(helmet.contentSecurityPolicy({ directives: { frameAncestors: ["'none'"] } }));`,
	},
	"django": {
		File: "settings.py",
		Code: `MIDDLEWARE += ['django.middleware.clickjacking.XFrameOptionsMiddleware']
X_FRAME_OPTIONS = 'DENY'`,
	},
	"flask": {
		File: "app.py",
		Code: `@app.after_request
def set_frame_headers(response):
    response.headers['X-Frame-Options'] = 'DENY'
    response.headers['Content-Security-Policy'] = "frame-ancestors 'none'"
    return response`,
	},
	"rails": {
		File: "config/application.rb",
		Code: `config.action_dispatch.default_headers['X-Frame-Options'] = 'DENY'
config.content_security_policy { |policy| policy.frame_ancestors :none }`,
	},
	"spring": {
		File: "SecurityConfig.java",
		Code: `http.headers(headers -> headers
    .frameOptions(frame -> frame.deny())
    .contentSecurityPolicy(csp -> csp.policyDirectives("frame-ancestors 'none'")));`,
	},
	"php": {
		File: "bootstrap.php",
		Code: `header('X-Frame-Options: DENY');
header("Content-Security-Policy: frame-ancestors 'none'");`,
	},
	"go": {
		File: "middleware.go",
		Code: `func frameGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}`,
	},
	"javascript": {
		File: "frame-buster.js (fallback for legacy browsers)",
		Code: `if (window.top !== window.self) {
  window.top.location = window.self.location;
}`,
	},
}

// Frameworks lists the supported framework names in order.
func Frameworks() []string {
	out := make([]string, 0, len(snippets))
	for name := range snippets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type DefenseTool struct {
	core.Base
	env *core.Env
}

type defenseParams struct {
	Framework string `param:"framework"`
}

func NewDefense(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &DefenseTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Anti-Clickjacking Generator",
			Category:    types.CategoryClickjacking,
			Version:     "2.0.0",
			Description: "Prints the header configuration that blocks framing for common servers and frameworks",
			Usage:       "pantest run anti-clickjacking --framework nginx",
			Tags:        []string{"clickjacking", "defense", "headers"},
			RiskLevel:   types.RiskLow,
		}, env.Log()),
		env: env,
	}
}

func (t *DefenseTool) parse(p params.Params) (defenseParams, error) {
	dp := defenseParams{Framework: "all"}
	if err := params.Decode(p, &dp); err != nil {
		return dp, err
	}
	dp.Framework = strings.ToLower(strings.TrimSpace(dp.Framework))
	if dp.Framework == "all" {
		return dp, nil
	}
	if err := params.OneOf("framework", dp.Framework, append(Frameworks(), "all")...); err != nil {
		return dp, err
	}
	return dp, nil
}

func (t *DefenseTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *DefenseTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	dp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	names := []string{dp.Framework}
	if dp.Framework == "all" {
		names = Frameworks()
	}
	for _, name := range names {
		s := snippets[name]
		t.AddResult(types.Record{"framework": name, "file": s.File, "code": s.Code})
	}

	t.AddRecommendation("Send both X-Frame-Options and CSP frame-ancestors; older browsers only honour the former")
	t.AddRecommendation("Verify the headers with clickjacking-check after deploying")
	t.AddSuccess("generated anti-clickjacking configuration")
	return types.Record{
		"framework":  dp.Framework,
		"frameworks": names,
		"headers": types.Record{
			"X-Frame-Options":         "DENY",
			"Content-Security-Policy": "frame-ancestors 'none'",
		},
	}
}
