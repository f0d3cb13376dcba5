package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/registry"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/tooltest"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

func TestRegisterDefaults(t *testing.T) {
	reg := registry.New(tooltest.Env(t))
	require.NoError(t, RegisterDefaults(reg))

	assert.Len(t, reg.IDs(), len(IDs()))
	for _, id := range IDs() {
		meta, ok := reg.Metadata(id)
		require.True(t, ok, id)
		assert.NotEmpty(t, meta.Name, id)
		assert.NotEmpty(t, meta.Description, id)
		assert.True(t, meta.Category.Valid(), id)
	}
}

func TestRegisterDefaultsTwiceFails(t *testing.T) {
	reg := registry.New(tooltest.Env(t))
	require.NoError(t, RegisterDefaults(reg))
	assert.Error(t, RegisterDefaults(reg))
}

func TestDefaultCategories(t *testing.T) {
	reg := registry.New(tooltest.Env(t))
	require.NoError(t, RegisterDefaults(reg))

	groups := reg.ByCategory()
	assert.Equal(t, []string{"anti-clickjacking", "clickjacking-check", "clickjacking-make"}, groups[types.CategoryClickjacking])
	assert.Equal(t, []string{"email-phishing", "web-phishing"}, groups[types.CategoryPhishing])
	assert.Equal(t, []string{"pass-strength", "waf-detect"}, groups[types.CategorySecurity])
	assert.Equal(t, []string{"dorking", "ip-geo"}, groups[types.CategoryOSINT])
	assert.Equal(t, []string{"hash-cracker", "jwt-decoder"}, groups[types.CategoryCrypto])
	assert.Contains(t, groups[types.CategoryNetwork], "subnet-calc")
	assert.Contains(t, groups[types.CategoryNetwork], "port-scan")
	assert.Contains(t, groups[types.CategoryWeb], "sql-inject")
	assert.Contains(t, groups[types.CategoryUtilities], "hash")
}

func TestCriticalToolsCarryDisclaimer(t *testing.T) {
	reg := registry.New(tooltest.Env(t))
	require.NoError(t, RegisterDefaults(reg))

	for _, id := range reg.IDs() {
		meta, _ := reg.Metadata(id)
		if meta.RiskLevel == types.RiskCritical {
			assert.NotEmpty(t, meta.LegalDisclaimer, id)
		}
	}
	meta, _ := reg.Metadata("clickjacking-make")
	assert.Equal(t, types.RiskCritical, meta.RiskLevel)
	meta, _ = reg.Metadata("ddos-sim")
	assert.NotEmpty(t, meta.LegalDisclaimer)
}

func TestEveryToolReportsAndResetsValidationErrors(t *testing.T) {
	reg := registry.New(tooltest.Env(t))
	require.NoError(t, RegisterDefaults(reg))

	bundles := map[string]params.Params{
		"empty": {},
		"garbage": {
			"host":    "+1.2.3.4",
			"url":     "::nope",
			"domain":  "-bad-",
			"email":   "nobody",
			"target":  "!!",
			"ports":   "99999",
			"count":   "-1",
			"length":  "-1",
			"threads": "many",
		},
	}

	rejected := 0
	for _, id := range reg.IDs() {
		for name, bad := range bundles {
			t.Run(id+"/"+name, func(t *testing.T) {
				fresh, err := reg.New(id)
				require.NoError(t, err)
				if fresh.Validate(bad) {
					return
				}
				rejected++
				want := fresh.Errors()
				require.NotEmpty(t, want, "a rejected bundle must say why")

				tool, err := reg.New(id)
				require.NoError(t, err)
				other := bundles["empty"]
				if name == "empty" {
					other = bundles["garbage"]
				}
				tool.Validate(other)
				assert.False(t, tool.Validate(bad))
				assert.Equal(t, want, tool.Errors(), "errors from the earlier call leaked")

				assert.False(t, tool.Validate(bad))
				assert.Equal(t, want, tool.Errors(), "repeated validation accumulated errors")

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				assert.Nil(t, tool.Run(ctx, bad))
				assert.Equal(t, want, tool.Errors(), "run kept errors from validation")
			})
		}
	}
	assert.Positive(t, rejected)
}

func TestHostToolsRejectSignedOctets(t *testing.T) {
	reg := registry.New(tooltest.Env(t))
	require.NoError(t, RegisterDefaults(reg))

	for _, id := range []string{"dns", "ip-geo", "ping", "port-scan", "ssl-check", "traceroute", "whois"} {
		tool, err := reg.New(id)
		require.NoError(t, err)
		for _, host := range []string{"+1.2.3.4", "1.-0.3.4"} {
			assert.False(t, tool.Validate(params.Params{"host": host}), id+" "+host)
			assert.NotEmpty(t, tool.Errors(), id)
		}
	}
}
