package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/tooltest"
)

func TestDetectByHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("CF-Ray", "7d1c2b3a4e5f-AMS")
	h.Set("Server", "cloudflare")
	h.Set("X-Fortiweb", "1")

	got := DetectByHeaders(h)
	require.Len(t, got, 2)
	assert.Equal(t, "CLOUDFLARE", got[0].WAF)
	assert.InDelta(t, 0.7, got[0].Confidence, 0.001)
	assert.Len(t, got[0].Indicators, 2)
	assert.Equal(t, "FORTIWEB", got[1].WAF)
	assert.InDelta(t, 0.3, got[1].Confidence, 0.001)
}

func TestDetectByHeadersCapsConfidence(t *testing.T) {
	h := http.Header{}
	h.Set("Akamai-Cache-Status", "Hit")
	h.Set("Akamai-X-Cache", "TCP_HIT")
	h.Set("Server", "AkamaiGHost akamai")

	got := DetectByHeaders(h)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Confidence)
}

func TestDetectByHeadersNone(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "Apache")
	assert.Empty(t, DetectByHeaders(h))
}

func TestWAFDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.Header().Set("CF-Ray", "abc")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tool := NewWAF(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL})
	require.True(t, ok)
	require.NotNil(t, summary)

	assert.Equal(t, true, summary["waf_detected"])
	assert.Equal(t, []string{"CLOUDFLARE"}, summary["detected_firewalls"])
	assert.Equal(t, "HIGH", summary["protection_level"])
	assert.Equal(t, "PROTECTED", summary["verdict"])
}

func TestWAFNoneWithoutPayloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tool := NewWAF(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL})
	require.True(t, ok)
	require.NotNil(t, summary)

	assert.Equal(t, false, summary["waf_detected"])
	assert.Equal(t, "NONE", summary["protection_level"])
	assert.Equal(t, "POTENTIALLY_VULNERABLE", summary["verdict"])
	assert.InDelta(t, 0.5, summary["risk_score"], 0.001)
}

func TestWAFPayloadsPassThrough(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tool := NewWAF(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL, "test_payloads": true})
	require.True(t, ok)
	require.NotNil(t, summary)

	assert.Equal(t, "VULNERABLE", summary["verdict"])
	assert.InDelta(t, 1.0, summary["risk_score"], 0.001)
	assert.Equal(t, int32(len(testPayloads)+1), hits.Load())
}

func TestWAFPayloadsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, vs := range r.URL.Query() {
			if strings.ContainsAny(vs[0], "'<") || strings.Contains(vs[0], "..") {
				http.Error(w, "blocked", http.StatusForbidden)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tool := NewWAF(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"url": srv.URL, "test_payloads": true})
	require.True(t, ok)
	require.NotNil(t, summary)

	assert.Equal(t, true, summary["waf_detected"])
	// Unrecognised WAF, every payload blocked: only the missing signature counts.
	assert.InDelta(t, 0.5, summary["risk_score"], 0.001)

	var payloads map[string]interface{}
	for _, r := range tool.Results() {
		if r["analysis"] == "payloads" {
			payloads = r
		}
	}
	require.NotNil(t, payloads)
	assert.Equal(t, len(testPayloads), payloads["blocked_payloads"])
	assert.Equal(t, 100.0, payloads["blocked_percentage"])
}

func TestWAFValidation(t *testing.T) {
	tool := NewWAF(tooltest.Env(t))
	assert.False(t, tool.Validate(params.Params{}))
	assert.False(t, tool.Validate(params.Params{"url": "example.com"}))
}

func TestRate(t *testing.T) {
	tests := []struct {
		pw    string
		score int
		label string
	}{
		{"abc", 0, "Very Weak"},
		{"abcdefgh", 1, "Weak"},
		{"abcdEFGH", 2, "Moderate"},
		{"abcdEFGH1", 3, "Strong"},
		{"P@ssw0rd123", 4, "Very Strong"},
	}
	for _, tt := range tests {
		t.Run(tt.pw, func(t *testing.T) {
			s := Rate(tt.pw)
			assert.Equal(t, tt.score, s.Score)
			assert.Equal(t, tt.label, s.Label)
			assert.Len(t, s.Feedback, 4-tt.score)
		})
	}
}

func TestRateEntropy(t *testing.T) {
	assert.Zero(t, Rate("").EntropyBits)
	// 8 lowercase letters: 8 * log2(26)
	assert.InDelta(t, 37.6, Rate("abcdefgh").EntropyBits, 0.01)
}

func TestPasswordToolMasks(t *testing.T) {
	tool := NewPassword(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"text": "P@ssw0rd123"})
	require.True(t, ok)
	require.NotNil(t, summary)

	assert.Equal(t, "***********", summary["password"])
	assert.Equal(t, 4, summary["score"])
	assert.Equal(t, "Very Strong", summary["strength"])
	assert.Empty(t, summary["feedback"])
}

func TestPasswordToolAcceptsPasswordKey(t *testing.T) {
	tool := NewPassword(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"password": "short"})
	require.True(t, ok)
	require.NotNil(t, summary)
	assert.Equal(t, "*****", summary["password"])
	assert.Equal(t, "Very Weak", summary["strength"])
}

func TestPasswordToolRequiresInput(t *testing.T) {
	tool := NewPassword(tooltest.Env(t))
	assert.False(t, tool.Validate(params.Params{}))
	assert.Contains(t, tool.Errors()[0], "password is required")
}
