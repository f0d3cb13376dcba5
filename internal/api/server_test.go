package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/dispatch"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/guard"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/platform"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/ratelimit"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/registry"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/session"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/tooltest"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/utilities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	now    time.Time
}

func newFixture(t *testing.T, limiter *ratelimit.Keyed) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	env := tooltest.Env(t)
	reg := registry.New(env)
	require.NoError(t, tools.RegisterDefaults(reg))

	d := &dispatch.Dispatcher{
		Config:   env.Config,
		Registry: reg,
		Session:  session.New(clock),
		Guard:    guard.New(platform.New(platform.Inputs{GOOS: "linux", LogicalCPUs: 4}), nil),
		Now:      clock,
	}
	f.router = NewServer(d, limiter, "test").Router()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["healthy"])
	assert.Equal(t, float64(len(tools.IDs())), body["tools"])
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestRequestIDIsReused(t *testing.T) {
	f := newFixture(t, nil)
	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", id)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get("X-Request-ID"))
}

func TestListTools(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "/api/v1/tools", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(len(tools.IDs())), decode(t, w)["count"])

	w = f.do(http.MethodGet, "/api/v1/tools?category=phishing", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = f.do(http.MethodGet, "/api/v1/tools?category=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTool(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "/api/v1/tools/hash", "")
	require.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w)["metadata"].(map[string]interface{})
	assert.Equal(t, "Utilities", meta["category"])

	w = f.do(http.MethodGet, "/api/v1/tools/nonexistent-tool", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunTool(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/api/v1/tools/hash/run", `{"text":"test","algorithm":"sha256"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Exit-Code"))

	body := decode(t, w)
	assert.Equal(t, "hash", body["tool"])
	results := body["results"].([]interface{})
	require.NotEmpty(t, results)
	assert.Equal(t,
		"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		results[0].(map[string]interface{})["hash"])
}

func TestRunToolValidationFailure(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/api/v1/tools/ddos-sim/run",
		`{"target":"example.com","type":"http","duration":9999,"threads":9999}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := decode(t, w)
	assert.Empty(t, body["results"])
	errs := body["errors"].([]interface{})
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "authoriz")
}

func TestRunToolBadRequests(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/tools/hash/run", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/tools/hash/run", `[1,2]`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/v1/tools/nope/run", `{"text":"x"}`).Code)
}

func TestRunToolQuotaExhausted(t *testing.T) {
	f := newFixture(t, nil)
	f.now = f.now.Add(session.Quota + time.Second)

	w := f.do(http.MethodPost, "/api/v1/tools/hash/run", `{"text":"test"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = f.do(http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["quota_reached"])
	assert.Equal(t, "20240101100000", body["session_id"])
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, ratelimit.NewKeyed(0.001, 2))
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/session", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/session", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/api/v1/session", "").Code)
	// health sits outside the limited group
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
}

func TestRunToolRejectsOutputOutsideOutputDir(t *testing.T) {
	f := newFixture(t, nil)
	outside := filepath.Join(t.TempDir(), "escaped.json")
	body, err := json.Marshal(map[string]string{"text": "x", "output": outside})
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/api/v1/tools/hash/run", string(body))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Exit-Code"))

	_, err = os.Stat(outside)
	assert.True(t, os.IsNotExist(err))
}

func TestShortLinkRedirectTracksClicks(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/api/v1/tools/url-shorten/run", `{"url":"https://example.com/landing","alias":"promo"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dbPath := decode(t, w)["results"].([]interface{})[0].(map[string]interface{})["database"].(string)

	req := httptest.NewRequest(http.MethodGet, "/s/promo", nil)
	req.Header.Set("Referer", "https://mail.example.net/")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/landing", rec.Header().Get("Location"))

	store, err := utilities.OpenLinkStore(dbPath)
	require.NoError(t, err)
	link, ok := store.Get("promo")
	require.True(t, ok)
	assert.Equal(t, 1, link.ClickCount)
	assert.Equal(t, "https://mail.example.net/", link.Clicks[0].Referrer)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/s/missing", "").Code)
}
