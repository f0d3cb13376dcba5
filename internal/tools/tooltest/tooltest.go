// Package tooltest builds isolated environments for tool tests.
package tooltest

import (
	"context"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/config"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/platform"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// Env returns an Env writing under a temp directory with the lookup cache
// off, a 5 second timeout and no retries.
func Env(t testing.TB) *core.Env {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.CacheEnabled = false
	cfg.Timeout = 5
	cfg.Retries = 0
	return core.NewEnv(cfg, logger.Nop(), platform.Detect())
}

// CachedEnv is Env with the lookup cache on.
func CachedEnv(t testing.TB) *core.Env {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.CacheEnabled = true
	cfg.CacheTTL = 3600
	cfg.Timeout = 5
	cfg.Retries = 0
	return core.NewEnv(cfg, logger.Nop(), platform.Detect())
}

// Run validates and runs tool with p, the way the dispatcher does, and
// returns the summary.
func Run(t testing.TB, tool core.Tool, p params.Params) (types.Record, bool) {
	t.Helper()
	if !tool.Validate(p) {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return tool.Run(ctx, p), true
}
