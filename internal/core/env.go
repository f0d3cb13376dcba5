package core

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/cache"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/config"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/platform"
)

// Endpoints are the upstream services lookup tools talk to. Tests point them
// at local fakes.
type Endpoints struct {
	// DNSServer is host:port. Empty means the system resolver configuration.
	DNSServer string
	IPGeo     string
	// ShortBase prefixes generated short links.
	ShortBase string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		IPGeo:     "http://ip-api.com/json/",
		ShortBase: "https://short.test",
	}
}

// Env is the process-wide collaborators a tool may use. It is built once at
// startup and shared read-only by every tool instance.
type Env struct {
	Config    *config.Config
	Logger    *logger.Logger
	Platform  *platform.Probe
	Cache     *cache.Cache // nil when cache_enabled is false
	Endpoints Endpoints
	Now       func() time.Time
}

// PoolSize clamps a requested worker count to [1, MaxThreads] for the host.
// Tools size their pools through it so a tool default can not exceed the
// ceiling the guard applies to an explicit threads parameter.
func (e *Env) PoolSize(n int) int {
	ceiling := 1
	if e != nil && e.Platform != nil {
		ceiling = e.Platform.MaxThreads()
	}
	return max(1, min(n, ceiling))
}

// NewEnv wires an Env from loaded configuration. A cache that cannot be
// opened is logged and disabled.
func NewEnv(cfg *config.Config, log *logger.Logger, probe *platform.Probe) *Env {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	if probe == nil {
		probe = platform.Detect()
	}
	env := &Env{
		Config:    cfg,
		Logger:    log,
		Platform:  probe,
		Endpoints: DefaultEndpoints(),
		Now:       time.Now,
	}
	if cfg.CacheEnabled && cfg.CacheTTL > 0 {
		c, err := cache.New(filepath.Join(cfg.OutputDir, ".cache"), cfg.CacheTTLDuration(), log)
		if err != nil {
			log.Warnw("Lookup cache disabled", "error", err)
		} else {
			c.Prune()
			env.Cache = c
		}
	}
	return env
}

// HTTPClient returns a client built from the configuration, after applying
// any per-tool adjustments.
func (e *Env) HTTPClient(adjust ...func(*httpclient.Config)) (*http.Client, error) {
	var cfg *config.Config
	if e != nil {
		cfg = e.Config
	}
	c := httpclient.FromConfig(cfg)
	for _, fn := range adjust {
		fn(&c)
	}
	return httpclient.New(c)
}

func (e *Env) Clock() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Log returns the process logger, or a no-op logger on a nil Env.
func (e *Env) Log() *logger.Logger {
	if e == nil || e.Logger == nil {
		return logger.Nop()
	}
	return e.Logger
}

// OutputDir returns the configured artifact root.
func (e *Env) OutputDir() string {
	if e == nil || e.Config == nil {
		return config.Default().OutputDir
	}
	return e.Config.OutputDir
}

// Timeout returns the per-operation I/O bound.
func (e *Env) Timeout() time.Duration {
	if e == nil || e.Config == nil {
		return config.Default().TimeoutDuration()
	}
	return e.Config.TimeoutDuration()
}

// Ensure returns env, or a cache-less Env with default configuration when
// env is nil.
func Ensure(env *Env) *Env {
	if env != nil {
		return env
	}
	return &Env{
		Config:    config.Default(),
		Logger:    logger.Nop(),
		Platform:  platform.Detect(),
		Endpoints: DefaultEndpoints(),
		Now:       time.Now,
	}
}

func (e *Env) Retries() int {
	if e == nil || e.Config == nil {
		return 0
	}
	return e.Config.Retries
}
