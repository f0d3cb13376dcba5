// Package ratelimit paces outbound requests made by tools.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter combines a global token bucket with a minimum per-host spacing.
type Limiter struct {
	limiter  *rate.Limiter
	minDelay time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
	granted  int64
}

type Config struct {
	RequestsPerSecond float64
	BurstSize         int
	// MinDelay is the minimum spacing between requests to one host.
	MinDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		BurstSize:         5,
		MinDelay:          100 * time.Millisecond,
	}
}

// CrawlConfig is polite enough for crawling a single site.
func CrawlConfig() Config {
	return Config{
		RequestsPerSecond: 4,
		BurstSize:         2,
		MinDelay:          250 * time.Millisecond,
	}
}

// SimulationConfig paces the traffic simulator: at most 20 events per
// second per worker, capped at 200 events per second overall.
func SimulationConfig(workers int) Config {
	if workers < 1 {
		workers = 1
	}
	rps := float64(workers) * 20
	if rps > 200 {
		rps = 200
	}
	return Config{
		RequestsPerSecond: rps,
		BurstSize:         workers,
	}
}

func NewLimiter(cfg Config) *Limiter {
	if cfg.BurstSize < 1 {
		cfg.BurstSize = 1
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		minDelay: cfg.MinDelay,
		lastSeen: make(map[string]time.Time),
	}
}

// Wait blocks until the global bucket admits one event.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	l.granted++
	l.mu.Unlock()
	return nil
}

// WaitForHost waits for the global bucket and then for the per-host spacing.
func (l *Limiter) WaitForHost(ctx context.Context, host string) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	if l.minDelay <= 0 {
		return nil
	}

	l.mu.Lock()
	var sleep time.Duration
	now := time.Now()
	if last, ok := l.lastSeen[host]; ok {
		if elapsed := now.Sub(last); elapsed < l.minDelay {
			sleep = l.minDelay - elapsed
		}
	}
	l.lastSeen[host] = now.Add(sleep)
	l.mu.Unlock()

	if sleep == 0 {
		return nil
	}
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

type Stats struct {
	Granted      int64
	TrackedHosts int
	Limit        float64
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Granted:      l.granted,
		TrackedHosts: len(l.lastSeen),
		Limit:        float64(l.limiter.Limit()),
	}
}

// Keyed hands out one token bucket per key, for per-client API limits.
type Keyed struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*keyedBucket
}

type keyedBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewKeyed(rps float64, burst int) *Keyed {
	if burst < 1 {
		burst = 1
	}
	return &Keyed{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*keyedBucket),
	}
}

func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	b, ok := k.buckets[key]
	if !ok {
		b = &keyedBucket{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = time.Now()
	k.mu.Unlock()
	return b.limiter.Allow()
}

// Prune drops buckets idle for longer than idle.
func (k *Keyed) Prune(idle time.Duration) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	removed := 0
	for key, b := range k.buckets {
		if time.Since(b.lastSeen) > idle {
			delete(k.buckets, key)
			removed++
		}
	}
	return removed
}
