package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	config := DefaultConfig()
	limiter := NewLimiter(config)

	if limiter == nil {
		t.Fatal("NewLimiter() should return non-nil limiter")
	}

	stats := limiter.Stats()
	if stats.Limit != config.RequestsPerSecond {
		t.Errorf("stats.Limit = %v, want %v", stats.Limit, config.RequestsPerSecond)
	}
	if stats.Granted != 0 {
		t.Errorf("stats.Granted = %v, want 0", stats.Granted)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(Config{RequestsPerSecond: 10, BurstSize: 2})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("burst requests took too long: %v", d)
	}

	start = time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("third request should be rate limited, took %v", d)
	}

	if got := limiter.Stats().Granted; got != 3 {
		t.Errorf("Granted = %d, want 3", got)
	}
}

func TestLimiter_WaitForHostSpacing(t *testing.T) {
	limiter := NewLimiter(Config{RequestsPerSecond: 1000, BurstSize: 10, MinDelay: 60 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.WaitForHost(ctx, "example.com"); err != nil {
			t.Fatalf("WaitForHost() error = %v", err)
		}
	}
	if d := time.Since(start); d < 100*time.Millisecond {
		t.Errorf("three requests to one host took %v, want at least 100ms", d)
	}

	if err := limiter.WaitForHost(ctx, "other.example"); err != nil {
		t.Fatalf("WaitForHost() error = %v", err)
	}
	if got := limiter.Stats().TrackedHosts; got != 2 {
		t.Errorf("TrackedHosts = %d, want 2", got)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(Config{RequestsPerSecond: 0.1, BurstSize: 1})
	_ = limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("Wait() should fail when the context expires first")
	}
}

func TestSimulationConfig(t *testing.T) {
	tests := []struct {
		workers int
		rps     float64
		burst   int
	}{
		{0, 20, 1},
		{4, 80, 4},
		{50, 200, 50},
	}
	for _, tt := range tests {
		cfg := SimulationConfig(tt.workers)
		if cfg.RequestsPerSecond != tt.rps || cfg.BurstSize != tt.burst {
			t.Errorf("SimulationConfig(%d) = %+v, want rps %v burst %d", tt.workers, cfg, tt.rps, tt.burst)
		}
	}
}

func TestKeyed(t *testing.T) {
	k := NewKeyed(1, 1)
	if !k.Allow("a") {
		t.Fatal("first request for a should be allowed")
	}
	if k.Allow("a") {
		t.Error("second immediate request for a should be limited")
	}
	if !k.Allow("b") {
		t.Error("b has its own bucket")
	}
	if removed := k.Prune(-time.Second); removed != 2 {
		t.Errorf("Prune removed %d buckets, want 2", removed)
	}
}
