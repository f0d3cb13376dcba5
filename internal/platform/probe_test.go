package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestOptimalThreadCount(t *testing.T) {
	tests := []struct {
		name   string
		in     Inputs
		family Family
		want   int
	}{
		{
			name:   "linux small",
			in:     Inputs{GOOS: "linux", KernelVersion: "6.8.0-generic", LogicalCPUs: 4},
			family: FamilyPOSIX,
			want:   8,
		},
		{
			name:   "linux capped at 32",
			in:     Inputs{GOOS: "linux", LogicalCPUs: 64},
			family: FamilyPOSIX,
			want:   32,
		},
		{
			name:   "windows capped at 16",
			in:     Inputs{GOOS: "windows", LogicalCPUs: 12},
			family: FamilyWindows,
			want:   16,
		},
		{
			name:   "wsl kernel",
			in:     Inputs{GOOS: "linux", KernelVersion: "5.15.153.1-microsoft-standard-WSL2", LogicalCPUs: 16},
			family: FamilyWSL,
			want:   16,
		},
		{
			name:   "termux capped at 4",
			in:     Inputs{GOOS: "linux", LogicalCPUs: 8, Env: env(map[string]string{"TERMUX_VERSION": "0.118"})},
			family: FamilyMobileShell,
			want:   4,
		},
		{
			name:   "macos",
			in:     Inputs{GOOS: "darwin", LogicalCPUs: 10},
			family: FamilyMacOS,
			want:   20,
		},
		{
			name:   "unknown cpu count",
			in:     Inputs{GOOS: "linux"},
			family: FamilyPOSIX,
			want:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.in)
			assert.Equal(t, tt.family, p.Family())
			assert.Equal(t, tt.want, p.OptimalThreadCount())
			assert.Equal(t, 2*tt.want, p.MaxThreads())
		})
	}
}

func TestFlags(t *testing.T) {
	p := New(Inputs{GOOS: "darwin", LogicalCPUs: 2})
	assert.True(t, p.IsPOSIX())
	assert.True(t, p.IsMacOS())
	assert.False(t, p.IsWindows())
	assert.False(t, p.IsWSL())
	assert.False(t, p.IsMobileShell())

	w := New(Inputs{GOOS: "windows", LogicalCPUs: 2})
	assert.False(t, w.IsPOSIX())
	assert.True(t, w.IsWindows())
}

func TestCheckDependencies(t *testing.T) {
	p := New(Inputs{
		GOOS:        "linux",
		LogicalCPUs: 1,
		LookPath: func(name string) (string, error) {
			if name == "ping" {
				return "/usr/bin/ping", nil
			}
			return "", errors.New("not found")
		},
	})

	deps := p.CheckDependencies("ping", "traceroute")
	assert.Equal(t, map[string]bool{"ping": true, "traceroute": false}, deps)
	assert.Equal(t, 2, p.Info()["optimal_thread_count"])
}
