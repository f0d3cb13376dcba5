// Package platform detects the host family the toolkit runs on and derives
// worker limits from it.
package platform

import (
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
)

const mobileShellEnv = "TERMUX_VERSION"

type Family string

const (
	FamilyPOSIX       Family = "posix"
	FamilyWindows     Family = "windows"
	FamilyMacOS       Family = "macos"
	FamilyWSL         Family = "wsl"
	FamilyMobileShell Family = "mobile-shell"
)

// Inputs are the raw facts a Probe is derived from. Tests build them
// directly; Detect reads them from the running host.
type Inputs struct {
	GOOS          string
	KernelVersion string
	LogicalCPUs   int
	Env           func(string) string
	LookPath      func(string) (string, error)
}

type Probe struct {
	in Inputs
}

// Detect inspects the current host.
func Detect() *Probe {
	in := Inputs{
		GOOS:     runtime.GOOS,
		Env:      os.Getenv,
		LookPath: exec.LookPath,
	}
	if v, err := host.KernelVersion(); err == nil {
		in.KernelVersion = v
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		in.LogicalCPUs = n
	} else {
		in.LogicalCPUs = runtime.NumCPU()
	}
	return New(in)
}

func New(in Inputs) *Probe {
	if in.Env == nil {
		in.Env = func(string) string { return "" }
	}
	if in.LookPath == nil {
		in.LookPath = exec.LookPath
	}
	if in.LogicalCPUs <= 0 {
		in.LogicalCPUs = 1
	}
	return &Probe{in: in}
}

func (p *Probe) IsWindows() bool { return p.in.GOOS == "windows" }

func (p *Probe) IsMacOS() bool { return p.in.GOOS == "darwin" }

func (p *Probe) IsPOSIX() bool { return !p.IsWindows() }

func (p *Probe) IsMobileShell() bool {
	return p.in.Env(mobileShellEnv) != ""
}

func (p *Probe) IsWSL() bool {
	return p.in.GOOS == "linux" && strings.Contains(strings.ToLower(p.in.KernelVersion), "microsoft")
}

func (p *Probe) Family() Family {
	switch {
	case p.IsMobileShell():
		return FamilyMobileShell
	case p.IsWSL():
		return FamilyWSL
	case p.IsWindows():
		return FamilyWindows
	case p.IsMacOS():
		return FamilyMacOS
	default:
		return FamilyPOSIX
	}
}

func (p *Probe) LogicalCPUs() int { return p.in.LogicalCPUs }

// OptimalThreadCount caps worker pools: min(cpu, 4) on mobile shells,
// min(2*cpu, 16) on Windows and WSL, min(2*cpu, 32) elsewhere.
func (p *Probe) OptimalThreadCount() int {
	cpus := p.in.LogicalCPUs
	switch {
	case p.IsMobileShell():
		return min(cpus, 4)
	case p.IsWindows() || p.IsWSL():
		return min(cpus*2, 16)
	default:
		return min(cpus*2, 32)
	}
}

// MaxThreads is the hard ceiling for any single worker pool.
func (p *Probe) MaxThreads() int { return 2 * p.OptimalThreadCount() }

func (p *Probe) HasBinary(name string) bool {
	_, err := p.in.LookPath(name)
	return err == nil
}

// CheckDependencies reports PATH availability for each named binary.
func (p *Probe) CheckDependencies(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = p.HasBinary(n)
	}
	return out
}

// Info summarises the probe for display.
func (p *Probe) Info() map[string]interface{} {
	return map[string]interface{}{
		"family":               string(p.Family()),
		"os":                   p.in.GOOS,
		"kernel_version":       p.in.KernelVersion,
		"logical_cpus":         p.in.LogicalCPUs,
		"is_posix":             p.IsPOSIX(),
		"is_windows":           p.IsWindows(),
		"is_macos":             p.IsMacOS(),
		"is_mobile_shell":      p.IsMobileShell(),
		"is_wsl":               p.IsWSL(),
		"optimal_thread_count": p.OptimalThreadCount(),
	}
}
