package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 5, cfg.ThreadCount)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Empty(t, cfg.Proxy)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 3600, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, time.Hour, cfg.CacheTTLDuration())
}

func TestLoadYAMLKeepsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pantest.yaml")
	content := `
timeout: 10
thread_count: 8
output_dir: ` + filepath.Join(dir, "out") + `
log_dir: ` + filepath.Join(dir, "logs") + `
shodan:
  api_key: abc123
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, warnings, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 10, cfg.Timeout)
	assert.Equal(t, 8, cfg.ThreadCount)
	assert.Equal(t, 3, cfg.Retries)
	assert.Contains(t, cfg.Extra, "shodan")
	assert.Contains(t, cfg.Effective(), "shodan")

	assert.DirExists(t, cfg.OutputDir)
	assert.DirExists(t, cfg.LogDir)
	assert.Equal(t, cfg.LogDir, cfg.Logger.Dir)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pantest.json")
	content := `{"retries": 5, "cache_enabled": false, "output_dir": "` + filepath.ToSlash(filepath.Join(dir, "o")) +
		`", "log_dir": "` + filepath.ToSlash(filepath.Join(dir, "l")) + `"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, _, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Retries)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 30, cfg.Timeout)
}

func TestLoadUnsupportedFormatWarns(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "pantest.ini")
	require.NoError(t, os.WriteFile(path, []byte("timeout=1"), 0644))

	cfg, warnings, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "unsupported config format")
	assert.Equal(t, 30, cfg.Timeout)
	assert.DirExists(t, filepath.Join(dir, "output"))
	assert.DirExists(t, filepath.Join(dir, "logs"))
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, _, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNormalizeRepairsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Timeout = 0
	cfg.ThreadCount = -2
	cfg.Logger.Level = ""

	warnings := cfg.normalize()
	assert.Len(t, warnings, 2)
	assert.Equal(t, 30, cfg.Timeout)
	assert.Equal(t, 5, cfg.ThreadCount)
	assert.Equal(t, "warn", cfg.Logger.Level)
}
