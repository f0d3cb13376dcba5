package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type Config struct {
	Timeout      int          `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	Retries      int          `mapstructure:"retries" json:"retries" yaml:"retries"`
	ThreadCount  int          `mapstructure:"thread_count" json:"thread_count" yaml:"thread_count"`
	UserAgent    string       `mapstructure:"user_agent" json:"user_agent" yaml:"user_agent"`
	Proxy        string       `mapstructure:"proxy" json:"proxy" yaml:"proxy"`
	Verbose      bool         `mapstructure:"verbose" json:"verbose" yaml:"verbose"`
	OutputDir    string       `mapstructure:"output_dir" json:"output_dir" yaml:"output_dir"`
	LogDir       string       `mapstructure:"log_dir" json:"log_dir" yaml:"log_dir"`
	CacheEnabled bool         `mapstructure:"cache_enabled" json:"cache_enabled" yaml:"cache_enabled"`
	CacheTTL     int          `mapstructure:"cache_ttl" json:"cache_ttl" yaml:"cache_ttl"`
	Logger       LoggerConfig `mapstructure:"logger" json:"logger" yaml:"logger"`
	Server       ServerConfig `mapstructure:"server" json:"server" yaml:"server"`

	// Extra keeps keys this build does not recognise.
	Extra map[string]interface{} `mapstructure:",remain" json:"-" yaml:"-"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
	// Dir receives the dated log file. Empty disables file logging.
	Dir string `mapstructure:"dir" json:"dir,omitempty" yaml:"dir,omitempty"`
}

type ServerConfig struct {
	Host      string  `mapstructure:"host" json:"host" yaml:"host"`
	Port      int     `mapstructure:"port" json:"port" yaml:"port"`
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" json:"burst" yaml:"burst"`
}

func Default() *Config {
	return &Config{
		Timeout:      30,
		Retries:      3,
		ThreadCount:  5,
		UserAgent:    DefaultUserAgent,
		OutputDir:    "output",
		LogDir:       "logs",
		CacheEnabled: true,
		CacheTTL:     3600,
		Logger: LoggerConfig{
			Level:  "warn",
			Format: "console",
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8080,
			RateLimit: 5,
			Burst:     10,
		},
		Extra: map[string]interface{}{},
	}
}

// SetDefaults registers every recognised key on v so environment overrides
// and Unmarshal see them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("thread_count", d.ThreadCount)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("proxy", d.Proxy)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("cache_enabled", d.CacheEnabled)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.burst", d.Server.Burst)
}

// SupportedFormat reports whether path has an extension Load can parse.
func SupportedFormat(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads defaults, the optional config file and PANTEST_* environment
// overrides into a Config, then creates the output and log directories.
// Non-fatal problems are returned as warnings for the caller to log once a
// logger exists.
func Load(v *viper.Viper, path string) (*Config, []string, error) {
	var warnings []string

	SetDefaults(v)
	v.SetEnvPrefix("PANTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if !SupportedFormat(path) {
			warnings = append(warnings, fmt.Sprintf("unsupported config format %q, using defaults", filepath.Ext(path)))
		} else {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, warnings, types.Wrap(types.KindConfig, err, "failed to read config %s", path)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, warnings, types.Wrap(types.KindConfig, err, "failed to unmarshal config")
	}
	if cfg.Extra == nil {
		cfg.Extra = map[string]interface{}{}
	}

	warnings = append(warnings, cfg.normalize()...)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, warnings, err
	}

	return cfg, warnings, nil
}

func (c *Config) normalize() []string {
	var warnings []string
	d := Default()
	if c.Timeout <= 0 {
		warnings = append(warnings, fmt.Sprintf("timeout %d is not positive, using %d", c.Timeout, d.Timeout))
		c.Timeout = d.Timeout
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.ThreadCount <= 0 {
		warnings = append(warnings, fmt.Sprintf("thread_count %d is not positive, using %d", c.ThreadCount, d.ThreadCount))
		c.ThreadCount = d.ThreadCount
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.LogDir == "" {
		c.LogDir = d.LogDir
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
	if c.Logger.Level == "" {
		c.Logger.Level = d.Logger.Level
	}
	if c.Logger.Format == "" {
		c.Logger.Format = d.Logger.Format
	}
	if c.Logger.Dir == "" {
		c.Logger.Dir = c.LogDir
	}
	if c.Verbose && c.Logger.Level != "debug" {
		c.Logger.Level = "info"
	}
	return warnings
}

func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.OutputDir, c.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.Wrap(types.KindConfig, err, "failed to create directory %s", dir)
		}
	}
	return nil
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Effective flattens the configuration, unknown keys included, for display.
func (c *Config) Effective() map[string]interface{} {
	out := make(map[string]interface{}, len(c.Extra)+12)
	for k, v := range c.Extra {
		out[k] = v
	}
	out["timeout"] = c.Timeout
	out["retries"] = c.Retries
	out["thread_count"] = c.ThreadCount
	out["user_agent"] = c.UserAgent
	if c.Proxy != "" {
		out["proxy"] = c.Proxy
	} else {
		out["proxy"] = nil
	}
	out["verbose"] = c.Verbose
	out["output_dir"] = c.OutputDir
	out["log_dir"] = c.LogDir
	out["cache_enabled"] = c.CacheEnabled
	out["cache_ttl"] = c.CacheTTL
	out["logger"] = map[string]interface{}{
		"level":  c.Logger.Level,
		"format": c.Logger.Format,
	}
	out["server"] = map[string]interface{}{
		"host":       c.Server.Host,
		"port":       c.Server.Port,
		"rate_limit": c.Server.RateLimit,
		"burst":      c.Server.Burst,
	}
	return out
}
