package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  config.LoggerConfig
		wantErr bool
	}{
		{
			name:   "valid json config",
			config: config.LoggerConfig{Level: "debug", Format: "json"},
		},
		{
			name:   "valid console config",
			config: config.LoggerConfig{Level: "info", Format: "console"},
		},
		{
			name:   "critical level name",
			config: config.LoggerConfig{Level: "CRITICAL", Format: "console"},
		},
		{
			name:    "invalid level",
			config:  config.LoggerConfig{Level: "invalid", Format: "json"},
			wantErr: true,
		},
		{
			name:   "empty config uses defaults",
			config: config.LoggerConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":         zapcore.WarnLevel,
		"WARNING":  zapcore.WarnLevel,
		"debug":    zapcore.DebugLevel,
		"error":    zapcore.ErrorLevel,
		"critical": zapcore.DPanicLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestFileSinkWritesDatedLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(config.LoggerConfig{Level: "error", Format: "console", Dir: dir})
	require.NoError(t, err)

	logger.WithTool("hash").Debugw("file only", "key", "value")
	logger.Critical("something broke", "code", 3)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, `"level":"DEBUG"`)
	assert.Contains(t, content, `"level":"CRITICAL"`)
	assert.Contains(t, content, `"tool":"hash"`)
	assert.Equal(t, 2, strings.Count(content, "\n"))
}

func TestLoggerMethods(t *testing.T) {
	logger, err := New(config.LoggerConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	ctx := context.Background()
	ctx, span := logger.StartSpan(ctx, "test")
	defer span.End()

	logger.WithComponent("test").Infow("structured info", "key", "value")
	logger.WithTarget("example.com").Warnw("structured warn", "key", "value")
	logger.LogDuration(ctx, "op", time.Now().Add(-time.Second))
	logger.LogError(ctx, errors.New("boom"), "op")
	logger.LogError(ctx, nil, "op")
	logger.LogPanic(ctx, "panic value", "op")
	logger.LogSecurityEvent(ctx, "authorization_missing", "HIGH", map[string]interface{}{"tool": "ddos-sim"})
}

func TestContextRoundTrip(t *testing.T) {
	logger := Nop()
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
