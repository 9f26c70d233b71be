package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{" info ", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelWarn)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestLogger_LogFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelDebug)

	l.Info("test message with %s", "formatting")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "test message with formatting")
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelDebug)

	w := l.Named("watcher")
	w.Info("flushed %d items", 3)

	assert.Contains(t, buf.String(), "[INFO] watcher: flushed 3 items")

	// Level changes on the parent apply to named children.
	buf.Reset()
	l.SetLevel(LevelError)
	w.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestLogger_Configure(t *testing.T) {
	l := New()
	require.NoError(t, l.Configure("debug", ""))
	assert.Equal(t, LevelDebug, l.Level())

	assert.Error(t, l.Configure("loud", ""))

	path := filepath.Join(t.TempDir(), "specdash.log")
	require.NoError(t, l.Configure("", path))
	defer l.Close()

	l.Info("to file")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "to file")
}

func TestLogger_EnvVarLogLevel(t *testing.T) {
	t.Setenv("SPECDASH_LOG_LEVEL", "debug")

	l := New()
	assert.Equal(t, LevelDebug, l.Level())
}

func TestLogger_EnvVarLogFile(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "specdash-test.log")
	t.Setenv("SPECDASH_LOG_FILE", tmpPath)
	t.Setenv("SPECDASH_LOG_LEVEL", "info")

	l := New()
	defer l.Close()

	l.Info("test message")

	content, err := os.ReadFile(tmpPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "test message"))
}

func TestLogger_Close(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "specdash-test.log")
	t.Setenv("SPECDASH_LOG_FILE", tmpPath)

	l := New()
	assert.NoError(t, l.Close())
	// Second close is a no-op.
	assert.NoError(t, l.Close())
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	Default.SetOutput(&buf)
	Default.SetLevel(LevelDebug)
	defer Default.SetOutput(os.Stderr)

	Debug("debug %s", "test")
	Info("info %s", "test")
	Warn("warn %s", "test")
	Error("error %s", "test")
	Named("server").Info("named %s", "test")

	output := buf.String()
	assert.Contains(t, output, "debug test")
	assert.Contains(t, output, "info test")
	assert.Contains(t, output, "warn test")
	assert.Contains(t, output, "error test")
	assert.Contains(t, output, "server: named test")
}
