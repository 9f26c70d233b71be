package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points XDG and the working directory at a fresh temp dir and
// clears SPECDASH_* variables so developer settings never leak into tests.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	for _, key := range envKeys {
		t.Setenv("SPECDASH_"+strings.ToUpper(key), "")
	}
	t.Chdir(dir)
	return dir
}

func TestGlobalPath(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		assert.Equal(t, "/custom/config/specdash/specdash.yml", GlobalPath())
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		got := GlobalPath()
		assert.True(t, filepath.IsAbs(got), "GlobalPath() should be absolute, got %s", got)
		assert.Equal(t, "specdash.yml", filepath.Base(got))
	})
}

func TestProjectPath(t *testing.T) {
	assert.Equal(t, "specdash.yml", ProjectPath())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Projects)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultWorkflowDir, cfg.WorkflowDir)
	assert.Equal(t, DefaultDebounce, cfg.Debounce)
	assert.Equal(t, DefaultParseWorkers, cfg.ParseWorkers)
	assert.Equal(t, DefaultClientBuffer, cfg.ClientBuffer)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	isolate(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(GlobalPath()), 0755))
	require.NoError(t, os.WriteFile(GlobalPath(), []byte(
		"listen: 0.0.0.0:9000\nparse_workers: 2\nprojects:\n  - /srv/global\n"), 0644))
	require.NoError(t, os.WriteFile(ProjectPath(), []byte(
		"parse_workers: 8\ndebounce: 300ms\nprojects:\n  - /srv/a\n  - /srv/b\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen, "global value survives when project omits it")
	assert.Equal(t, 8, cfg.ParseWorkers)
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce)
	assert.Equal(t, []string{"/srv/a", "/srv/b"}, cfg.Projects)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)

	require.NoError(t, os.WriteFile(ProjectPath(), []byte("listen: 127.0.0.1:1111\n"), 0644))
	t.Setenv("SPECDASH_LISTEN", "127.0.0.1:2222")
	t.Setenv("SPECDASH_PROJECTS", "/p/one, /p/two")
	t.Setenv("SPECDASH_CLIENT_BUFFER", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:2222", cfg.Listen)
	assert.Equal(t, []string{"/p/one", "/p/two"}, cfg.Projects)
	assert.Equal(t, 7, cfg.ClientBuffer)
}

func TestLoad_InvalidProjectConfig(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(ProjectPath(), []byte("listen: [unterminated\n"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Listen:       DefaultListen,
			WorkflowDir:  DefaultWorkflowDir,
			Debounce:     DefaultDebounce,
			ParseWorkers: 1,
			ClientBuffer: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = " " }},
		{"empty workflow dir", func(c *Config) { c.WorkflowDir = "" }},
		{"absolute workflow dir", func(c *Config) { c.WorkflowDir = "/abs/.claude" }},
		{"zero debounce", func(c *Config) { c.Debounce = 0 }},
		{"zero workers", func(c *Config) { c.ParseWorkers = 0 }},
		{"zero buffer", func(c *Config) { c.ClientBuffer = 0 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExists(t *testing.T) {
	isolate(t)

	assert.False(t, Exists())

	require.NoError(t, os.WriteFile(ProjectPath(), []byte("listen: x\n"), 0644))
	assert.True(t, Exists())
	require.NoError(t, os.Remove(ProjectPath()))

	require.NoError(t, os.MkdirAll(filepath.Dir(GlobalPath()), 0755))
	require.NoError(t, os.WriteFile(GlobalPath(), []byte("listen: x\n"), 0644))
	assert.True(t, Exists())
}

func TestWriteProject_RoundTrip(t *testing.T) {
	isolate(t)

	cfg := &Config{
		Projects:     []string{"/work/api", "/work/web"},
		Listen:       "127.0.0.1:4000",
		WorkflowDir:  ".claude",
		Debounce:     250 * time.Millisecond,
		ParseWorkers: 3,
		ClientBuffer: 16,
		Ignore:       []string{"*.bak"},
		LogLevel:     "debug",
	}
	require.NoError(t, WriteProject(cfg))

	data, err := os.ReadFile(ProjectPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "listen: 127.0.0.1:4000")
	assert.Contains(t, string(data), "- /work/api")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Projects, loaded.Projects)
	assert.Equal(t, cfg.Debounce, loaded.Debounce)
	assert.Equal(t, cfg.ParseWorkers, loaded.ParseWorkers)
	assert.Equal(t, cfg.Ignore, loaded.Ignore)
}

func TestWriteGlobal(t *testing.T) {
	isolate(t)

	require.NoError(t, WriteGlobal(&Config{Listen: "127.0.0.1:5000", LogLevel: "info"}))

	data, err := os.ReadFile(GlobalPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "listen: 127.0.0.1:5000")
	assert.Contains(t, string(data), "log_level: info")
}
