// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default values shared by Load and the CLI flag definitions.
const (
	DefaultListen       = "127.0.0.1:3737"
	DefaultWorkflowDir  = ".claude"
	DefaultDebounce     = 150 * time.Millisecond
	DefaultParseWorkers = 4
	DefaultClientBuffer = 64
)

// Config holds all configuration values for specdash.
type Config struct {
	Projects     []string      `mapstructure:"projects" yaml:"projects"`
	Listen       string        `mapstructure:"listen" yaml:"listen"`
	WorkflowDir  string        `mapstructure:"workflow_dir" yaml:"workflow_dir"`
	Debounce     time.Duration `mapstructure:"debounce" yaml:"debounce"`
	ParseWorkers int           `mapstructure:"parse_workers" yaml:"parse_workers"`
	ClientBuffer int           `mapstructure:"client_buffer" yaml:"client_buffer"`
	Ignore       []string      `mapstructure:"ignore" yaml:"ignore,omitempty"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile      string        `mapstructure:"log_file" yaml:"log_file"`
}

// envKeys lists every key bound to a SPECDASH_* variable.
var envKeys = []string{
	"projects",
	"listen",
	"workflow_dir",
	"debounce",
	"parse_workers",
	"client_buffer",
	"ignore",
	"log_level",
	"log_file",
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
// Flags are applied by the caller on top of the returned Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("specdash")

	v.SetDefault("projects", []string{})
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("workflow_dir", DefaultWorkflowDir)
	v.SetDefault("debounce", DefaultDebounce)
	v.SetDefault("parse_workers", DefaultParseWorkers)
	v.SetDefault("client_buffer", DefaultClientBuffer)
	v.SetDefault("ignore", []string{})
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("SPECDASH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range envKeys {
		if err := v.BindEnv(key, "SPECDASH_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Projects = splitList(cfg.Projects)
	cfg.Ignore = splitList(cfg.Ignore)

	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("listen address is required")
	}
	if strings.TrimSpace(c.WorkflowDir) == "" {
		return fmt.Errorf("workflow_dir is required")
	}
	if filepath.IsAbs(c.WorkflowDir) {
		return fmt.Errorf("workflow_dir must be relative to the project root: %s", c.WorkflowDir)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive (got %s)", c.Debounce)
	}
	if c.ParseWorkers < 1 {
		return fmt.Errorf("parse_workers must be >= 1 (got %d)", c.ParseWorkers)
	}
	if c.ClientBuffer < 1 {
		return fmt.Errorf("client_buffer must be >= 1 (got %d)", c.ClientBuffer)
	}
	return nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/specdash/specdash.yml or $XDG_CONFIG_HOME/specdash/specdash.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "specdash", "specdash.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "specdash", "specdash.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "specdash.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// splitList flattens comma-separated entries (as produced by env vars) and
// drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
