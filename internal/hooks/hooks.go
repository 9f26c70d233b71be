// Package hooks runs user-configured shell commands when a work item's
// status changes.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/specdash/internal/logger"
)

// ConfigFileName is the name of the hooks configuration file in a project
// root.
const ConfigFileName = ".specdash.hooks.yml"

var log = logger.Named("hooks")

// LoadConfig loads the hooks configuration from a project root.
// Returns nil if the config file doesn't exist (hooks are optional).
// Returns an error only if the file exists but cannot be parsed.
func LoadConfig(projectDir string) (*Config, error) {
	configPath := filepath.Join(projectDir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("no hooks config at %s", configPath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hooks config: %w", err)
	}

	log.Debug("loaded hooks config from %s (version: %d)", configPath, cfg.Version)
	return &cfg, nil
}

// Variables are expanded in hook commands and exported to the hook's
// environment as SPECDASH_* variables.
type Variables struct {
	Project        string
	Kind           string
	Slug           string
	Status         string
	PreviousStatus string
}

func (v Variables) pairs() [][2]string {
	return [][2]string{
		{"project", v.Project},
		{"kind", v.Kind},
		{"slug", v.Slug},
		{"status", v.Status},
		{"previous_status", v.PreviousStatus},
	}
}

// Execute runs a hook command and returns its output.
// On failure or timeout the error text is folded into the output and the
// returned error is nil. Only context cancellation is returned as an error.
func Execute(ctx context.Context, hook *HookConfig, workDir string, vars Variables) (string, error) {
	if hook == nil || hook.Command == "" {
		return "", nil
	}

	command := expandVariables(hook.Command, vars)
	log.Debug("executing hook: %s", command)

	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workDir
	// Orphaned grandchildren may hold the output pipes open after a kill.
	cmd.WaitDelay = time.Second
	cmd.Env = os.Environ()
	for _, kv := range vars.pairs() {
		cmd.Env = append(cmd.Env, envName(kv[0])+"="+kv[1])
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if execCtx.Err() == context.DeadlineExceeded {
		log.Warn("hook timed out after %ds: %s", timeout, command)
		return fmt.Sprintf("[Hook timed out after %ds]\nPartial output:\n%s", timeout, stdout.String()), nil
	}

	if err != nil {
		log.Warn("hook failed: %v", err)
		output := stdout.String()
		if stderr.Len() > 0 {
			output += "\n[stderr]\n" + stderr.String()
		}
		return fmt.Sprintf("[Hook command failed: %v]\n%s", err, output), nil
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n[stderr]\n" + stderr.String()
	}
	return output, nil
}

// expandVariables replaces {{variable}} placeholders in the command string.
// Values made only of shell-safe characters are inserted verbatim; any other
// value becomes a quoted reference to its SPECDASH_* environment variable so
// the shell never parses it as code.
func expandVariables(command string, vars Variables) string {
	result := command
	for _, kv := range vars.pairs() {
		value := kv[1]
		if !shellSafe(value) {
			value = `"$` + envName(kv[0]) + `"`
		}
		result = strings.ReplaceAll(result, "{{"+kv[0]+"}}", value)
	}
	return result
}

func envName(variable string) string {
	return "SPECDASH_" + strings.ToUpper(variable)
}

func shellSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./:@+,=", r):
		default:
			return false
		}
	}
	return true
}

// Runner fires hooks in the background. Failures are logged and never
// reach the caller.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner whose hooks are canceled by Close.
func NewRunner() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{ctx: ctx, cancel: cancel}
}

// OnStatusChange runs cfg's status-change hook asynchronously when its
// filters match the transition.
func (r *Runner) OnStatusChange(cfg *Config, projectDir string, vars Variables) {
	if cfg == nil || !cfg.Hooks.OnStatusChange.Matches(vars) {
		return
	}
	hook := cfg.Hooks.OnStatusChange
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		output, err := Execute(r.ctx, hook, projectDir, vars)
		if err != nil {
			log.Debug("hook for %s/%s canceled: %v", vars.Kind, vars.Slug, err)
			return
		}
		log.Info("hook for %s/%s (%s -> %s): %s", vars.Kind, vars.Slug, vars.PreviousStatus, vars.Status, strings.TrimSpace(output))
	}()
}

// Wait blocks until every started hook has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels running hooks and waits for them to exit.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}
