package hooks

import "slices"

// DefaultTimeout is the default timeout for hook execution in seconds.
const DefaultTimeout = 30

// Config is the top-level configuration loaded from .specdash.hooks.yml.
type Config struct {
	Version int         `yaml:"version"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig lists the events a project can hook into.
type HooksConfig struct {
	OnStatusChange *HookConfig `yaml:"on_status_change"`
}

// HookConfig is one shell command plus the transitions it reacts to.
// Empty filters match everything.
type HookConfig struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout"` // seconds, default 30

	// Kinds limits the hook to "spec" or "bug" items.
	Kinds []string `yaml:"kinds"`
	// Statuses limits the hook to transitions into one of these statuses.
	Statuses []string `yaml:"statuses"`
}

// Matches reports whether a transition described by vars passes the
// hook's filters.
func (h *HookConfig) Matches(vars Variables) bool {
	if h == nil || h.Command == "" {
		return false
	}
	if len(h.Kinds) > 0 && !slices.Contains(h.Kinds, vars.Kind) {
		return false
	}
	if len(h.Statuses) > 0 && !slices.Contains(h.Statuses, vars.Status) {
		return false
	}
	return true
}
