// Package state persists dashboard preferences between runs. It never
// stores work-item data; that is always re-derived from the filesystem.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/workitem"
)

// FileName is the preferences file inside the state directory.
const FileName = "ui-state.json"

// UIState holds the dashboard selection restored on the next start.
type UIState struct {
	Project string        `json:"project,omitempty"`
	Kind    workitem.Kind `json:"kind"`
}

// DefaultUIState opens on the specs tab of the first project.
func DefaultUIState() *UIState {
	return &UIState{Kind: workitem.KindSpec}
}

// Dir returns the default state directory next to the global config.
func Dir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "specdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "specdash")
}

// Load reads the UI state from dir.
// Returns default state if the file doesn't exist or on error.
func Load(dir string) *UIState {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultUIState()
	}
	if err != nil {
		logger.Warn("Failed to read UI state file: %v", err)
		return DefaultUIState()
	}

	var st UIState
	if err := json.Unmarshal(data, &st); err != nil {
		logger.Warn("Failed to parse UI state JSON: %v", err)
		return DefaultUIState()
	}
	if _, err := workitem.ParseKind(string(st.Kind)); err != nil {
		st.Kind = workitem.KindSpec
	}
	return &st
}

// Save writes the UI state to dir, creating it if needed.
func Save(dir string, st *UIState) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling UI state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing UI state file: %w", err)
	}

	logger.Debug("UI state saved to %s", path)
	return nil
}
