package tui

import (
	"strings"

	"charm.land/bubbles/v2/key"

	"github.com/mark3labs/specdash/internal/tui/theme"
)

// RenderHint renders a single key-description pair.
func RenderHint(k, desc string) string {
	s := theme.Current().S()
	return s.HintKey.Render(k) + " " + s.HintDesc.Render(desc)
}

// RenderHintBar renders the help text of each enabled binding, separated
// by dots.
func RenderHintBar(bindings ...key.Binding) string {
	s := theme.Current().S()
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, RenderHint(h.Key, h.Desc))
	}
	return strings.Join(parts, " "+s.HintSeparator.Render(".")+" ")
}
