// Package theme holds the dashboard palette and its pre-built styles.
package theme

import (
	"image/color"
	"sync"

	"charm.land/lipgloss/v2"

	"github.com/mark3labs/specdash/internal/workitem"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Name   string
	IsDark bool

	// Semantic colors
	Primary   string
	Secondary string
	Tertiary  string

	// Background hierarchy (dark→light)
	BgCrust    string
	BgBase     string
	BgSurface0 string
	BgSurface1 string

	// Foreground hierarchy (dim→bright)
	FgMuted  string
	FgSubtle string
	FgBase   string
	FgBright string

	// Status colors
	Success string
	Warning string
	Error   string
	Info    string
	Peach   string
	Teal    string

	styles     *Styles
	stylesOnce sync.Once
}

// Styles contains the pre-built lipgloss styles for the dashboard.
type Styles struct {
	HeaderTitle     lipgloss.Style
	HeaderInfo      lipgloss.Style
	HeaderSeparator lipgloss.Style

	TabActive   lipgloss.Style
	TabInactive lipgloss.Style

	Row         lipgloss.Style
	RowSelected lipgloss.Style
	Muted       lipgloss.Style
	Degraded    lipgloss.Style

	HintKey       lipgloss.Style
	HintDesc      lipgloss.Style
	HintSeparator lipgloss.Style

	Connected    lipgloss.Style
	Disconnected lipgloss.Style
	Error        lipgloss.Style

	Panel lipgloss.Style
}

// S returns the pre-built styles for this theme.
// Styles are lazily initialized on first call.
func (t *Theme) S() *Styles {
	t.stylesOnce.Do(func() {
		t.styles = t.buildStyles()
	})
	return t.styles
}

func (t *Theme) buildStyles() *Styles {
	c := lipgloss.Color
	return &Styles{
		HeaderTitle:     lipgloss.NewStyle().Foreground(c(t.Primary)).Bold(true),
		HeaderInfo:      lipgloss.NewStyle().Foreground(c(t.FgSubtle)),
		HeaderSeparator: lipgloss.NewStyle().Foreground(c(t.FgMuted)),

		TabActive: lipgloss.NewStyle().
			Foreground(c(t.BgBase)).
			Background(c(t.Primary)).
			Bold(true).
			Padding(0, 1),
		TabInactive: lipgloss.NewStyle().
			Foreground(c(t.FgSubtle)).
			Background(c(t.BgSurface0)).
			Padding(0, 1),

		Row:         lipgloss.NewStyle().Foreground(c(t.FgBase)),
		RowSelected: lipgloss.NewStyle().Foreground(c(t.FgBright)).Background(c(t.BgSurface1)).Bold(true),
		Muted:       lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		Degraded:    lipgloss.NewStyle().Foreground(c(t.Error)).Italic(true),

		HintKey:       lipgloss.NewStyle().Foreground(c(t.Secondary)),
		HintDesc:      lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		HintSeparator: lipgloss.NewStyle().Foreground(c(t.BgSurface1)),

		Connected:    lipgloss.NewStyle().Foreground(c(t.Success)),
		Disconnected: lipgloss.NewStyle().Foreground(c(t.Error)),
		Error:        lipgloss.NewStyle().Foreground(c(t.Error)).Bold(true),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c(t.BgSurface1)).
			Padding(0, 1),
	}
}

// StatusColor maps a workflow status to a palette entry. Early phases are
// cool, active work is warm and finished work is green.
func (t *Theme) StatusColor(status workitem.Status) string {
	switch status {
	case workitem.StatusNotStarted:
		return t.FgMuted
	case workitem.StatusReported, workitem.StatusRequirements:
		return t.Secondary
	case workitem.StatusAnalyzing, workitem.StatusDesign:
		return t.Tertiary
	case workitem.StatusFixing, workitem.StatusTasks:
		return t.Peach
	case workitem.StatusInProgress:
		return t.Warning
	case workitem.StatusVerifying:
		return t.Teal
	case workitem.StatusResolved, workitem.StatusCompleted:
		return t.Success
	default:
		return t.FgBase
	}
}

// StatusBadge renders a status in its color.
func (t *Theme) StatusBadge(status workitem.Status) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.StatusColor(status))).Render(string(status))
}

var (
	current   = NewCatppuccinMocha()
	currentMu sync.RWMutex
)

// Current returns the active theme.
func Current() *Theme {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// SetCurrent replaces the active theme.
func SetCurrent(t *Theme) {
	currentMu.Lock()
	current = t
	currentMu.Unlock()
}

// HexToColor converts a #RRGGBB string to a color.Color.
func HexToColor(hex string) color.Color {
	r, g, b := ParseHexColor(hex)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
