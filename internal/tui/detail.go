package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/glamour/v2"

	"github.com/mark3labs/specdash/internal/workitem"
)

// Detail shows one item's documents and task checklist.
type Detail struct {
	viewport viewport.Model
	item     workitem.WorkItem
	width    int
	height   int
}

// NewDetail creates a detail view for item.
func NewDetail(item workitem.WorkItem, width, height int) *Detail {
	vp := viewport.New(
		viewport.WithWidth(width),
		viewport.WithHeight(height),
	)
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	d := &Detail{viewport: vp, item: item, width: width, height: height}
	d.render()
	return d
}

// Item returns the item being shown.
func (d *Detail) Item() workitem.WorkItem {
	return d.item
}

// SetItem replaces the item, keeping the scroll position.
func (d *Detail) SetItem(item workitem.WorkItem) {
	d.item = item
	d.render()
}

// SetSize updates the dimensions and re-wraps the content.
func (d *Detail) SetSize(width, height int) {
	d.width, d.height = width, height
	d.viewport.SetWidth(width)
	d.viewport.SetHeight(height)
	d.render()
}

// Update forwards scrolling input to the viewport.
func (d *Detail) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return cmd
}

// View renders the viewport.
func (d *Detail) View() string {
	return d.viewport.View()
}

func (d *Detail) render() {
	d.viewport.SetContent(renderMarkdown(itemMarkdown(d.item), d.width))
}

// itemMarkdown describes an item as markdown: status line, document
// verdicts and, for specs, the task checklist.
func itemMarkdown(it workitem.WorkItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", it.DisplayName)

	fmt.Fprintf(&b, "**Status:** %s", it.Status)
	if it.Kind == workitem.KindSpec && it.TaskSummary.Total > 0 {
		fmt.Fprintf(&b, " · %d/%d tasks done", it.TaskSummary.Completed, it.TaskSummary.Total)
	}
	if !it.LastModified.IsZero() {
		fmt.Fprintf(&b, " · modified %s", it.LastModified.Local().Format("2006-01-02 15:04"))
	}
	b.WriteString("\n\n")

	if it.Degraded {
		fmt.Fprintf(&b, "> Some documents could not be read: %s\n\n", it.Error)
	}

	b.WriteString("## Documents\n\n")
	for _, doc := range it.Documents {
		switch {
		case !doc.Exists:
			fmt.Fprintf(&b, "- `%s` missing\n", doc.Name)
		case !doc.HasContent:
			fmt.Fprintf(&b, "- `%s` template only\n", doc.Name)
		case doc.Approved:
			fmt.Fprintf(&b, "- `%s` written, approved\n", doc.Name)
		default:
			fmt.Fprintf(&b, "- `%s` written\n", doc.Name)
		}
	}

	if it.Kind == workitem.KindBug && it.Verified {
		b.WriteString("\nVerification confirmed.\n")
	}

	if len(it.Tasks) > 0 {
		b.WriteString("\n## Tasks\n\n")
		for _, task := range it.Tasks {
			check := " "
			if task.Completed {
				check = "x"
			}
			indent := strings.Repeat("  ", task.Depth)
			fmt.Fprintf(&b, "%s- [%s] %s %s\n", indent, check, task.ID, task.Description)
			if len(task.Requirements) > 0 {
				fmt.Fprintf(&b, "%s  - _Requirements: %s_\n", indent, strings.Join(task.Requirements, ", "))
			}
		}
	}
	return b.String()
}

// renderMarkdown renders markdown with glamour, falling back to the raw
// text when rendering fails.
func renderMarkdown(content string, width int) string {
	if width > 120 {
		width = 120
	}
	if width < 20 {
		width = 20
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSuffix(rendered, "\n")
}
