package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/mark3labs/specdash/internal/tui/theme"
	"github.com/mark3labs/specdash/internal/workitem"
)

const (
	statusColumn = 12
	tasksColumn  = 7
	ageColumn    = 9
)

// renderList draws items with the cursor row highlighted, scrolled so the
// cursor stays visible within height rows.
func renderList(items []workitem.WorkItem, cursor, width, height int, now time.Time) string {
	t := theme.Current()
	s := t.S()
	if len(items) == 0 {
		return s.Muted.Render("  nothing here yet")
	}
	if height < 1 {
		height = 1
	}

	start := 0
	if cursor >= height {
		start = cursor - height + 1
	}
	end := min(start+height, len(items))

	nameWidth := max(width-statusColumn-tasksColumn-ageColumn-4, 10)
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		it := items[i]

		name := truncate(it.DisplayName, nameWidth)
		name += strings.Repeat(" ", max(nameWidth-lipgloss.Width(name), 0))

		tasks := ""
		if it.Kind == workitem.KindSpec && it.TaskSummary.Total > 0 {
			tasks = fmt.Sprintf("%d/%d", it.TaskSummary.Completed, it.TaskSummary.Total)
		}

		status := t.StatusBadge(it.Status)
		status += strings.Repeat(" ", max(statusColumn-len(it.Status), 1))

		marker := "  "
		style := s.Row
		if workitem.IsFinal(it.Status) {
			style = s.Muted
		}
		if i == cursor {
			marker = "› "
			style = s.RowSelected
		}
		row := marker + style.Render(name) + " " + status +
			s.Muted.Render(fmt.Sprintf("%-*s%*s", tasksColumn, tasks, ageColumn, ago(it.LastModified, now)))
		if it.Degraded {
			row += " " + s.Degraded.Render("!")
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

// ago formats the time since t in a compact form.
func ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
