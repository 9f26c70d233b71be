package tui

import (
	"os"
	"path/filepath"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/editor"

	"github.com/mark3labs/specdash/internal/workitem"
)

// editorClosedMsg is sent when the external editor exits.
type editorClosedMsg struct {
	path string
	err  error
}

// phaseDocument is the document an item's current status is about.
func phaseDocument(it workitem.WorkItem) string {
	switch it.Status {
	case workitem.StatusDesign:
		return workitem.DocDesign
	case workitem.StatusTasks, workitem.StatusInProgress, workitem.StatusCompleted:
		return workitem.DocTasks
	case workitem.StatusAnalyzing:
		return workitem.DocAnalysis
	case workitem.StatusFixing:
		return workitem.DocFix
	case workitem.StatusVerifying, workitem.StatusResolved:
		return workitem.DocVerification
	default:
		return it.Kind.TitleDocument()
	}
}

// documentPath locates an item's phase document under a local project
// root. ok is false when the project is not on this machine.
func documentPath(layout workitem.Layout, projectPath string, it workitem.WorkItem) (string, bool) {
	if projectPath == "" {
		return "", false
	}
	if fi, err := os.Stat(projectPath); err != nil || !fi.IsDir() {
		return "", false
	}
	return filepath.Join(layout.ItemPath(projectPath, it.Kind, it.Slug), phaseDocument(it)), true
}

// openEditor suspends the program and runs $EDITOR on path.
func openEditor(path string) tea.Cmd {
	cmd, err := editor.Command("specdash", path)
	if err != nil {
		return func() tea.Msg { return editorClosedMsg{path: path, err: err} }
	}
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorClosedMsg{path: path, err: err}
	})
}
