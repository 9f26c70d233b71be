package workitem

import "path/filepath"

// Layout resolves where work items live under a project root.
type Layout struct {
	// WorkflowDir is relative to the project root, e.g. ".claude".
	WorkflowDir string
}

// WorkflowPath returns the absolute workflow directory for a project.
func (l Layout) WorkflowPath(root string) string {
	return filepath.Join(root, l.WorkflowDir)
}

// KindPath returns the directory holding all items of a kind.
func (l Layout) KindPath(root string, kind Kind) string {
	return filepath.Join(root, l.WorkflowDir, kind.Dir())
}

// ItemPath returns the directory of a single item.
func (l Layout) ItemPath(root string, kind Kind, slug string) string {
	return filepath.Join(l.KindPath(root, kind), slug)
}
