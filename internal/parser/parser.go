// Package parser turns the markdown documents of one work item into a
// WorkItem with a derived workflow status. Status is always recomputed from
// document content and never read from a stored field.
package parser

import (
	"time"

	"github.com/mark3labs/specdash/internal/content"
	"github.com/mark3labs/specdash/internal/workitem"
)

// Document is one markdown file of a work item as read from disk.
type Document struct {
	Name    string
	Text    string
	Exists  bool
	ModTime time.Time
}

// Parse derives a WorkItem from in-memory documents. Documents not in docs
// are treated as absent. Parse performs no I/O and is deterministic.
func Parse(kind workitem.Kind, slug string, docs []Document) workitem.WorkItem {
	byName := make(map[string]Document, len(docs))
	for _, d := range docs {
		if kind.IsDocument(d.Name) {
			byName[d.Name] = d
		}
	}

	item := workitem.WorkItem{
		Kind:        kind,
		Slug:        slug,
		DisplayName: workitem.FormatSlug(slug),
	}

	real := make(map[string]bool, len(byName))
	for _, name := range kind.Documents() {
		d, ok := byName[name]
		info := workitem.DocumentInfo{Name: name}
		if ok && d.Exists {
			info.Exists = true
			info.HasContent = content.HasRealContent(d.Text)
			info.Approved = IsApproved(d.Text)
			info.ModTime = d.ModTime
			if d.ModTime.After(item.LastModified) {
				item.LastModified = d.ModTime
			}
		}
		real[name] = info.HasContent
		item.Documents = append(item.Documents, info)
	}

	if d, ok := byName[kind.TitleDocument()]; ok && d.Exists {
		if title, ok := ExtractTitle(d.Text); ok {
			item.DisplayName = title
		}
	}

	switch kind {
	case workitem.KindSpec:
		if d, ok := byName[workitem.DocTasks]; ok && d.Exists {
			item.Tasks = ParseTasks(d.Text)
			item.TaskSummary = Summarize(item.Tasks)
		}
		item.Status = specStatus(real, item.TaskSummary)
	case workitem.KindBug:
		if d, ok := byName[workitem.DocVerification]; ok && d.Exists && real[workitem.DocVerification] {
			item.Verified = HasVerifiedMarker(d.Text)
		}
		item.Status = bugStatus(real, item.Verified)
	default:
		item.Status = workitem.InitialStatus(kind)
	}

	return item
}

// specStatus picks the furthest phase whose document has real content.
// Task completion only refines the tasks phase.
func specStatus(real map[string]bool, tasks workitem.TaskSummary) workitem.Status {
	status := workitem.StatusNotStarted
	if real[workitem.DocRequirements] {
		status = workitem.StatusRequirements
	}
	if real[workitem.DocDesign] {
		status = workitem.StatusDesign
	}
	if !real[workitem.DocTasks] {
		return status
	}
	switch {
	case tasks.Total > 0 && tasks.Completed == tasks.Total:
		return workitem.StatusCompleted
	case tasks.Completed > 0:
		return workitem.StatusInProgress
	default:
		return workitem.StatusTasks
	}
}

func bugStatus(real map[string]bool, verified bool) workitem.Status {
	status := workitem.StatusReported
	if real[workitem.DocAnalysis] {
		status = workitem.StatusAnalyzing
	}
	if real[workitem.DocFix] {
		status = workitem.StatusFixing
	}
	if real[workitem.DocVerification] {
		status = workitem.StatusVerifying
		if verified {
			status = workitem.StatusResolved
		}
	}
	return status
}
