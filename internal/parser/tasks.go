package parser

import (
	"regexp"
	"strings"

	"github.com/mark3labs/specdash/internal/workitem"
)

var (
	checklistPattern = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s+(.*)$`)
	ordinalPattern   = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(.+)$`)

	// _Requirements: 1.1, 2.3_ and _Leverage: internal/foo.go_, inline or
	// as a sub-bullet under a task.
	requirementsPattern = regexp.MustCompile(`(?i)^_?(?:\*\*)?requirements(?:\*\*)?:(?:\*\*)?\s*(.*?)\s*_?$`)
	leveragePattern     = regexp.MustCompile(`(?i)^_?(?:\*\*)?leverage(?:\*\*)?:(?:\*\*)?\s*(.*?)\s*_?$`)
	inlineAnnotation    = regexp.MustCompile(`(?i)_\s*(requirements|leverage):\s*([^_]*)_`)
	subBulletPattern    = regexp.MustCompile(`^\s+[-*]\s+(.*)$`)
)

// ParseTasks extracts checklist entries in document order. Checklist lines
// without a numeric ordinal or a description are skipped along with their
// sub-bullets; fenced code blocks are ignored.
func ParseTasks(text string) []workitem.TaskEntry {
	var (
		tasks    []workitem.TaskEntry
		inFence  bool
		attached bool // sub-bullets belong to the last entry
	)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if m := checklistPattern.FindStringSubmatch(line); m != nil {
			task, ok := parseTask(m[1], m[2])
			if ok {
				tasks = append(tasks, task)
			}
			attached = ok
			continue
		}

		if !attached {
			continue
		}
		if m := subBulletPattern.FindStringSubmatch(line); m != nil {
			annotate(&tasks[len(tasks)-1], m[1])
		}
	}
	return tasks
}

func parseTask(mark, rest string) (workitem.TaskEntry, bool) {
	task := workitem.TaskEntry{Completed: mark != " "}

	for _, m := range inlineAnnotation.FindAllStringSubmatch(rest, -1) {
		setAnnotation(&task, m[1], m[2])
	}
	rest = strings.TrimSpace(inlineAnnotation.ReplaceAllString(rest, ""))

	m := ordinalPattern.FindStringSubmatch(rest)
	if m == nil {
		return workitem.TaskEntry{}, false
	}
	task.ID = m[1]
	task.Depth = strings.Count(m[1], ".")
	task.Description = strings.TrimSpace(m[2])
	if task.Description == "" {
		return workitem.TaskEntry{}, false
	}
	return task, true
}

func annotate(task *workitem.TaskEntry, text string) {
	if m := requirementsPattern.FindStringSubmatch(text); m != nil {
		setAnnotation(task, "requirements", m[1])
		return
	}
	if m := leveragePattern.FindStringSubmatch(text); m != nil {
		setAnnotation(task, "leverage", m[1])
	}
}

func setAnnotation(task *workitem.TaskEntry, name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch strings.ToLower(name) {
	case "requirements":
		for _, ref := range strings.Split(value, ",") {
			if ref = strings.TrimSpace(ref); ref != "" {
				task.Requirements = append(task.Requirements, ref)
			}
		}
	case "leverage":
		if task.Leverage != "" {
			task.Leverage += ", "
		}
		task.Leverage += value
	}
}

// Summarize counts entries and completed entries.
func Summarize(tasks []workitem.TaskEntry) workitem.TaskSummary {
	s := workitem.TaskSummary{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	return s
}
